package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the Database provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "influxdb", "Storage provider to use (available: influxdb)")

	var p struct{ Database }

	influx := ConfiguredInflux()

	lflag.Do(func() {
		switch *provider {
		case "influxdb":
			if err := influx.Validate(); err != nil {
				panic(fmt.Sprintf("influxdb validation failed: %v", err))
			}
			p.Database = influx
			if err := influx.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("influxdb init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
