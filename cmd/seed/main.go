package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/meterboard/meterboard/pkg/log"
	"github.com/meterboard/meterboard/pkg/storage"
	"github.com/meterboard/meterboard/pkg/types"
)

// meter is a simulated meter with a daily consumption profile.
type meter struct {
	id   string
	kind string
	// base is the average consumption per hour
	base float64
	// peaks maps hour of day to an extra consumption factor
	peaks map[int]float64
}

var meters = []meter{
	{id: "eg_strom", kind: storage.KindElectricity, base: 0.4, peaks: map[int]float64{7: 1.5, 8: 1.2, 18: 2.0, 19: 2.5, 20: 1.8}},
	{id: "og1_strom", kind: storage.KindElectricity, base: 0.2, peaks: map[int]float64{6: 0.8, 21: 1.2, 22: 1.0}},
	{id: "wp_strom", kind: storage.KindElectricity, base: 0.9, peaks: map[int]float64{3: 0.6, 4: 0.6, 5: 0.8}},
	{id: "wasser_haus", kind: storage.KindWater, base: 0.005, peaks: map[int]float64{7: 0.06, 19: 0.04}},
	{id: "wasser_garten", kind: storage.KindWater, base: 0, peaks: map[int]float64{20: 0.15}},
}

func main() {
	// a missing .env is fine, flags and the environment still apply
	_ = godotenv.Load()

	window := lflag.Duration("seed-window", 30*24*time.Hour, "How far back to generate hourly readings")
	p := storage.ConfiguredInflux()
	lflag.Configure()

	ctx := context.Background()
	if err := p.Init(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to init influxdb", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock readings", "window", window.String())

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	end := time.Now().UTC().Truncate(time.Hour)
	start := end.Add(-*window)

	for _, m := range meters {
		var readings []types.Reading
		for t := start; t.Before(end); t = t.Add(time.Hour) {
			v := m.base * (0.8 + rng.Float64()*0.4)
			if f, ok := m.peaks[t.Hour()]; ok {
				v += f * (0.5 + rng.Float64())
			}
			// weekends use more at home
			if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
				v *= 1.2
			}
			v = math.Round(v*1000) / 1000
			readings = append(readings, types.Reading{
				Timestamp: t.Format(time.RFC3339),
				Value:     types.Float(v),
				SourceID:  m.id,
			})
		}

		n, err := p.WriteReadings(ctx, m.kind, readings)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed readings", "meter", m.id, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d %s readings for %s\n", n, m.kind, m.id)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock readings successfully")
}
