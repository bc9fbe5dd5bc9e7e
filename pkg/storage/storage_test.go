package storage

import (
	"log/slog"

	"github.com/meterboard/meterboard/pkg/log"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}
