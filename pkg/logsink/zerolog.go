// Package logsink writes load events through zerolog.
package logsink

import (
	"github.com/rs/zerolog"

	"github.com/goliatone/go-scriptload"
)

// Zerolog adapts a zerolog.Logger to scriptload.LoadLogger. Failures log at
// error level, whole loads at info and individual steps at debug.
type Zerolog struct {
	Logger zerolog.Logger
}

var _ scriptload.LoadLogger = Zerolog{}

// New returns a sink writing to logger.
func New(logger zerolog.Logger) Zerolog {
	return Zerolog{Logger: logger}
}

// LogLoad implements scriptload.LoadLogger.
func (z Zerolog) LogLoad(event scriptload.LoadEvent) {
	var entry *zerolog.Event
	switch {
	case event.Err != nil:
		entry = z.Logger.Error().Err(event.Err)
	case event.Stage == scriptload.StageLoad:
		entry = z.Logger.Info()
	default:
		entry = z.Logger.Debug()
	}
	entry = entry.
		Str("session", event.SessionID).
		Str("archive", event.Archive).
		Str("stage", string(event.Stage))
	if event.Record != "" {
		entry = entry.Str("record", event.Record)
	}
	if event.Class != "" {
		entry = entry.Str("class", event.Class)
	}
	entry.Dur("duration", event.Duration).Msg("scriptload")
}
