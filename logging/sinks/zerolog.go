package sinks

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/clover-storm/unit-simulator/logging"
)

// Zerolog forwards events to a zerolog logger, mapping severities onto
// zerolog levels.
type Zerolog struct {
	logger zerolog.Logger
}

func NewZerolog(w io.Writer, pretty bool) *Zerolog {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return &Zerolog{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// FromLogger wraps an existing logger.
func FromLogger(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

func (s *Zerolog) Write(event logging.Event) error {
	var e *zerolog.Event
	switch event.Severity {
	case logging.SeverityDebug:
		e = s.logger.Debug()
	case logging.SeverityWarn:
		e = s.logger.Warn()
	case logging.SeverityError:
		e = s.logger.Error()
	default:
		e = s.logger.Info()
	}
	e = e.Uint64("frame", event.Frame).Str("actor", formatEntity(event.Actor))
	if event.Session != "" {
		e = e.Str("session", event.Session)
	}
	if event.Category != "" {
		e = e.Str("category", event.Category)
	}
	if len(event.Targets) > 0 {
		ids := make([]string, 0, len(event.Targets))
		for _, t := range event.Targets {
			ids = append(ids, formatEntity(t))
		}
		e = e.Strs("targets", ids)
	}
	if event.Payload != nil {
		e = e.Interface("payload", event.Payload)
	}
	if len(event.Extra) > 0 {
		e = e.Fields(event.Extra)
	}
	e.Msg(string(event.Type))
	return nil
}

func (s *Zerolog) Close(context.Context) error {
	return nil
}
