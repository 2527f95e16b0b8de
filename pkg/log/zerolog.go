package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type zerologHandler struct {
	l zerolog.Logger
}

// NewZerologHandler creates a handler writing JSON lines to w, stdout if w is nil.
func NewZerologHandler(w io.Writer) Handler {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return &zerologHandler{l: zerolog.New(w).With().Timestamp().Logger()}
}

// NewConsoleHandler creates a zerolog handler with human readable output.
func NewConsoleHandler(w io.Writer) Handler {
	if w == nil {
		w = os.Stdout
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.StampMicro}
	return &zerologHandler{l: zerolog.New(cw).With().Timestamp().Logger()}
}

func (z *zerologHandler) Log(lv Level, msg string) {
	event(&z.l, lv).Msg(msg)
}

func event(l *zerolog.Logger, lv Level) *zerolog.Event {
	switch lv {
	case DebugLevel:
		return l.Debug()
	case WarnLevel:
		return l.Warn()
	case ErrorLevel:
		return l.Error()
	}
	return l.Info()
}

func (z *zerologHandler) Close() error {
	return nil
}
