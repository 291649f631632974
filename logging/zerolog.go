package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologAdapter wraps zerolog.Logger to implement the Logger interface.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger from an existing zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// NewConsoleLogger creates a human readable zerolog logger writing to out
// (stderr when nil).
func NewConsoleLogger(level LogLevel, out io.Writer) *ZerologAdapter {
	if out == nil {
		out = os.Stderr
	}

	writer := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = out
	})

	logger := zerolog.New(writer).Level(zerologLevel(level)).With().Timestamp().Logger()

	return NewZerologAdapter(logger)
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) { z.emit(z.logger.Debug(), msg, args) }

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) { z.emit(z.logger.Info(), msg, args) }

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) { z.emit(z.logger.Warn(), msg, args) }

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) { z.emit(z.logger.Error(), msg, args) }

// With returns a child adapter carrying args on every entry.
func (z *ZerologAdapter) With(args ...any) *ZerologAdapter {
	return &ZerologAdapter{logger: z.logger.With().Fields(pairs(args)).Logger()}
}

func (z *ZerologAdapter) emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	ev.Fields(pairs(args)).Msg(msg)
}

// pairs converts slog style key/value args into a zerolog field map. A trailing
// key without value is recorded under "!BADKEY" like slog does.
func pairs(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			break
		}

		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}

		if err, isErr := args[i+1].(error); isErr {
			fields[key] = err.Error()
			continue
		}

		fields[key] = args[i+1]
	}
	return fields
}

func zerologLevel(l LogLevel) zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
