package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zerologLogger adapts zerolog.Logger to the Logger interface. zerolog
// has no Panicln/Fatalln-style variadic-join methods, so those are
// built on sprintln over the Msg/Msgf pair.
type zerologLogger struct {
	log zerolog.Logger
}

// NewWithLevel builds a Logger that writes leveled, human-readable
// output to stderr at or above level. Pass "" for level to accept
// zerolog's default (info).
func NewWithLevel(level string) (Logger, error) {
	return newWithLevel(os.Stderr, level)
}

func newWithLevel(w io.Writer, level string) (Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	l := zerolog.New(console).Level(lvl).With().Timestamp().Logger()
	return &zerologLogger{log: l}, nil
}

func sprintln(v ...any) string {
	return strings.TrimRight(fmt.Sprintln(v...), "\n")
}

func (l *zerologLogger) Panicln(v ...any) { l.log.Panic().Msg(sprintln(v...)) }
func (l *zerologLogger) Panicf(format string, v ...any) { l.log.Panic().Msgf(format, v...) }
func (l *zerologLogger) Fatalln(v ...any) { l.log.Fatal().Msg(sprintln(v...)) }
func (l *zerologLogger) Fatalf(format string, v ...any) { l.log.Fatal().Msgf(format, v...) }
func (l *zerologLogger) Errorln(v ...any) { l.log.Error().Msg(sprintln(v...)) }
func (l *zerologLogger) Errorf(format string, v ...any) { l.log.Error().Msgf(format, v...) }
func (l *zerologLogger) Warnln(v ...any) { l.log.Warn().Msg(sprintln(v...)) }
func (l *zerologLogger) Warnf(format string, v ...any) { l.log.Warn().Msgf(format, v...) }
func (l *zerologLogger) Infoln(v ...any) { l.log.Info().Msg(sprintln(v...)) }
func (l *zerologLogger) Infof(format string, v ...any) { l.log.Info().Msgf(format, v...) }
func (l *zerologLogger) Debugln(v ...any) { l.log.Debug().Msg(sprintln(v...)) }
func (l *zerologLogger) Debugf(format string, v ...any) { l.log.Debug().Msgf(format, v...) }
func (l *zerologLogger) Traceln(v ...any) { l.log.Trace().Msg(sprintln(v...)) }
func (l *zerologLogger) Tracef(format string, v ...any) { l.log.Trace().Msgf(format, v...) }
