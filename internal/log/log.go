// Package log is the process-wide leveled logger, backed by zerolog.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var root atomic.Pointer[zerolog.Logger]

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetOutput(os.Stderr)
	SetLevel(LevelInfo)
}

// SetOutput sends log lines to w. A *os.File gets the console format; any
// other writer receives JSON lines.
func SetOutput(w io.Writer) {
	if _, ok := w.(*os.File); ok {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	level := zerolog.InfoLevel
	if l := root.Load(); l != nil {
		level = l.GetLevel()
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	root.Store(&l)
}

func SetLevel(l Level) {
	ll := root.Load().Level(toZerolog(l))
	root.Store(&ll)
}

// ParseLevel maps a config string such as "debug" to a Level. Unknown values
// fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	emit(root.Load().Debug(), msg, kv)
}

func Info(msg string, kv ...any) {
	emit(root.Load().Info(), msg, kv)
}

func Warn(msg string, kv ...any) {
	emit(root.Load().Warn(), msg, kv)
}

func Error(msg string, err error, kv ...any) {
	emit(root.Load().Error().Err(err), msg, kv)
}

// emit attaches kv as key/value pairs and writes the event. A trailing key
// without a value is dropped.
func emit(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		switch v := kv[i+1].(type) {
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case time.Time:
			ev = ev.Time(key, v)
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
