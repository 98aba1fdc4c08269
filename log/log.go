// Package log is a small structured logging facade over zerolog. All the
// packages of the client log through it so the output format and level are
// configured in a single place by Init.
package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)

// logTestWriterName is a special output name used by the benchmarks to write
// into logTestWriter instead of a real file.
const logTestWriterName = "log_test_writer"

var (
	logger atomic.Pointer[zerolog.Logger]

	// panicOnInvalidChars makes every log call panic if the rendered line
	// contains invalid UTF-8. Enabled with LOG_PANIC_ON_INVALIDCHARS=true.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"

	logTestWriter io.Writer
)

func init() {
	// Allow overriding the default log level via $LOG_LEVEL, so that the
	// environment variable can be set when running the tests.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = LogLevelError
	}
	Init(level, "stderr", nil)
}

// invalidCharChecker panics on any line carrying invalid UTF-8, which usually
// means binary data was logged with %s. zerolog escapes those bytes as
// \ufffd in the JSON line.
type invalidCharChecker struct{}

func (*invalidCharChecker) Write(p []byte) (int, error) {
	if !utf8.Valid(p) || bytes.Contains(p, []byte(`\ufffd`)) {
		panic(fmt.Sprintf("log line with invalid chars: %q", p))
	}
	return len(p), nil
}

type errorLevelWriter struct {
	io.Writer
}

var _ zerolog.LevelWriter = &errorLevelWriter{}

func (*errorLevelWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (w *errorLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel {
		return len(p), nil
	}
	return w.Writer.Write(p)
}

// Init configures the global logger. Level is one of the LogLevel constants,
// output is "stdout", "stderr" or a file path. If errorOutput is not nil,
// warnings and errors are also written to it.
func Init(level, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	if output == "stdout" || output == "stderr" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
		}
	}
	outputs := []io.Writer{out}
	if errorOutput != nil {
		outputs = append(outputs, &errorLevelWriter{zerolog.ConsoleWriter{
			Out:        errorOutput,
			TimeFormat: time.RFC3339Nano,
			NoColor:    true,
		}})
	}
	if panicOnInvalidChars {
		outputs = append(outputs, &invalidCharChecker{})
	}
	if len(outputs) > 1 {
		out = zerolog.MultiLevelWriter(outputs...)
	}

	// pkg/file.go:line
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", path.Base(path.Dir(file)), path.Base(file), line)
	}
	l := zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(3).Logger()

	switch level {
	case LogLevelDebug:
		l = l.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		l = l.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		l = l.Level(zerolog.WarnLevel)
	case LogLevelError:
		l = l.Level(zerolog.ErrorLevel)
	case LogLevelFatal:
		l = l.Level(zerolog.FatalLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", level))
	}
	logger.Store(&l)
	if level == LogLevelDebug {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			l.Debug().Str("version", info.Main.Version).Msg("logger initialized")
		}
	}
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return logger.Load()
}

// Level returns the current log level as one of the LogLevel constants.
func Level() string {
	switch Logger().GetLevel() {
	case zerolog.DebugLevel:
		return LogLevelDebug
	case zerolog.InfoLevel:
		return LogLevelInfo
	case zerolog.WarnLevel:
		return LogLevelWarn
	case zerolog.ErrorLevel:
		return LogLevelError
	case zerolog.FatalLevel:
		return LogLevelFatal
	default:
		return "unknown"
	}
}

func Debug(args ...any) {
	Logger().Debug().Msg(fmt.Sprint(args...))
}

func Info(args ...any) {
	Logger().Info().Msg(fmt.Sprint(args...))
}

func Warn(args ...any) {
	Logger().Warn().Msg(fmt.Sprint(args...))
}

func Error(args ...any) {
	Logger().Error().Msg(fmt.Sprint(args...))
}

func Fatal(args ...any) {
	Logger().Fatal().Msg(fmt.Sprint(args...) + "\n" + string(debug.Stack()))
}

func Debugf(template string, args ...any) {
	Logger().Debug().Msgf(template, args...)
}

func Infof(template string, args ...any) {
	Logger().Info().Msgf(template, args...)
}

func Warnf(template string, args ...any) {
	Logger().Warn().Msgf(template, args...)
}

func Errorf(template string, args ...any) {
	Logger().Error().Msgf(template, args...)
}

func Fatalf(template string, args ...any) {
	Logger().Fatal().Msgf(template+"\n"+string(debug.Stack()), args...)
}

// Debugw logs a message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	Logger().Debug().Fields(keyvalues).Msg(msg)
}

// Infow logs a message with key-value pairs.
func Infow(msg string, keyvalues ...any) {
	Logger().Info().Fields(keyvalues).Msg(msg)
}

// Warnw logs a message with key-value pairs.
func Warnw(msg string, keyvalues ...any) {
	Logger().Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs an error with a message and key-value pairs.
func Errorw(err error, msg string, keyvalues ...any) {
	Logger().Error().Err(err).Fields(keyvalues).Msg(msg)
}

// Monitor logs the given fields under a "monitor" message, used by
// long-running services to periodically report their state.
func Monitor(msg string, fields map[string]any) {
	Logger().Info().Fields(fields).Msg(strings.TrimSpace(msg))
}
