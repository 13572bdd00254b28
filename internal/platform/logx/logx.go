package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level representa el nivel de logging.
type Level uint8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// Fields representa pares clave-valor para structured logging.
type Fields map[string]any

var state = struct {
	mu     sync.RWMutex
	logger zerolog.Logger
	level  Level
}{
	logger: zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger(),
	level: LevelInfo,
}

// SetVerbosity configura el nivel: 0/1=info, 2=debug, 3+=trace.
func SetVerbosity(v int) {
	switch {
	case v <= 1:
		SetLevel(LevelInfo)
	case v == 2:
		SetLevel(LevelDebug)
	default:
		SetLevel(LevelTrace)
	}
}

// SetLevel cambia el nivel mínimo de logging.
func SetLevel(l Level) {
	state.mu.Lock()
	state.level = l
	state.mu.Unlock()

	var zlevel zerolog.Level
	switch l {
	case LevelError:
		zlevel = zerolog.ErrorLevel
	case LevelWarn:
		zlevel = zerolog.WarnLevel
	case LevelInfo:
		zlevel = zerolog.InfoLevel
	case LevelDebug:
		zlevel = zerolog.DebugLevel
	default:
		zlevel = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(zlevel)
}

// ParseLevel convierte string a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("logx: nivel desconocido %q", s)
	}
}

// SetOutput redirige la salida del logger.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// SetJSON habilita output JSON estructurado (para consumo por otras herramientas).
func SetJSON(enabled bool) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if enabled {
		state.logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		state.logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
	}
}

// GetLevel retorna el nivel actual.
func GetLevel() Level {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.level
}

func current() *zerolog.Logger {
	state.mu.RLock()
	defer state.mu.RUnlock()
	l := state.logger
	return &l
}

// Atajos de nivel.
func Errorf(format string, a ...interface{}) { current().Error().Msgf(format, a...) }
func Warnf(format string, a ...interface{})  { current().Warn().Msgf(format, a...) }
func Infof(format string, a ...interface{})  { current().Info().Msgf(format, a...) }
func Debugf(format string, a ...interface{}) { current().Debug().Msgf(format, a...) }
func Tracef(format string, a ...interface{}) { current().Trace().Msgf(format, a...) }

// Variantes con fields estructurados.
func Error(msg string, fields Fields) { emit(current().Error(), msg, fields) }
func Warn(msg string, fields Fields)  { emit(current().Warn(), msg, fields) }
func Info(msg string, fields Fields)  { emit(current().Info(), msg, fields) }
func Debug(msg string, fields Fields) { emit(current().Debug(), msg, fields) }
func Trace(msg string, fields Fields) { emit(current().Trace(), msg, fields) }

func emit(event *zerolog.Event, msg string, fields Fields) {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
