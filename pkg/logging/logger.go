// pkg/logging/logger.go

// Package logging provides structured logging for the vehicle dynamics core.
// Records carry the run and scenario found on the context, and storage
// credentials are masked before anything is written.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LevelEnv selects the minimum level. It accepts slog level names and
// offsets such as "DEBUG", "warn" or "INFO+2".
const LevelEnv = "VDC_LOG_LEVEL"

const redacted = "[REDACTED]"

// Logger is a slog.Logger whose level helpers take the context first.
type Logger struct {
	*slog.Logger
}

// NewLogger writes JSON to stdout at the level named by VDC_LOG_LEVEL.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout)
}

// NewLoggerTo writes JSON to w at the level named by VDC_LOG_LEVEL.
func NewLoggerTo(w io.Writer) *Logger {
	return newLogger(w, levelFromEnv())
}

func newLogger(w io.Writer, level slog.Leveler) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})
	return &Logger{slog.New(runHandler{h})}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{slog.New(slog.DiscardHandler)}
}

// With returns a child Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// LogWithContext logs at level. Run and scenario are taken from ctx by the
// handler.
func (l *Logger) LogWithContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.Log(ctx, level, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.Log(ctx, slog.LevelDebug, msg, args...)
}

// Error logs msg with err under the "error" key. A nil err is omitted.
func (l *Logger) Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.Log(ctx, slog.LevelError, msg, args...)
}

// runHandler copies the run labels stored on the context onto each record.
type runHandler struct {
	slog.Handler
}

func (h runHandler) Handle(ctx context.Context, r slog.Record) error {
	if l, ok := ctx.Value(labelsKey{}).(labels); ok {
		if l.run != "" {
			r.AddAttrs(slog.String("run_id", l.run))
		}
		if l.scenario != "" {
			r.AddAttrs(slog.String("scenario", l.scenario))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return runHandler{h.Handler.WithAttrs(attrs)}
}

func (h runHandler) WithGroup(name string) slog.Handler {
	return runHandler{h.Handler.WithGroup(name)}
}

type labelsKey struct{}

type labels struct {
	run      string
	scenario string
}

func labelsFrom(ctx context.Context) labels {
	l, _ := ctx.Value(labelsKey{}).(labels)
	return l
}

// WithRunID stores runID on ctx, generating one when it is empty.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		runID = NewRunID()
	}
	l := labelsFrom(ctx)
	l.run = runID
	return context.WithValue(ctx, labelsKey{}, l)
}

// GetRunID returns the run ID on ctx, or "".
func GetRunID(ctx context.Context) string {
	return labelsFrom(ctx).run
}

// WithScenario stores the scenario name on ctx.
func WithScenario(ctx context.Context, name string) context.Context {
	l := labelsFrom(ctx)
	l.scenario = name
	return context.WithValue(ctx, labelsKey{}, l)
}

// GetScenario returns the scenario name on ctx, or "".
func GetScenario(ctx context.Context) string {
	return labelsFrom(ctx).scenario
}

// NewRunID returns a random UUID string.
func NewRunID() string {
	return uuid.NewString()
}

func levelFromEnv() slog.Level {
	return parseLevel(os.Getenv(LevelEnv))
}

// parseLevel falls back to INFO for anything slog does not recognize.
func parseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "WARN"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

var secretKeys = []string{"password", "passwd", "pwd", "token", "auth", "secret", "private", "dsn"}

// redact masks attributes named like credentials and strips the password
// from any URL-shaped value, such as an InfluxDB address with user info.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, redacted)
		}
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); strings.Contains(s, "://") {
			if u, err := url.Parse(s); err == nil && u.User != nil {
				return slog.String(a.Key, u.Redacted())
			}
		}
	}
	return a
}

// WrapError prefixes err with a formatted context, keeping it unwrappable.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	return fmt.Errorf("%s: %w", format, err)
}
