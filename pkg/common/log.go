package common

import (
	"context"
	"io"
	"log/slog"

	"github.com/rs/xid"
)

const (
	LevelTrace = slog.Level(-8)
)

type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if tid, ok := ctx.Value(TraceIDContextKey).(string); ok && (len(tid) > 0) {
			r.AddAttrs(TraceIDAttr(tid))
		}

		if cid, ok := ctx.Value(ChallengeIDContextKey).(string); ok && (len(cid) > 0) {
			r.AddAttrs(ChallengeIDAttr(cid))
		}
	}

	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.Handler.Enabled(ctx, level)
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{h.Handler.WithGroup(name)}
}

func NewTraceID() string {
	return xid.New().String()
}

func TraceContextFunc(ctx context.Context, traceID func() string) (context.Context, string) {
	tid, ok := ctx.Value(TraceIDContextKey).(string)
	if !ok || (len(tid) == 0) {
		tid = traceID()
	}

	return context.WithValue(ctx, TraceIDContextKey, tid), tid
}

func TraceContext(ctx context.Context, traceID string) context.Context {
	if tid, ok := ctx.Value(TraceIDContextKey).(string); !ok || (len(tid) == 0) {
		ctx = context.WithValue(ctx, TraceIDContextKey, traceID)
	}

	return ctx
}

func ChallengeContext(ctx context.Context, challengeID string) context.Context {
	if len(challengeID) == 0 {
		return ctx
	}

	return context.WithValue(ctx, ChallengeIDContextKey, challengeID)
}

func NewLogHandler(w io.Writer, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	return &contextHandler{slog.NewJSONHandler(w, opts)}
}

// logs go to w since stdout belongs to solver output
func SetupLogs(w io.Writer, stage string, verbose bool) *slog.LevelVar {
	level := &slog.LevelVar{}
	SetLogLevel(level, stage, verbose)

	logger := slog.New(NewLogHandler(w, level))
	slog.SetDefault(logger)

	return level
}

func SetLogLevel(level *slog.LevelVar, stage string, verbose bool) {
	switch {
	case verbose:
		level.Set(LevelTrace)
	case stage == StageDev:
		level.Set(slog.LevelDebug)
	default:
		level.Set(slog.LevelInfo)
	}
}

func ErrAttr(err error) slog.Attr {
	return slog.Any("error", err)
}

func TraceIDAttr(tid string) slog.Attr {
	return slog.Attr{
		Key:   "traceID",
		Value: slog.StringValue(tid),
	}
}

func ChallengeIDAttr(cid string) slog.Attr {
	return slog.Attr{
		Key:   "challengeID",
		Value: slog.StringValue(cid),
	}
}
