// Package logctx enriches slog records with correlation fields carried in
// the context, so every log line inside a webhook or emission pipeline
// identifies the session and payment it belongs to without each call site
// repeating the attributes.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends context-scoped groups.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if ld, ok := ctx.Value(linkDataKey{}).(*LinkData); ok {
		r.AddAttrs(slog.Group("link",
			slog.String("session_id", ld.SessionID),
			slog.String("event_id", ld.EventID),
			slog.String("link_id", ld.LinkID),
		))
	}

	if zd, ok := ctx.Value(zapDataKey{}).(*ZapData); ok {
		r.AddAttrs(slog.Group("zap",
			slog.String("request_id", zd.RequestID),
			slog.String("target_event_id", zd.TargetEventID),
			slog.Int64("amount_msat", zd.AmountMsat),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type linkDataKey struct{}

// LinkData identifies the payment link a log record concerns.
type LinkData struct {
	SessionID string
	EventID   string
	LinkID    string
}

func WithLinkData(ctx context.Context, data *LinkData) context.Context {
	return context.WithValue(ctx, linkDataKey{}, data)
}

type zapDataKey struct{}

// ZapData identifies the emission pipeline run a log record concerns.
type ZapData struct {
	RequestID     string
	TargetEventID string
	AmountMsat    int64
}

func WithZapData(ctx context.Context, data *ZapData) context.Context {
	return context.WithValue(ctx, zapDataKey{}, data)
}
