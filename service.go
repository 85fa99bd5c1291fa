package zapgate

import (
	"context"
	"log/slog"

	"github.com/nospay/zapgate/internal/logctx"
	"github.com/nospay/zapgate/lnbits"
	"github.com/nospay/zapgate/lnurl"
	"github.com/nospay/zapgate/relay"
	"github.com/nospay/zapgate/sessions"
	"github.com/nospay/zapgate/zapper"
)

// linkCreator is the payment-link provisioning surface the service needs.
// *lnbits.Client satisfies it.
type linkCreator interface {
	CreatePayLink(ctx context.Context, params lnbits.PayLinkParams) (*lnbits.PayLink, error)
}

// zapEmitter is the emission surface. *zapper.Emitter satisfies it.
type zapEmitter interface {
	Emit(ctx context.Context, eventID string, amountMsat int64, comment string) (*zapper.Result, error)
}

// sessionStore is the slice of *sessions.Store the facade touches. Narrow
// on purpose: the raw maps never leak past the sessions package.
type sessionStore interface {
	CreateOrUpdate(sessionID, eventID, linkURI, linkID string)
	Active(sessionID, eventID string) (sessions.EventLink, bool)
	Resolve(linkID string) (corr sessions.Correlation, active bool, ok bool)
	Touch(sessionID, eventID string)
	Deactivate(sessionID, eventID string) bool
}

// Service is the gateway facade: link provisioning, webhook correlation,
// and session lifecycle. An HTTP layer in front of it is expected to map
// its three operations onto routes.
type Service struct {
	cfg     Config
	store   sessionStore
	links   linkCreator
	emitter zapEmitter
	reaper  *sessions.Reaper
	log     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithStore replaces the session store. Used by tests.
func WithStore(store *sessions.Store) Option {
	return func(s *Service) { s.store = store }
}

// New wires a Service over the given collaborators. Call Start to begin
// background session reaping and Close on shutdown.
func New(cfg Config, links linkCreator, emitter zapEmitter, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		store:   sessions.NewStore(),
		links:   links,
		emitter: emitter,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Wrap the configured logger so the correlation fields carried in the
	// context reach every record.
	s.log = slog.New(logctx.Handler{Handler: s.log.Handler()})
	// The reaper needs the concrete store; a replacement store manages its
	// own eviction.
	if concrete, ok := s.store.(*sessions.Store); ok {
		s.reaper = sessions.NewReaper(concrete,
			sessions.WithSweepInterval(cfg.SweepInterval),
			sessions.WithIdleTTL(cfg.SessionTTL),
			sessions.WithReaperLogger(s.log),
		)
	}
	return s
}

// NewFromEnv builds a fully wired Service: config from the environment,
// LNbits for links and payments, and the bundled relay client as the
// event source.
func NewFromEnv(opts ...Option) (*Service, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	lnb, err := lnbits.NewFromEnv()
	if err != nil {
		return nil, err
	}
	source, err := relay.New(cfg.Relays)
	if err != nil {
		return nil, err
	}
	log := slog.New(logctx.Handler{Handler: slog.Default().Handler()})
	emitter := zapper.New(source, lnurl.NewClient(), lnb,
		zapper.WithRelays(cfg.Relays), zapper.WithLogger(log))
	return New(cfg, lnb, emitter, opts...), nil
}

// Start launches the session reaper.
func (s *Service) Start() {
	if s.reaper != nil {
		s.reaper.Start()
	}
}

// Close stops background work. The service remains usable for in-flight
// calls; it just stops reaping.
func (s *Service) Close() {
	if s.reaper != nil {
		s.reaper.Close()
	}
}

// EnableResult reports the payment link now bound to a (session, note)
// pair.
type EnableResult struct {
	LinkURI  string
	Existing bool
}

// Enable provisions (or reuses) a payment link for the pair. Reuse avoids
// orphaning a previously issued, still-payable link every time a client
// re-invokes enable for a note it is already showing.
func (s *Service) Enable(ctx context.Context, sessionID, eventID string) (*EnableResult, error) {
	if link, ok := s.store.Active(sessionID, eventID); ok {
		s.log.DebugContext(ctx, "reusing active payment link",
			"session_id", sessionID, "event_id", eventID, "link_id", link.LinkID)
		return &EnableResult{LinkURI: link.LinkURI, Existing: true}, nil
	}

	created, err := s.links.CreatePayLink(ctx, lnbits.PayLinkParams{
		Description: s.cfg.LinkDescription,
		Min:         s.cfg.MinSendableSats,
		Max:         s.cfg.MaxSendableSats,
		WebhookURL:  s.cfg.WebhookURL,
	})
	if err != nil {
		s.log.WarnContext(ctx, "payment link provisioning failed",
			"session_id", sessionID, "event_id", eventID, "error", err)
		return nil, &ProvisionError{Upstream: err.Error()}
	}

	s.store.CreateOrUpdate(sessionID, eventID, created.LNURL, created.ID)
	s.log.InfoContext(ctx, "payment link provisioned",
		"session_id", sessionID, "event_id", eventID, "link_id", created.ID)
	return &EnableResult{LinkURI: created.LNURL, Existing: false}, nil
}

// Disable deactivates the pair's link. Idempotent and always successful:
// disabling a link that was never enabled, or twice, is not an error. The
// link is retained until reaped so late webhooks are rejected explicitly.
func (s *Service) Disable(ctx context.Context, sessionID, eventID string) {
	wasActive := s.store.Deactivate(sessionID, eventID)
	s.log.DebugContext(ctx, "payment link disabled",
		"session_id", sessionID, "event_id", eventID, "was_active", wasActive)
}

// withLinkCtx attaches correlation fields for every log record downstream.
func withLinkCtx(ctx context.Context, corr sessions.Correlation, linkID string) context.Context {
	return logctx.WithLinkData(ctx, &logctx.LinkData{
		SessionID: corr.SessionID,
		EventID:   corr.EventID,
		LinkID:    linkID,
	})
}
