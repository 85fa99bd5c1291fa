package sessions

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultSweepInterval is how often the reaper walks the store.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultIdleTTL is how long a link may sit untouched before eviction.
	DefaultIdleTTL = time.Hour
)

// Reaper periodically evicts idle links from a Store. It is an explicitly
// started and stopped background task owned by the service lifecycle, not
// a side effect of construction.
type Reaper struct {
	store    *Store
	interval time.Duration
	idleTTL  time.Duration
	log      *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	done      chan struct{}
	stopped   chan struct{}
}

// ReaperOption configures a Reaper.
type ReaperOption func(*Reaper)

// WithSweepInterval overrides the sweep cadence.
func WithSweepInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) { r.interval = d }
}

// WithIdleTTL overrides the idle threshold.
func WithIdleTTL(d time.Duration) ReaperOption {
	return func(r *Reaper) { r.idleTTL = d }
}

// WithReaperLogger sets the logger.
func WithReaperLogger(log *slog.Logger) ReaperOption {
	return func(r *Reaper) { r.log = log }
}

// NewReaper builds a Reaper over the given store. Call Start to begin
// sweeping and Close to stop.
func NewReaper(store *Store, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		store:    store,
		interval: DefaultSweepInterval,
		idleTTL:  DefaultIdleTTL,
		log:      slog.Default(),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background sweep loop. Subsequent calls are no-ops.
func (r *Reaper) Start() {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.run()
	})
}

// Close stops the sweep loop and waits for the in-flight sweep, if any, to
// finish. Safe to call more than once and without a prior Start.
func (r *Reaper) Close() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	if r.started.Load() {
		<-r.stopped
	}
}

func (r *Reaper) run() {
	defer close(r.stopped)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			links, sessionsRemoved := r.store.Sweep(r.idleTTL)
			if links > 0 || sessionsRemoved > 0 {
				r.log.Info("reaped idle payment sessions",
					"links", links,
					"sessions", sessionsRemoved)
			}
		}
	}
}
