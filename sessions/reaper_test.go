package sessions

import (
	"sync"
	"testing"
	"time"
)

func TestReaperSweepsOnInterval(t *testing.T) {
	var mu sync.Mutex
	clock := time.Unix(1000, 0)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	s := NewStore(WithClock(now))
	s.CreateOrUpdate("sess-1", "ev-1", "uri-1", "link-1")

	mu.Lock()
	clock = clock.Add(2 * time.Hour)
	mu.Unlock()

	r := NewReaper(s, WithSweepInterval(5*time.Millisecond), WithIdleTTL(time.Hour))
	r.Start()
	defer r.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, ok := s.Resolve("link-1"); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("reaper never evicted the idle link")
}

func TestReaperCloseStopsSweeping(t *testing.T) {
	s := NewStore()
	r := NewReaper(s, WithSweepInterval(time.Millisecond))
	r.Start()
	r.Close()
	// Close must be idempotent and safe after stop.
	r.Close()
}

func TestReaperCloseWithoutStart(t *testing.T) {
	r := NewReaper(NewStore())
	r.Close()
}
