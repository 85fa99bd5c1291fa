package zapgate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/nospay/zapgate/sessions"
)

// recordingStore counts reads so tests can assert the store was never
// consulted for invalid payloads.
type recordingStore struct {
	inner        *sessions.Store
	resolveCalls int
}

func (r *recordingStore) CreateOrUpdate(sessionID, eventID, linkURI, linkID string) {
	r.inner.CreateOrUpdate(sessionID, eventID, linkURI, linkID)
}

func (r *recordingStore) Active(sessionID, eventID string) (sessions.EventLink, bool) {
	return r.inner.Active(sessionID, eventID)
}

func (r *recordingStore) Resolve(linkID string) (sessions.Correlation, bool, bool) {
	r.resolveCalls++
	return r.inner.Resolve(linkID)
}

func (r *recordingStore) Touch(sessionID, eventID string) {
	r.inner.Touch(sessionID, eventID)
}

func (r *recordingStore) Deactivate(sessionID, eventID string) bool {
	return r.inner.Deactivate(sessionID, eventID)
}

func newWebhookFixture(t *testing.T) (*Service, *recordingStore, *fakeEmitter) {
	t.Helper()
	store := &recordingStore{inner: sessions.NewStore()}
	emitter := &fakeEmitter{}
	svc := New(testConfig(), &fakeLinks{}, emitter)
	svc.store = store
	return svc, store, emitter
}

func TestWebhookMissingLinkIDSkipsStore(t *testing.T) {
	svc, store, emitter := newWebhookFixture(t)

	_, err := svc.ProcessWebhook(context.Background(), []byte(`{"amount":1000}`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if store.resolveCalls != 0 {
		t.Fatalf("store consulted %d times for an invalid payload", store.resolveCalls)
	}
	if len(emitter.calls) != 0 {
		t.Fatal("emitter ran for an invalid payload")
	}
}

func TestWebhookMalformedJSON(t *testing.T) {
	svc, store, _ := newWebhookFixture(t)

	_, err := svc.ProcessWebhook(context.Background(), []byte(`not json`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if store.resolveCalls != 0 {
		t.Fatal("store consulted for malformed JSON")
	}
}

func TestWebhookUnknownLink(t *testing.T) {
	svc, _, emitter := newWebhookFixture(t)

	_, err := svc.ProcessWebhook(context.Background(), []byte(`{"lnurlp":"ghost"}`))
	var cerr *CorrelationError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected *CorrelationError, got %v", err)
	}
	if cerr.Reason != ReasonSessionNotFound {
		t.Fatalf("got reason %q", cerr.Reason)
	}
	if len(emitter.calls) != 0 {
		t.Fatal("emitter ran for an unknown link")
	}
}

func TestWebhookNumericLinkID(t *testing.T) {
	svc, store, emitter := newWebhookFixture(t)
	store.inner.CreateOrUpdate("fe1", "ev1", "uri", "7")

	res, err := svc.ProcessWebhook(context.Background(), []byte(`{"lnurlp":7,"amount":500}`))
	if err != nil {
		t.Fatalf("ProcessWebhook() failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("got %+v", res)
	}
	if len(emitter.calls) != 1 || emitter.calls[0].eventID != "ev1" {
		t.Fatalf("emitter calls %+v", emitter.calls)
	}
}

func TestWebhookAmountValidation(t *testing.T) {
	svc, _, _ := newWebhookFixture(t)

	for _, payload := range []string{
		`{"lnurlp":"x","amount":"a lot"}`,
		`{"lnurlp":"x","amount":-5}`,
		`{"lnurlp":"x","amount":{"msat":1}}`,
		`{"lnurlp":"x","amount":1000.9}`,
		`{"lnurlp":"x","amount":0.5}`,
	} {
		_, err := svc.ProcessWebhook(context.Background(), []byte(payload))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("payload %s: expected *ValidationError, got %v", payload, err)
		}
	}
}

func TestWebhookDefaultsSparseData(t *testing.T) {
	svc, store, emitter := newWebhookFixture(t)
	store.inner.CreateOrUpdate("fe1", "ev1", "uri", "abc")

	res, err := svc.ProcessWebhook(context.Background(), []byte(`{"lnurlp":"abc"}`))
	if err != nil {
		t.Fatalf("ProcessWebhook() failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("sparse webhook must still zap, got %+v", res)
	}
	if len(emitter.calls) != 1 {
		t.Fatalf("emitter called %d times", len(emitter.calls))
	}
	got := emitter.calls[0]
	if got.amountMsat != minAmountMsat {
		t.Fatalf("missing amount defaulted to %d, want %d", got.amountMsat, int64(minAmountMsat))
	}
	if got.comment != defaultComment {
		t.Fatalf("missing comment defaulted to %q", got.comment)
	}
}

func TestWebhookCommentCoercion(t *testing.T) {
	svc, store, emitter := newWebhookFixture(t)
	store.inner.CreateOrUpdate("fe1", "ev1", "uri", "abc")

	cases := []struct {
		payload string
		want    string
	}{
		{`{"lnurlp":"abc","comment":["gm","fren"]}`, "gm fren"},
		{`{"lnurlp":"abc","comment":42}`, "42"},
		{`{"lnurlp":"abc","comment":""}`, defaultComment},
		{`{"lnurlp":"abc","comment":"plain"}`, "plain"},
	}
	for i, tc := range cases {
		if _, err := svc.ProcessWebhook(context.Background(), []byte(tc.payload)); err != nil {
			t.Fatalf("case %d: ProcessWebhook() failed: %v", i, err)
		}
		if got := emitter.calls[len(emitter.calls)-1].comment; got != tc.want {
			t.Errorf("case %d: comment %q, want %q", i, got, tc.want)
		}
	}
}

func TestWebhookEmitterFailureIsSoft(t *testing.T) {
	svc, store, emitter := newWebhookFixture(t)
	store.inner.CreateOrUpdate("fe1", "ev1", "uri", "abc")
	emitter.err = errors.New("discovery failed")

	res, err := svc.ProcessWebhook(context.Background(), []byte(`{"lnurlp":"abc","amount":1000}`))
	if err != nil {
		t.Fatalf("an emission failure must not fail the webhook, got %v", err)
	}
	if !res.OK {
		t.Fatal("result must report OK for an already captured payment")
	}
	if res.Message != "payment received, zap publish failed" {
		t.Fatalf("got message %q", res.Message)
	}
}

func TestWebhookTouchesLink(t *testing.T) {
	svc, store, _ := newWebhookFixture(t)
	store.inner.CreateOrUpdate("fe1", "ev1", "uri", "abc")

	before, _ := store.inner.Get("fe1")
	if _, err := svc.ProcessWebhook(context.Background(), []byte(`{"lnurlp":"abc"}`)); err != nil {
		t.Fatalf("ProcessWebhook() failed: %v", err)
	}
	after, _ := store.inner.Get("fe1")
	if after.Links["ev1"].LastSeenAt.Before(before.Links["ev1"].LastSeenAt) {
		t.Fatal("webhook did not refresh LastSeenAt")
	}
}

// capturingHandler records every slog record it handles.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capturingHandler) WithGroup(string) slog.Handler      { return h }

func TestWebhookLogsCarryCorrelation(t *testing.T) {
	h := &capturingHandler{}
	store := sessions.NewStore()
	svc := New(testConfig(), &fakeLinks{}, &fakeEmitter{},
		WithStore(store), WithLogger(slog.New(h)))
	store.CreateOrUpdate("fe1", "ev1", "uri", "abc")

	if _, err := svc.ProcessWebhook(context.Background(), []byte(`{"lnurlp":"abc","amount":1000}`)); err != nil {
		t.Fatalf("ProcessWebhook() failed: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	found := false
	for _, r := range h.records {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "link" {
				found = true
				return false
			}
			return true
		})
	}
	if !found {
		t.Fatalf("no log record carried the link correlation group (records=%d)", len(h.records))
	}
}

func TestWebhookDuplicateWhileActiveEmitsTwice(t *testing.T) {
	// Documented limitation: the active flag is the only dedup fence, so a
	// provider redelivering while the link is active triggers a second
	// emission.
	svc, store, emitter := newWebhookFixture(t)
	store.inner.CreateOrUpdate("fe1", "ev1", "uri", "abc")

	payload := []byte(`{"lnurlp":"abc","amount":1000}`)
	if _, err := svc.ProcessWebhook(context.Background(), payload); err != nil {
		t.Fatalf("first webhook failed: %v", err)
	}
	if _, err := svc.ProcessWebhook(context.Background(), payload); err != nil {
		t.Fatalf("second webhook failed: %v", err)
	}
	if len(emitter.calls) != 2 {
		t.Fatalf("emitter called %d times, want 2", len(emitter.calls))
	}
}
