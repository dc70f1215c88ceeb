package session

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/metrics"
)

func TestManager_Lifecycle(t *testing.T) {
	m := metrics.NewNop()
	renderers := map[string]*mockRenderer{}
	f := &mockFetcher{quote: 512}

	mgr := NewManager(func(id string) *Session {
		r := newMockRenderer()
		renderers[id] = r
		s := newTestSession(f, r, m)
		s.id = id
		return s
	}, zap.NewNop(), m)

	a := mgr.Create()
	b := mgr.Create()
	if a.ID() == b.ID() || mgr.Len() != 2 {
		t.Fatalf("expected two distinct sessions, got %q %q", a.ID(), b.ID())
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 2 {
		t.Errorf("active sessions gauge = %v, want 2", got)
	}

	if err := a.SubmitTicker(context.Background(), "SPY"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := mgr.Get(a.ID()); !ok || got != a {
		t.Error("Get did not return the created session")
	}

	if !mgr.Delete(a.ID()) {
		t.Fatal("expected delete to succeed")
	}
	if mgr.Delete(a.ID()) {
		t.Error("second delete should report missing session")
	}
	if a.Polling() || renderers[a.ID()].liveCount() != 0 {
		t.Error("deleted session still holds resources")
	}

	mgr.CloseAll()
	if mgr.Len() != 0 {
		t.Errorf("expected no sessions, got %d", mgr.Len())
	}
	if got := testutil.ToFloat64(m.ActiveSessions); got != 0 {
		t.Errorf("active sessions gauge = %v, want 0", got)
	}
}
