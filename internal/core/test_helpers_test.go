package core

import (
	"context"
	"testing"
	"time"

	"github.com/chatline/chatline-server/internal/log"
	"github.com/chatline/chatline-server/internal/store"
	"github.com/chatline/chatline-server/internal/store/sqlite"
)

func newTestHub(t testing.TB) (*Hub, store.Store) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := NewHub(st, NewRegistry(), log.Nop(), 2*time.Second)
	return hub, st
}

func seedUser(t testing.TB, st store.Store, username string) *store.User {
	t.Helper()

	user, err := st.EnsureUser(context.Background(), username)
	if err != nil {
		t.Fatalf("failed to seed user %s: %v", username, err)
	}
	return user
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("expected no event, got kind %v", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}
