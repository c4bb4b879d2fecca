package core

import "testing"

func TestRegistryBindResolve(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Resolve(1); ok {
		t.Fatalf("expected no binding for unknown user")
	}

	a := NewClient("conn-a")
	r.Bind(1, a)

	got, ok := r.Resolve(1)
	if !ok || got != a {
		t.Fatalf("expected client a, got %v (ok=%v)", got, ok)
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	r := NewRegistry()
	a := NewClient("conn-a")
	b := NewClient("conn-b")

	r.Bind(1, a)
	r.Bind(1, b)

	if r.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", r.Len())
	}
	got, ok := r.Resolve(1)
	if !ok || got != b {
		t.Fatalf("expected replacement client, got %v (ok=%v)", got, ok)
	}
}

func TestRegistryUnbindOnlyIfCurrent(t *testing.T) {
	r := NewRegistry()
	a := NewClient("conn-a")
	b := NewClient("conn-b")

	r.Bind(1, a)
	r.Bind(1, b)

	// Stale disconnect from the displaced connection must not clobber the
	// fresh binding.
	if r.Unbind(1, a) {
		t.Fatalf("stale unbind should report false")
	}
	if got, ok := r.Resolve(1); !ok || got != b {
		t.Fatalf("expected user still bound to new client")
	}

	if !r.Unbind(1, b) {
		t.Fatalf("current unbind should report true")
	}
	if _, ok := r.Resolve(1); ok {
		t.Fatalf("expected binding removed")
	}
}

func TestRegistryUnbindUnknownUser(t *testing.T) {
	r := NewRegistry()
	if r.Unbind(42, NewClient("conn-x")) {
		t.Fatalf("unbind of unknown user should report false")
	}
}
