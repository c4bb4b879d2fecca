package core

import (
	"context"
	"testing"
)

func TestRegisterMarksUserOnline(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	conn := NewClient("conn-1")
	hub.Attach(conn)

	if cerr := hub.Register(ctx, conn, alice.ID); cerr != nil {
		t.Fatalf("register failed: %v", cerr)
	}

	got, err := st.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !got.Online || got.ConnID != "conn-1" {
		t.Fatalf("expected online with conn-1, got online=%v conn=%q", got.Online, got.ConnID)
	}
	if got.LastSeen != nil {
		t.Fatalf("last_seen should be cleared while online")
	}
}

func TestRegisterUnknownUser(t *testing.T) {
	hub, _ := newTestHub(t)
	conn := NewClient("conn-1")
	hub.Attach(conn)

	cerr := hub.Register(context.Background(), conn, 999)
	if cerr == nil || cerr.Code != ErrCodeValidationError {
		t.Fatalf("expected validation error, got %v", cerr)
	}
	if conn.UserID != 0 {
		t.Fatalf("connection must stay unauthenticated")
	}
}

func TestStaleDisconnectKeepsUserOnline(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")

	oldConn := NewClient("conn-old")
	hub.Attach(oldConn)
	if cerr := hub.Register(ctx, oldConn, alice.ID); cerr != nil {
		t.Fatalf("register old: %v", cerr)
	}

	newConn := NewClient("conn-new")
	hub.Attach(newConn)
	if cerr := hub.Register(ctx, newConn, alice.ID); cerr != nil {
		t.Fatalf("register new: %v", cerr)
	}

	// The old connection's delayed disconnect must not mark alice offline.
	hub.Disconnect(ctx, oldConn)

	got, err := st.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !got.Online {
		t.Fatalf("user must remain online after stale disconnect")
	}
	if c, ok := hub.registry.Resolve(alice.ID); !ok || c != newConn {
		t.Fatalf("registry must keep the new connection")
	}
	mustNoEvent(t, newConn.Events)
}

func TestDisconnectBroadcastsToAllPeers(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	carol := seedUser(t, st, "carol")

	aConn := NewClient("conn-a")
	bConn := NewClient("conn-b")
	cConn := NewClient("conn-c")
	for conn, user := range map[*Client]int64{aConn: alice.ID, bConn: bob.ID, cConn: carol.ID} {
		hub.Attach(conn)
		if cerr := hub.Register(ctx, conn, user); cerr != nil {
			t.Fatalf("register: %v", cerr)
		}
	}

	hub.Disconnect(ctx, aConn)

	// Every remaining connection hears it, not only a conversation peer.
	for _, conn := range []*Client{bConn, cConn} {
		ev := mustEvent(t, conn.Events, EventUserStatus)
		if ev.Status.UserID != alice.ID || ev.Status.Online {
			t.Fatalf("unexpected status event: %+v", ev.Status)
		}
		if ev.Status.Username != "alice" {
			t.Fatalf("expected username in broadcast, got %q", ev.Status.Username)
		}
		if ev.Status.LastSeen == nil {
			t.Fatalf("expected last_seen set on offline broadcast")
		}
	}

	got, err := st.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if got.Online || got.LastSeen == nil {
		t.Fatalf("expected offline with last_seen, got %+v", got)
	}
}

func TestDisconnectWithoutRegisterIsSilent(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	bob := seedUser(t, st, "bob")
	bConn := NewClient("conn-b")
	hub.Attach(bConn)
	if cerr := hub.Register(ctx, bConn, bob.ID); cerr != nil {
		t.Fatalf("register: %v", cerr)
	}

	anon := NewClient("conn-anon")
	hub.Attach(anon)
	hub.Disconnect(ctx, anon)

	mustNoEvent(t, bConn.Events)
}

func TestSendMessageDeliversToReceiverAndEchoesSender(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	aConn := NewClient("conn-a")
	bConn := NewClient("conn-b")
	hub.Attach(aConn)
	hub.Attach(bConn)
	if cerr := hub.Register(ctx, aConn, alice.ID); cerr != nil {
		t.Fatalf("register alice: %v", cerr)
	}
	if cerr := hub.Register(ctx, bConn, bob.ID); cerr != nil {
		t.Fatalf("register bob: %v", cerr)
	}

	if cerr := hub.SendMessage(ctx, aConn, alice.ID, bob.ID, "hi"); cerr != nil {
		t.Fatalf("send failed: %v", cerr)
	}

	for _, conn := range []*Client{bConn, aConn} {
		ev := mustEvent(t, conn.Events, EventReceiveMessage)
		msg := ev.Message
		if msg.Content != "hi" {
			t.Fatalf("unexpected content %q", msg.Content)
		}
		if msg.ID == 0 {
			t.Fatalf("expected generated id on hydrated message")
		}
		if msg.Sender.Username != "alice" || msg.Receiver.Username != "bob" {
			t.Fatalf("expected hydrated metadata, got %+v", msg)
		}
		if msg.CreatedAt.IsZero() {
			t.Fatalf("expected server-assigned timestamp")
		}
	}

	history, err := st.ListConversation(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly one persisted message, got %d", len(history))
	}
}

func TestSendMessageOfflineReceiverStillPersistsAndEchoes(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob") // never registers a connection

	aConn := NewClient("conn-a")
	hub.Attach(aConn)
	if cerr := hub.Register(ctx, aConn, alice.ID); cerr != nil {
		t.Fatalf("register alice: %v", cerr)
	}

	if cerr := hub.SendMessage(ctx, aConn, alice.ID, bob.ID, "you there?"); cerr != nil {
		t.Fatalf("send to offline receiver must not error, got %v", cerr)
	}

	ev := mustEvent(t, aConn.Events, EventReceiveMessage)
	if ev.Message.Content != "you there?" {
		t.Fatalf("unexpected echo %+v", ev.Message)
	}

	history, err := st.ListConversation(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected message persisted for offline receiver")
	}
}

func TestSendMessageUnauthenticated(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	anon := NewClient("conn-anon")
	hub.Attach(anon)

	cerr := hub.SendMessage(ctx, anon, alice.ID, bob.ID, "hi")
	if cerr == nil || cerr.Code != ErrCodeUnauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", cerr)
	}
}

func TestSendMessageSpoofedSenderRejected(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	aConn := NewClient("conn-a")
	hub.Attach(aConn)
	if cerr := hub.Register(ctx, aConn, alice.ID); cerr != nil {
		t.Fatalf("register alice: %v", cerr)
	}

	cerr := hub.SendMessage(ctx, aConn, bob.ID, alice.ID, "forged")
	if cerr == nil || cerr.Code != ErrCodeUnauthorized {
		t.Fatalf("expected unauthorized error, got %v", cerr)
	}

	history, err := st.ListConversation(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("spoofed send must persist nothing, got %d records", len(history))
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	aConn := NewClient("conn-a")
	hub.Attach(aConn)
	if cerr := hub.Register(ctx, aConn, alice.ID); cerr != nil {
		t.Fatalf("register alice: %v", cerr)
	}

	cerr := hub.SendMessage(ctx, aConn, alice.ID, bob.ID, "   ")
	if cerr == nil || cerr.Code != ErrCodeValidationError {
		t.Fatalf("expected validation error, got %v", cerr)
	}
}

func TestTypingForwardedToPeerOnly(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	carol := seedUser(t, st, "carol")

	aConn := NewClient("conn-a")
	bConn := NewClient("conn-b")
	cConn := NewClient("conn-c")
	for conn, user := range map[*Client]int64{aConn: alice.ID, bConn: bob.ID, cConn: carol.ID} {
		hub.Attach(conn)
		if cerr := hub.Register(ctx, conn, user); cerr != nil {
			t.Fatalf("register: %v", cerr)
		}
	}

	hub.NotifyTyping(aConn, alice.ID, bob.ID, true)

	ev := mustEvent(t, bConn.Events, EventTypingIndicator)
	if ev.Typing.SenderID != alice.ID || !ev.Typing.IsTyping {
		t.Fatalf("unexpected typing event: %+v", ev.Typing)
	}
	mustNoEvent(t, cConn.Events)
	mustNoEvent(t, aConn.Events)
}

func TestTypingToOfflineReceiverIsNoop(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	aConn := NewClient("conn-a")
	hub.Attach(aConn)
	if cerr := hub.Register(ctx, aConn, alice.ID); cerr != nil {
		t.Fatalf("register alice: %v", cerr)
	}

	hub.NotifyTyping(aConn, alice.ID, bob.ID, true)
	mustNoEvent(t, aConn.Events)
}

func TestTypingSpoofedSenderDropped(t *testing.T) {
	hub, st := newTestHub(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	aConn := NewClient("conn-a")
	bConn := NewClient("conn-b")
	hub.Attach(aConn)
	hub.Attach(bConn)
	if cerr := hub.Register(ctx, aConn, alice.ID); cerr != nil {
		t.Fatalf("register alice: %v", cerr)
	}
	if cerr := hub.Register(ctx, bConn, bob.ID); cerr != nil {
		t.Fatalf("register bob: %v", cerr)
	}

	hub.NotifyTyping(aConn, bob.ID, bob.ID, true)
	mustNoEvent(t, bConn.Events)
}
