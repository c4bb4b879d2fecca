package core

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkDirectMessage(b *testing.B, idleClients int) {
	hub, st := newTestHub(b)
	ctx := context.Background()

	alice := seedUser(b, st, "alice")
	bob := seedUser(b, st, "bob")

	sender := NewClient("bench-sender")
	hub.Attach(sender)
	if cerr := hub.Register(ctx, sender, alice.ID); cerr != nil {
		b.Fatalf("register sender: %v", cerr)
	}

	receiver := NewClient("bench-receiver")
	hub.Attach(receiver)
	if cerr := hub.Register(ctx, receiver, bob.ID); cerr != nil {
		b.Fatalf("register receiver: %v", cerr)
	}

	// Extra connected users to size the registry realistically.
	for i := 0; i < idleClients; i++ {
		u := seedUser(b, st, fmt.Sprintf("idle%d", i))
		c := NewClient(fmt.Sprintf("bench-idle-%d", i))
		hub.Attach(c)
		if cerr := hub.Register(ctx, c, u.ID); cerr != nil {
			b.Fatalf("register idle client: %v", cerr)
		}
	}

	// Keep the sender's echo channel drained.
	go func() {
		for range sender.Events {
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if cerr := hub.SendMessage(ctx, sender, alice.ID, bob.ID, "payload"); cerr != nil {
			b.Fatalf("send message: %v", cerr)
		}
		<-receiver.Events
	}
}

func BenchmarkDirectMessage_2(b *testing.B)   { benchmarkDirectMessage(b, 0) }
func BenchmarkDirectMessage_50(b *testing.B)  { benchmarkDirectMessage(b, 48) }
func BenchmarkDirectMessage_500(b *testing.B) { benchmarkDirectMessage(b, 498) }
