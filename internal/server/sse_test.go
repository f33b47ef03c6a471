package server

import (
	"testing"
	"time"

	"github.com/davidzheglov/longevity-knowledge-base/internal/agent"
)

func ev(kind agent.EventKind) agent.SessionEvent {
	return agent.SessionEvent{Kind: kind, Timestamp: time.Now().UTC(), SessionID: "s"}
}

func TestBroadcaster_ReplayThenLive(t *testing.T) {
	b := NewBroadcaster()
	b.Send(ev(agent.EventSessionStart))
	b.Send(ev(agent.EventUserInput))

	events, _, unsub := b.Subscribe()
	defer unsub()

	first := <-events
	second := <-events
	if first.Kind != agent.EventSessionStart || second.Kind != agent.EventUserInput {
		t.Fatalf("replay = %s, %s", first.Kind, second.Kind)
	}

	b.Send(ev(agent.EventAssistantText))
	live := <-events
	if live.Kind != agent.EventAssistantText {
		t.Fatalf("live = %s", live.Kind)
	}
}

func TestBroadcaster_CloseClosesClients(t *testing.T) {
	b := NewBroadcaster()
	events, done, unsub := b.Subscribe()
	defer unsub()

	b.Close()
	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel")
	}
	select {
	case <-done:
	default:
		t.Fatalf("done channel not closed")
	}
	// Close is idempotent.
	b.Close()
}

func TestBroadcaster_SubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster()
	b.Send(ev(agent.EventSessionStart))
	b.Close()

	events, done, _ := b.Subscribe()
	first, ok := <-events
	if !ok || first.Kind != agent.EventSessionStart {
		t.Fatalf("replay after close: %v %v", first.Kind, ok)
	}
	if _, ok := <-events; ok {
		t.Fatalf("expected closed channel after replay")
	}
	select {
	case <-done:
	default:
		t.Fatalf("done channel not closed")
	}
}

func TestBroadcaster_SlowClientDropped(t *testing.T) {
	b := NewBroadcaster()
	// Seed enough history to leave no live headroom is impractical; instead
	// subscribe, never read, and overflow the buffered channel.
	events, done, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 300; i++ {
		b.Send(ev(agent.EventToolCallStart))
	}

	// Drain until closed: the client was dropped once the buffer filled.
	n := 0
	for range events {
		n++
	}
	if n == 0 || n >= 300 {
		t.Fatalf("drained %d events", n)
	}
	select {
	case <-done:
		t.Fatalf("done must not close on slow-client drop")
	default:
	}
}

func TestBroadcaster_History(t *testing.T) {
	b := NewBroadcaster()
	b.Send(ev(agent.EventSessionStart))
	b.Send(ev(agent.EventSessionEnd))
	h := b.History()
	if len(h) != 2 || h[1].Kind != agent.EventSessionEnd {
		t.Fatalf("history = %+v", h)
	}
}
