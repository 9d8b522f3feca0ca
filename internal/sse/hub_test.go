package sse

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewHub(log)
}

func TestBroadcastReachesAllObservers(t *testing.T) {
	hub := newTestHub(t)
	sessionID := uuid.New()
	channel := SessionChannel(sessionID)

	a := hub.NewClient()
	b := hub.NewClient()
	hub.Subscribe(a, channel)
	hub.Subscribe(b, channel)

	msg := Message{Channel: channel, Type: MessageTimerUpdate, SessionID: sessionID, Timestamp: time.Now()}
	hub.Broadcast(msg)

	for _, c := range []*Client{a, b} {
		select {
		case got := <-c.Outbound:
			if got.SessionID != sessionID || got.Type != MessageTimerUpdate {
				t.Fatalf("unexpected frame: %+v", got)
			}
		default:
			t.Fatalf("client %v did not receive the frame", c.ID)
		}
	}
}

func TestBroadcastSkipsOtherSessions(t *testing.T) {
	hub := newTestHub(t)
	mine := uuid.New()
	other := uuid.New()

	c := hub.NewClient()
	hub.Subscribe(c, SessionChannel(mine))

	hub.Broadcast(Message{Channel: SessionChannel(other), Type: MessageTimerUpdate, SessionID: other})
	select {
	case got := <-c.Outbound:
		t.Fatalf("received frame for another session: %+v", got)
	default:
	}
}

func TestSlowObserverNeverBlocksOthers(t *testing.T) {
	hub := newTestHub(t)
	sessionID := uuid.New()
	channel := SessionChannel(sessionID)

	slow := hub.NewClient()
	fast := hub.NewClient()
	hub.Subscribe(slow, channel)
	hub.Subscribe(fast, channel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Twice the outbound buffer: the slow client's buffer fills and
		// overflow frames are dropped, never stalling this loop.
		for i := 0; i < 2*cap(slow.Outbound); i++ {
			hub.Broadcast(Message{Channel: channel, Type: MessageTimerUpdate, SessionID: sessionID})
			<-fast.Outbound
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("broadcast blocked on a slow observer")
	}
	if got := len(slow.Outbound); got != cap(slow.Outbound) {
		t.Fatalf("expected slow client buffer full at %d, got %d", cap(slow.Outbound), got)
	}
}

func TestObserverCount(t *testing.T) {
	hub := newTestHub(t)
	sessionID := uuid.New()
	channel := SessionChannel(sessionID)

	if got := hub.ObserverCount(channel); got != 0 {
		t.Fatalf("expected 0 observers, got %d", got)
	}

	a := hub.NewClient()
	b := hub.NewClient()
	hub.Subscribe(a, channel)
	hub.Subscribe(b, channel)
	if got := hub.ObserverCount(channel); got != 2 {
		t.Fatalf("expected 2 observers, got %d", got)
	}

	hub.Unsubscribe(a, channel)
	if got := hub.ObserverCount(channel); got != 1 {
		t.Fatalf("expected 1 observer after unsubscribe, got %d", got)
	}

	hub.RemoveClient(b)
	if got := hub.ObserverCount(channel); got != 0 {
		t.Fatalf("expected 0 observers after removal, got %d", got)
	}
}

func TestRemoveClientLeavesOthersSubscribed(t *testing.T) {
	hub := newTestHub(t)
	sessionID := uuid.New()
	channel := SessionChannel(sessionID)

	a := hub.NewClient()
	b := hub.NewClient()
	hub.Subscribe(a, channel)
	hub.Subscribe(b, channel)

	hub.CloseClient(a)
	hub.Broadcast(Message{Channel: channel, Type: MessageTimerUpdate, SessionID: sessionID})

	select {
	case <-b.Outbound:
	default:
		t.Fatalf("remaining observer lost the stream")
	}
}
