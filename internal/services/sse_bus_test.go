package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/sse"
	"github.com/studysprint/studysprint-backend/internal/testutil"
)

type stubBus struct {
	published chan sse.Message
	block     chan struct{}
}

func (b *stubBus) Publish(ctx context.Context, msg sse.Message) error {
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.published <- msg
	return nil
}

func (b *stubBus) StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error {
	return nil
}

func (b *stubBus) Close() error { return nil }

func TestFramePublisherDeliversToBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := &stubBus{published: make(chan sse.Message, 1)}
	publish := NewFramePublisher(ctx, testutil.Logger(t), bus, sse.NewHub(testutil.Logger(t)))

	id := uuid.New()
	publish(TimerSnapshot{SessionID: id, ActiveSeconds: 30})

	select {
	case msg := <-bus.published:
		if msg.SessionID != id {
			t.Fatalf("wrong session on frame: %v", msg.SessionID)
		}
		if msg.Type != sse.MessageTimerUpdate {
			t.Fatalf("wrong frame type: %s", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("frame never reached the bus")
	}
}

func TestFramePublisherNeverBlocksCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Publish hangs until released, standing in for an unreachable redis.
	bus := &stubBus{published: make(chan sse.Message, framePublishBuffer+8), block: make(chan struct{})}
	publish := NewFramePublisher(ctx, testutil.Logger(t), bus, sse.NewHub(testutil.Logger(t)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < framePublishBuffer+16; i++ {
			publish(TimerSnapshot{SessionID: uuid.New()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked the caller while the bus was stuck")
	}
	close(bus.block)
}

func TestFramePublisherFallsBackToHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := sse.NewHub(testutil.Logger(t))
	id := uuid.New()
	client := hub.NewClient()
	hub.Subscribe(client, sse.SessionChannel(id))
	defer hub.CloseClient(client)

	publish := NewFramePublisher(ctx, testutil.Logger(t), nil, hub)
	publish(TimerSnapshot{SessionID: id})

	select {
	case msg := <-client.Outbound:
		if msg.SessionID != id {
			t.Fatalf("wrong session on frame: %v", msg.SessionID)
		}
	default:
		t.Fatalf("frame never reached the local hub")
	}
}
