package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studysprint/studysprint-backend/internal/platform/logger"
	"github.com/studysprint/studysprint-backend/internal/sse"
)

// SSEBus fans timer frames out across processes. With more than one backend
// replica, a client may hold its stream on a different process than the one
// running the session's timer; the bus makes every replica see every frame.
type SSEBus interface {
	Publish(ctx context.Context, msg sse.Message) error
	StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error
	Close() error
}

type redisSSEBus struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

func NewRedisSSEBus(log *logger.Logger) (SSEBus, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "timer"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisSSEBus{
		log:     log.With("service", "RedisSSEBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *redisSSEBus) Publish(ctx context.Context, msg sse.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisSSEBus) StartForwarder(ctx context.Context, onMsg func(m sse.Message)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var msg sse.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad redis timer payload", "error", err)
					continue
				}
				// Channel is not on the wire; every frame routes by session.
				msg.Channel = sse.SessionChannel(msg.SessionID)
				onMsg(msg)
			}
		}
	}()

	return nil
}

func (b *redisSSEBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

// framePublishBuffer bounds frames queued for the bus before drops.
const framePublishBuffer = 256

// NewFramePublisher builds the publish hook handed to the timer supervisor.
// With a bus, frames go through a buffered channel drained by one goroutine,
// so a slow or unreachable bus never stalls a timer task; a full queue drops
// the frame, the same policy the hub applies to a slow client. Without a
// bus, frames go straight to the local hub.
func NewFramePublisher(ctx context.Context, log *logger.Logger, bus SSEBus, hub *sse.Hub) func(TimerSnapshot) {
	if bus == nil {
		return func(snap TimerSnapshot) {
			hub.Broadcast(sse.TimerFrame(snap.SessionID, snap))
		}
	}

	frames := make(chan sse.Message, framePublishBuffer)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-frames:
				pubCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := bus.Publish(pubCtx, frame); err != nil {
					log.Warn("frame not published to bus", "session_id", frame.SessionID, "error", err)
				}
				cancel()
			}
		}
	}()

	return func(snap TimerSnapshot) {
		select {
		case frames <- sse.TimerFrame(snap.SessionID, snap):
		default:
			log.Warn("frame buffer full, dropping", "session_id", snap.SessionID)
		}
	}
}
