package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

const (
	MessageTimerUpdate = "timer_update"
)

// Message is one server→client frame on a session's stream. The channel is
// derived from the session id and not part of the wire payload.
type Message struct {
	Channel   string    `json:"-"`
	Type      string    `json:"type"`
	SessionID uuid.UUID `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	State     any       `json:"state,omitempty"`
}

// SessionChannel names the hub channel carrying one session's snapshots.
func SessionChannel(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// TimerFrame wraps a timer snapshot in its wire frame.
func TimerFrame(sessionID uuid.UUID, state any) Message {
	return Message{
		Channel:   SessionChannel(sessionID),
		Type:      MessageTimerUpdate,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		State:     state,
	}
}

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
}

// Hub fans session snapshots out to live observers. Delivery is
// non-blocking: a full outbound buffer drops the frame rather than stalling
// the publisher or the session's timer loop.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "Hub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (hub *Hub) NewClient() *Client {
	return &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 16),
		done:     make(chan struct{}),
	}
}

func (hub *Hub) Subscribe(client *Client, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	client.Channels[channel] = true

	clients, exists := hub.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true

	hub.log.Debug("client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *Hub) Unsubscribe(client *Client, channel string) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	delete(client.Channels, channel)

	if subMap, ok := hub.subscriptions[channel]; ok {
		delete(subMap, client)
		if len(subMap) == 0 {
			delete(hub.subscriptions, channel)
		}
	}
	hub.log.Debug("client unsubscribed", "clientID", client.ID, "channel", channel)
}

func (hub *Hub) RemoveClient(client *Client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for ch := range client.Channels {
		if subMap, ok := hub.subscriptions[ch]; ok {
			delete(subMap, client)
			if len(subMap) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
}

func (hub *Hub) Broadcast(msg Message) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if msg.Channel == "" {
		return
	}
	clients, ok := hub.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			hub.log.Warn("dropping frame; outbound buffer full", "clientID", c.ID, "channel", msg.Channel)
		}
	}
}

// ObserverCount reports live observers on a channel.
func (hub *Hub) ObserverCount(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}

func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			raw, err := json.Marshal(msg)
			if err != nil {
				hub.log.Warn("failed to marshal frame", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func (hub *Hub) CloseClient(client *Client) {
	hub.RemoveClient(client)
	close(client.done)
	close(client.Outbound)
}
