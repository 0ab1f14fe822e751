package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/threadwell/conversation-service/internal/events"
	"github.com/threadwell/conversation-service/internal/observability"
)

// frameBuffer bounds how far a slow client may fall behind before it is
// dropped.
const frameBuffer = 64

// Broadcaster fans events out to every open streaming connection. There is no
// persistence or replay: a client that connects after an event missed it and
// catches up with a list reload. Every event goes to every connection;
// clients filter client-side.
type Broadcaster struct {
	mu      sync.Mutex
	conns   map[int64]chan []byte
	nextID  int64
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewBroadcaster builds an empty registry.
func NewBroadcaster(logger *zap.Logger, metrics *observability.Metrics) *Broadcaster {
	return &Broadcaster{
		conns:   make(map[int64]chan []byte),
		logger:  logger,
		metrics: metrics,
	}
}

// streamedTypes are the dispatcher events forwarded onto the wire.
var streamedTypes = []events.EventType{
	events.EventNewTicket,
	events.EventTicketUpdate,
	events.EventNewMessage,
	events.EventMessageDeleted,
	events.EventViewerJoined,
	events.EventViewerLeft,
	events.EventUserComposing,
}

// Register subscribes the broadcaster to every streamed event type.
func (b *Broadcaster) Register(dispatcher events.Dispatcher) {
	for _, t := range streamedTypes {
		dispatcher.Subscribe(t, b.handleEvent)
	}
}

func (b *Broadcaster) handleEvent(ctx context.Context, event events.Event) error {
	b.Broadcast(event.Type, event.Payload)
	return nil
}

// Subscribe registers a new connection and returns its handle and frame
// channel. The channel closes when the connection is dropped server-side.
func (b *Broadcaster) Subscribe() (int64, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan []byte, frameBuffer)
	b.conns[id] = ch
	return id, ch
}

// Unsubscribe removes a connection. Safe to call twice.
func (b *Broadcaster) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.conns[id]; ok {
		delete(b.conns, id)
		close(ch)
	}
}

// ConnectionCount reports how many connections are open.
func (b *Broadcaster) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Broadcast frames the event and queues it on every open connection. A
// connection whose buffer is full is dropped; one stuck client must never
// block delivery to the rest.
func (b *Broadcaster) Broadcast(eventType events.EventType, payload any) {
	frame, err := Frame(string(eventType), payload)
	if err != nil {
		b.logger.Error("marshal stream event", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}

	b.mu.Lock()
	var stuck []int64
	delivered := 0
	for id, ch := range b.conns {
		select {
		case ch <- frame:
			delivered++
		default:
			stuck = append(stuck, id)
		}
	}
	for _, id := range stuck {
		if ch, ok := b.conns[id]; ok {
			delete(b.conns, id)
			close(ch)
		}
	}
	b.mu.Unlock()

	b.metrics.RecordBroadcast(string(eventType), delivered)
	for _, id := range stuck {
		b.logger.Warn("dropped stalled stream connection", zap.Int64("connection_id", id))
	}
}

// Frame renders one SSE frame: `event: <type>\ndata: <json>\n\n`.
func Frame(eventType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)), nil
}

// ConnectedFrame is the initial frame sent on every new connection.
func ConnectedFrame() []byte {
	return []byte("data: {\"type\":\"connected\"}\n\n")
}

// KeepAliveFrame is a comment-only line ignored by conforming clients; it
// keeps intermediaries from idle-closing the connection.
func KeepAliveFrame() []byte {
	return []byte(": keep-alive\n\n")
}
