package bus

import (
	"log/slog"
	"sync"
)

// Alert lifecycle topics.
const (
	TopicAlertFired        = "alerts.fired"
	TopicAlertAcknowledged = "alerts.acknowledged"
	TopicAlertResolved     = "alerts.resolved"
)

// queueSize is the per-subscriber pending message depth.
const queueSize = 64

// Message is one published payload with its topic.
type Message struct {
	Topic   string
	Payload any
}

// Handler consumes messages for one subscription.
type Handler func(msg Message)

type subscriber struct {
	topic string
	ch    chan Message
}

// Bus fans out published messages to topic subscribers. Publish never
// blocks; each subscriber drains its own buffered queue on a dedicated
// goroutine.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []*subscriber
	closed bool
	wg     sync.WaitGroup
}

// New creates a Bus. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers fn for every message published to topic. The empty
// topic subscribes to everything.
func (b *Bus) Subscribe(topic string, fn Handler) {
	sub := &subscriber{topic: topic, ch: make(chan Message, queueSize)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subs = append(b.subs, sub)
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		for msg := range sub.ch {
			fn(msg)
		}
	}()
}

// Publish delivers payload to all subscribers of topic. Messages to
// subscribers with a full queue are dropped with a warning.
func (b *Bus) Publish(topic string, payload any) {
	msg := Message{Topic: topic, Payload: payload}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.topic != "" && sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.logger.Warn("bus: subscriber queue full, message dropped", "topic", topic)
		}
	}
}

// Close stops delivery and waits for subscriber goroutines to drain their
// queues. Publish and Subscribe after Close are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
}
