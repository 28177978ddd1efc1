package alerts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flarewatch/flarewatch/internal/metrics"
)

// ChannelType selects the delivery mechanism for a channel.
type ChannelType string

// Channel types.
const (
	ChannelConsole ChannelType = "console"
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
	ChannelCustom  ChannelType = "custom"
)

// dispatchTimeout bounds a single channel delivery.
const dispatchTimeout = 10 * time.Second

// Channel is one registered notification target.
type Channel struct {
	// ID uniquely identifies the channel. Assigned when empty.
	ID   string      `json:"id" yaml:"id"`
	Name string      `json:"name" yaml:"name"`
	Type ChannelType `json:"type" yaml:"type"`

	// Config carries type-specific settings. Webhook channels read
	// "format" (slack|teams|pagerduty|http), and "url_env" (environment
	// variable holding the target URL) or "url". Custom channels read
	// "sender", the name of a registered sender function.
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`

	Enabled bool `json:"enabled" yaml:"enabled"`
}

// CustomSender delivers an alert for a custom channel.
type CustomSender func(ctx context.Context, a Alert) error

// Notifier fans alerts out to registered channels. Safe for concurrent use.
type Notifier struct {
	logger  *slog.Logger
	client  *http.Client
	console io.Writer
	timeout time.Duration

	mu       sync.RWMutex
	channels map[string]Channel
	senders  map[string]CustomSender
}

// NewNotifier creates a Notifier. A nil logger falls back to slog.Default;
// console output goes to stdout.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:   logger,
		client:   &http.Client{Timeout: dispatchTimeout},
		console:  os.Stdout,
		timeout:  dispatchTimeout,
		channels: make(map[string]Channel),
		senders:  make(map[string]CustomSender),
	}
}

// AddChannel registers ch, assigning an id when empty, and returns the
// stored channel.
func (n *Notifier) AddChannel(ch Channel) (Channel, error) {
	if ch.Name == "" {
		return Channel{}, fmt.Errorf("channel: name is required")
	}
	switch ch.Type {
	case ChannelConsole, ChannelEmail, ChannelWebhook, ChannelCustom:
	default:
		return Channel{}, fmt.Errorf("channel %q: type %q unknown: want console|email|webhook|custom", ch.Name, ch.Type)
	}
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}

	n.mu.Lock()
	n.channels[ch.ID] = ch
	n.mu.Unlock()
	return ch, nil
}

// RemoveChannel deletes the channel with the given id. Unknown ids are
// no-ops.
func (n *Notifier) RemoveChannel(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.channels[id]; !ok {
		return false
	}
	delete(n.channels, id)
	return true
}

// Channels returns all registered channels sorted by name.
func (n *Notifier) Channels() []Channel {
	n.mu.RLock()
	out := make([]Channel, 0, len(n.channels))
	for _, ch := range n.channels {
		out = append(out, ch)
	}
	n.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegisterSender registers fn for custom channels whose config names it.
func (n *Notifier) RegisterSender(name string, fn CustomSender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.senders[name] = fn
}

// Dispatch delivers a to every enabled channel. Each channel runs on its
// own goroutine under a bounded timeout; Dispatch returns when all channels
// have finished or timed out. Failures are logged and isolated per channel.
func (n *Notifier) Dispatch(a Alert) {
	n.mu.RLock()
	targets := make([]Channel, 0, len(n.channels))
	for _, ch := range n.channels {
		if ch.Enabled {
			targets = append(targets, ch)
		}
	}
	n.mu.RUnlock()

	var wg sync.WaitGroup
	for _, ch := range targets {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()

			if err := n.send(ctx, ch, a); err != nil {
				metrics.ObserveNotification(string(ch.Type), metrics.OutcomeFailed)
				n.logger.Error("alerts: notification delivery failed",
					"channel", ch.Name,
					"type", ch.Type,
					"alert", a.ID,
					"err", err,
				)
				return
			}
			metrics.ObserveNotification(string(ch.Type), metrics.OutcomeSent)
		}(ch)
	}
	wg.Wait()
}

func (n *Notifier) send(ctx context.Context, ch Channel, a Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()

	switch ch.Type {
	case ChannelConsole:
		return n.sendConsole(a)
	case ChannelWebhook:
		return n.sendWebhook(ctx, ch, a)
	case ChannelEmail:
		// Email transport is an external collaborator; recognized but not
		// delivered from here.
		return fmt.Errorf("email delivery not implemented")
	case ChannelCustom:
		return n.sendCustom(ctx, ch, a)
	default:
		return fmt.Errorf("channel type %q unknown", ch.Type)
	}
}

func (n *Notifier) sendConsole(a Alert) error {
	_, err := fmt.Fprintf(n.console, "[%s] %s (%s) alert %s: %s\n",
		severityLabel(a.Severity), a.Name, a.Status, a.ID, a.Description)
	return err
}

func (n *Notifier) sendCustom(ctx context.Context, ch Channel, a Alert) error {
	name := ch.Config["sender"]
	if name == "" {
		return fmt.Errorf("custom channel %q: config.sender is required", ch.Name)
	}
	n.mu.RLock()
	fn, ok := n.senders[name]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("custom sender %q not registered", name)
	}
	return fn(ctx, a)
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "CRITICAL"
	case "warning":
		return "WARNING"
	default:
		return "INFO"
	}
}
