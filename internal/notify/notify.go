// Package notify delivers rendered playbook notifications to external
// channels. Dispatch is fire-and-forget from the automation engine's
// perspective; delivery failures are logged, never propagated.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// ErrUnknownChannel is returned when no channel is registered under
// the requested name.
var ErrUnknownChannel = errors.New("unknown notification channel")

// Message is a rendered notification ready for delivery.
type Message struct {
	Channel    string          `json:"channel"`
	Subject    string          `json:"subject"`
	Body       string          `json:"body"`
	Severity   schema.Severity `json:"severity"`
	Recipients []string        `json:"recipients,omitempty"`
	IncidentID string          `json:"incident_id,omitempty"`
}

// Channel delivers messages to one external destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Notifier accepts rendered messages for delivery.
type Notifier interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Dispatcher routes messages to registered channels by name.
type Dispatcher struct {
	mu       sync.RWMutex
	channels map[string]Channel
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		channels: make(map[string]Channel),
		logger:   logger,
	}
}

// Register adds a channel under its own name.
func (d *Dispatcher) Register(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[ch.Name()] = ch
	d.logger.Info("registered notification channel", "name", ch.Name())
}

// Dispatch delivers a message to the named channel. An unregistered
// channel name is an error for the caller to log; the automation engine
// treats all dispatch outcomes as fire-and-forget.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	d.mu.RLock()
	ch, ok := d.channels[msg.Channel]
	d.mu.RUnlock()

	if !ok {
		return ErrUnknownChannel
	}

	if err := ch.Send(ctx, msg); err != nil {
		d.logger.Error("notification delivery failed",
			"channel", msg.Channel,
			"subject", msg.Subject,
			"error", err)
		return err
	}

	d.logger.Debug("notification delivered", "channel", msg.Channel, "subject", msg.Subject)
	return nil
}

// ChannelNames returns the registered channel names.
func (d *Dispatcher) ChannelNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.channels))
	for name := range d.channels {
		names = append(names, name)
	}
	return names
}
