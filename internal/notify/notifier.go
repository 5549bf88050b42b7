// Package notify delivers operator alerts to one or more channels (Telegram,
// Discord, plain webhooks). Alerts enter through a bounded queue so callers
// on the trading path never block on a slow channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// event is one queued alert.
type event struct {
	name    string
	payload map[string]any
}

// Notifier fans alerts out to all registered senders. Notify is
// fire-and-forget: it enqueues and returns immediately, and drops the alert
// with a logged warning when the queue is full. A set of allowed event names
// filters what operators receive; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	queue   chan event
	timeout time.Duration
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// named in the events slice pass the filter; an empty slice allows all.
// queueSize bounds the number of undelivered alerts.
func NewNotifier(senders []Sender, events []string, queueSize int, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		queue:   make(chan event, queueSize),
		timeout: 10 * time.Second,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify enqueues an alert for delivery. Never blocks: a full queue drops the
// alert.
func (n *Notifier) Notify(name string, payload map[string]any) {
	if len(n.events) > 0 && !n.events[name] {
		return
	}
	select {
	case n.queue <- event{name: name, payload: payload}:
	default:
		n.logger.Warn("notification queue full, dropping alert",
			slog.String("event", name))
	}
}

// Run drains the queue until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-n.queue:
			n.deliver(ev)
		}
	}
}

func (n *Notifier) deliver(ev event) {
	if len(n.senders) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	title, message := format(ev)
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", ev.name),
				slog.String("error", err.Error()))
		}
	}
}

// format renders the event name as the title and the payload as sorted
// key: value lines.
func format(ev event) (title, message string) {
	title = strings.ReplaceAll(ev.name, "_", " ")

	keys := make([]string, 0, len(ev.payload))
	for k := range ev.payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, ev.payload[k])
	}
	return title, strings.TrimRight(b.String(), "\n")
}
