// Package notify turns matching outcomes into replies for the originating
// conversation. Sinks decide how (or whether) they are delivered.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/hubenschmidt/go-dupimg/match"
)

type Kind string

const (
	KindDuplicate Kind = "duplicate"
	KindClosest   Kind = "closest"
)

// Notification is a reply to the record that was matched.
type Notification struct {
	Partition core.PartitionID `json:"partition_id"`
	Kind      Kind             `json:"kind"`
	ReplyTo   core.RecordID    `json:"reply_to"`
	Distance  int              `json:"distance"`
}

// Text renders the notification as a chat reply.
func (n Notification) Text() string {
	switch n.Kind {
	case KindDuplicate:
		return fmt.Sprintf("duplicate image (dst %d).", n.Distance)
	case KindClosest:
		return fmt.Sprintf("closest match (dst %d).", n.Distance)
	}
	return ""
}

// FromOutcome returns the notification an outcome warrants, if any.
// Only Duplicate and Closest outcomes are worth telling anyone about.
func FromOutcome(partition core.PartitionID, out match.Outcome) (Notification, bool) {
	if out.Match == nil {
		return Notification{}, false
	}
	n := Notification{Partition: partition, ReplyTo: out.Match.Record, Distance: out.Match.Distance}
	switch out.Kind {
	case match.Duplicate:
		n.Kind = KindDuplicate
	case match.Closest:
		n.Kind = KindClosest
	default:
		return Notification{}, false
	}
	return n, true
}

// Sink delivers notifications.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, n Notification) error {
	logging.OrDefault(s.Logger).InfoContext(ctx, n.Text(),
		"partition", int64(n.Partition),
		"kind", string(n.Kind),
		"reply_to", int64(n.ReplyTo),
		"distance", n.Distance,
	)
	return nil
}

// Recorder keeps delivered notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Deliver(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

// Notifications returns a copy of everything delivered so far.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Multi delivers to every sink, stopping at the first error.
type Multi []Sink

func (m Multi) Deliver(ctx context.Context, n Notification) error {
	for _, s := range m {
		if err := s.Deliver(ctx, n); err != nil {
			return err
		}
	}
	return nil
}
