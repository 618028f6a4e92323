// Package event turns inbound chat messages into matching-policy calls.
// Each message is handled independently; no state is kept between calls.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/hubenschmidt/go-dupimg/match"
	"github.com/hubenschmidt/go-dupimg/notify"
)

// UnknownLabel names partitions that have neither a title nor a username.
const UnknownLabel = "<unknown>"

// Message is one inbound chat message.
type Message struct {
	Partition  core.PartitionID
	ID         core.RecordID
	Title      string
	Username   string
	Text       string
	Attachment match.Attachment
	// ReplyTo is the message this one replies to, if any.
	ReplyTo *Reference
}

// Reference is a previously seen message together with its attachment.
type Reference struct {
	ID         core.RecordID
	Attachment match.Attachment
}

// Label returns the display label recorded for the message's partition.
func (m Message) Label() string {
	switch {
	case m.Title != "":
		return m.Title
	case m.Username != "":
		return m.Username
	}
	return UnknownLabel
}

// IsDuplicateQuery reports whether the text asks for an explicit comparison.
// The text must be exactly "duplicate?" or "dup?".
func IsDuplicateQuery(text string) bool {
	switch text {
	case "duplicate?", "dup?":
		return true
	}
	return false
}

// Policy is the subset of match.Policy the dispatcher needs.
type Policy interface {
	Ingest(ctx context.Context, partition core.PartitionID, label string, record core.RecordID, img match.Attachment, threshold int) (match.Outcome, error)
	CompareAgainst(ctx context.Context, partition core.PartitionID, img match.Attachment, exclude core.RecordID) (match.Outcome, error)
}

// Result reports what happened to a message.
type Result struct {
	// Compare is set when the message asked for an explicit comparison.
	Compare *match.Outcome
	Ingest  match.Outcome
}

type Dispatcher struct {
	policy    Policy
	sink      notify.Sink
	threshold int
	logger    *slog.Logger
}

// NewDispatcher validates threshold and returns a dispatcher that delivers
// notifications to sink.
func NewDispatcher(policy Policy, sink notify.Sink, threshold int, logger *slog.Logger) (*Dispatcher, error) {
	if err := core.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	return &Dispatcher{
		policy:    policy,
		sink:      sink,
		threshold: threshold,
		logger:    logging.OrDefault(logger),
	}, nil
}

// WithSink returns a copy of d that delivers notifications to sink.
func (d *Dispatcher) WithSink(sink notify.Sink) *Dispatcher {
	c := *d
	c.sink = sink
	return &c
}

// Handle processes one message. A "duplicate?" reply first compares the
// referenced image against the rest of the partition; the message's own
// attachment is then ingested. Storage failures abort and are returned.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (Result, error) {
	var res Result

	if IsDuplicateQuery(msg.Text) && msg.ReplyTo != nil {
		out, err := d.policy.CompareAgainst(ctx, msg.Partition, msg.ReplyTo.Attachment, msg.ReplyTo.ID)
		if err != nil {
			return res, fmt.Errorf("compare message %d: %w", msg.ReplyTo.ID, err)
		}
		res.Compare = &out
		if err := d.notify(ctx, msg.Partition, out); err != nil {
			return res, err
		}
	}

	out, err := d.policy.Ingest(ctx, msg.Partition, msg.Label(), msg.ID, msg.Attachment, d.threshold)
	if err != nil {
		return res, fmt.Errorf("ingest message %d: %w", msg.ID, err)
	}
	res.Ingest = out

	if out.Kind == match.Recorded {
		d.logger.DebugContext(ctx, "new image recorded",
			"label", msg.Label(), "partition", int64(msg.Partition), "record", int64(msg.ID))
	}
	if err := d.notify(ctx, msg.Partition, out); err != nil {
		return res, err
	}
	return res, nil
}

func (d *Dispatcher) notify(ctx context.Context, partition core.PartitionID, out match.Outcome) error {
	n, ok := notify.FromOutcome(partition, out)
	if !ok || d.sink == nil {
		return nil
	}
	if err := d.sink.Deliver(ctx, n); err != nil {
		return fmt.Errorf("deliver %s notification: %w", n.Kind, err)
	}
	return nil
}
