package server

import (
	"fmt"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/event"
	"github.com/hubenschmidt/go-dupimg/match"
	"github.com/hubenschmidt/go-dupimg/notify"
)

// AttachmentInfo carries image bytes as base64 in JSON.
type AttachmentInfo struct {
	Kind string `json:"kind"`
	MIME string `json:"mime,omitempty"`
	Data []byte `json:"data"`
}

type ReferenceInfo struct {
	MessageID  int64           `json:"message_id"`
	Attachment *AttachmentInfo `json:"attachment,omitempty"`
}

type EventRequest struct {
	PartitionID int64           `json:"partition_id"`
	MessageID   int64           `json:"message_id"`
	Title       string          `json:"title,omitempty"`
	Username    string          `json:"username,omitempty"`
	Text        string          `json:"text,omitempty"`
	Attachment  *AttachmentInfo `json:"attachment,omitempty"`
	ReplyTo     *ReferenceInfo  `json:"reply_to,omitempty"`
}

type OutcomeInfo struct {
	Outcome     match.OutcomeKind `json:"outcome"`
	Match       *core.Match       `json:"match,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
}

type Reply struct {
	notify.Notification
	Text string `json:"text"`
}

type EventResponse struct {
	Compare *OutcomeInfo `json:"compare,omitempty"`
	Ingest  OutcomeInfo  `json:"ingest"`
	Replies []Reply      `json:"replies"`
}

type PartitionInfo struct {
	PartitionID int64  `json:"partition_id"`
	Label       string `json:"label,omitempty"`
	Known       bool   `json:"known"`
	Images      int    `json:"images"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (a *AttachmentInfo) toAttachment() (match.Attachment, error) {
	if a == nil {
		return match.Attachment{}, nil
	}
	switch kind := match.Kind(a.Kind); kind {
	case match.KindPhoto:
		return match.Photo(a.Data), nil
	case match.KindDocument:
		return match.Document(a.MIME, a.Data), nil
	case match.KindNone:
		return match.Attachment{}, nil
	default:
		return match.Attachment{}, fmt.Errorf("unknown attachment kind %q", a.Kind)
	}
}

func (r EventRequest) toMessage() (event.Message, error) {
	att, err := r.Attachment.toAttachment()
	if err != nil {
		return event.Message{}, err
	}

	msg := event.Message{
		Partition:  core.PartitionID(r.PartitionID),
		ID:         core.RecordID(r.MessageID),
		Title:      r.Title,
		Username:   r.Username,
		Text:       r.Text,
		Attachment: att,
	}
	if r.ReplyTo != nil {
		ref, err := r.ReplyTo.Attachment.toAttachment()
		if err != nil {
			return event.Message{}, fmt.Errorf("reply_to: %w", err)
		}
		msg.ReplyTo = &event.Reference{ID: core.RecordID(r.ReplyTo.MessageID), Attachment: ref}
	}
	return msg, nil
}

func outcomeInfo(out match.Outcome) OutcomeInfo {
	info := OutcomeInfo{Outcome: out.Kind, Match: out.Match}
	if out.Kind != match.NotAnImage {
		info.Fingerprint = out.Fingerprint.String()
	}
	return info
}

func replies(ns []notify.Notification) []Reply {
	out := make([]Reply, 0, len(ns))
	for _, n := range ns {
		out = append(out, Reply{Notification: n, Text: n.Text()})
	}
	return out
}
