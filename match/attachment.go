package match

import "strings"

// Kind is the coarse classification supplied by the image-byte source.
type Kind string

const (
	KindNone     Kind = ""
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
)

// Attachment is the raw payload of an inbound message.
type Attachment struct {
	Kind Kind
	// MIME is the content type hint for documents, e.g. "image/png".
	MIME string
	Data []byte
}

// Photo wraps compressed photo bytes.
func Photo(data []byte) Attachment {
	return Attachment{Kind: KindPhoto, Data: data}
}

// Document wraps a file attachment with its MIME type hint.
func Document(mime string, data []byte) Attachment {
	return Attachment{Kind: KindDocument, MIME: mime, Data: data}
}

// IsImage reports whether the attachment should be decoded at all.
// Documents qualify only when their MIME type is image/*.
func (a Attachment) IsImage() bool {
	switch a.Kind {
	case KindPhoto:
		return true
	case KindDocument:
		mediaType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(a.MIME)), ";")
		return strings.HasPrefix(strings.TrimSpace(mediaType), "image/")
	default:
		return false
	}
}
