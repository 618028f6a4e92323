package match

import (
	"fmt"

	"github.com/hubenschmidt/go-dupimg/core"
)

type OutcomeKind int

const (
	// NotAnImage: the attachment is not an image or could not be decoded.
	NotAnImage OutcomeKind = iota
	// Recorded: no prior record matched; the fingerprint was inserted.
	Recorded
	// Duplicate: a prior record matched within the threshold.
	Duplicate
	// NoPriorRecords: a comparison found nothing to compare against.
	NoPriorRecords
	// Closest: a comparison found its best match.
	Closest
)

var outcomeNames = map[OutcomeKind]string{
	NotAnImage:     "not_an_image",
	Recorded:       "recorded",
	Duplicate:      "duplicate",
	NoPriorRecords: "no_prior_records",
	Closest:        "closest",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutcomeKind) UnmarshalText(text []byte) error {
	for kind, name := range outcomeNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Outcome is the structured result of a policy decision. Match is set
// for Duplicate and Closest only.
type Outcome struct {
	Kind        OutcomeKind
	Match       *core.Match
	Fingerprint core.Fingerprint
}

func (o Outcome) String() string {
	if o.Match != nil {
		return fmt.Sprintf("%s(record=%d, distance=%d)", o.Kind, o.Match.Record, o.Match.Distance)
	}
	return o.Kind.String()
}
