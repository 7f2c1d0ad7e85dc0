// Package assessment holds arrangement-submitted evaluations of a
// participant's continued eligibility. Unlike proposals, assessments keep
// their full history; the latest by creation time is the authoritative one.
package assessment

import (
	"time"

	"github.com/google/uuid"
)

// Type is the closed set of assessment kinds.
type Type string

const (
	TypeContinuationRecommended    Type = "CONTINUATION_RECOMMENDED"
	TypeContinuationNotRecommended Type = "CONTINUATION_NOT_RECOMMENDED"
	TypeNeedsClarification         Type = "NEEDS_CLARIFICATION"
)

type Assessment struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	ArrangerID    uuid.UUID
	Type          Type
	Justification *string
	CreatedAt     time.Time
}

// Latest returns the most recently created assessment, or false when the
// slice is empty.
func Latest(assessments []Assessment) (Assessment, bool) {
	if len(assessments) == 0 {
		return Assessment{}, false
	}

	latest := assessments[0]
	for _, a := range assessments[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	return latest, true
}
