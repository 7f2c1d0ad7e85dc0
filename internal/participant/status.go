package participant

import (
	"time"

	"caseflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// StatusType is the closed set of participant lifecycle stages.
type StatusType string

const (
	StatusDraft          StatusType = "DRAFT"
	StatusSubmittedDraft StatusType = "SUBMITTED_DRAFT"
	StatusAwaitingStart  StatusType = "AWAITING_START"
	StatusWaitlisted     StatusType = "WAITLISTED"
	StatusParticipating  StatusType = "PARTICIPATING"
	StatusCompleted      StatusType = "COMPLETED"
	StatusWithdrawn      StatusType = "WITHDRAWN"
	StatusNotEligible    StatusType = "NOT_ELIGIBLE"
	StatusCancelled      StatusType = "CANCELLED"
	StatusMisregistered  StatusType = "MISREGISTERED"
	StatusCancelledDraft StatusType = "CANCELLED_DRAFT"
)

// IsPreStart reports whether the status precedes actual participation.
func (t StatusType) IsPreStart() bool {
	switch t {
	case StatusDraft, StatusSubmittedDraft, StatusAwaitingStart, StatusWaitlisted:
		return true
	}
	return false
}

// IsDraft reports whether the participant is still an unconfirmed enrollment.
func (t StatusType) IsDraft() bool {
	return t == StatusDraft || t == StatusSubmittedDraft
}

// IsTerminal reports whether the status ends the lifecycle.
func (t StatusType) IsTerminal() bool {
	switch t {
	case StatusCompleted, StatusWithdrawn, StatusNotEligible, StatusCancelled,
		StatusMisregistered, StatusCancelledDraft:
		return true
	}
	return false
}

// allowsReason reports whether the status may carry a cause.
func (t StatusType) allowsReason() bool {
	switch t {
	case StatusWithdrawn, StatusNotEligible, StatusCancelled:
		return true
	}
	return false
}

// ReasonType is the closed set of cause codes for reason-bearing statuses.
type ReasonType string

const (
	ReasonSick              ReasonType = "SICK"
	ReasonMoved             ReasonType = "MOVED"
	ReasonEmployed          ReasonType = "EMPLOYED"
	ReasonNeedsOtherSupport ReasonType = "NEEDS_OTHER_SUPPORT"
	ReasonOther             ReasonType = "OTHER"
)

const maxReasonDescriptionLen = 40

// Reason carries the cause for a terminal status. A free-text description is
// only allowed on the OTHER code.
type Reason struct {
	Type        ReasonType
	Description *string
}

// NewReason validates and constructs a Reason.
func NewReason(t ReasonType, description *string) (Reason, error) {
	switch t {
	case ReasonSick, ReasonMoved, ReasonEmployed, ReasonNeedsOtherSupport, ReasonOther:
	default:
		return Reason{}, apperr.Validation("unknown reason type: " + string(t))
	}

	if description != nil {
		if t != ReasonOther {
			return Reason{}, apperr.Validation("reason description is only allowed for type OTHER")
		}
		if len(*description) > maxReasonDescriptionLen {
			return Reason{}, apperr.Validation("reason description exceeds maximum length")
		}
	}

	return Reason{Type: t, Description: description}, nil
}

// Status is one entry in a participant's status history. Exactly one entry
// per participant has ValidTo == nil; it is the current status.
type Status struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	Type          StatusType
	Reason        *Reason
	ValidFrom     time.Time
	ValidTo       *time.Time
	CreatedAt     time.Time
}

// NewStatus validates and constructs a status entry valid from now.
func NewStatus(participantID uuid.UUID, t StatusType, reason *Reason, now time.Time) (Status, error) {
	switch t {
	case StatusDraft, StatusSubmittedDraft, StatusAwaitingStart, StatusWaitlisted,
		StatusParticipating, StatusCompleted, StatusWithdrawn, StatusNotEligible,
		StatusCancelled, StatusMisregistered, StatusCancelledDraft:
	default:
		return Status{}, apperr.Validation("unknown status type: " + string(t))
	}

	if reason != nil && !t.allowsReason() {
		return Status{}, apperr.Validation("status " + string(t) + " cannot carry a reason")
	}

	return Status{
		ID:            uuid.New(),
		ParticipantID: participantID,
		Type:          t,
		Reason:        reason,
		ValidFrom:     now,
		CreatedAt:     now,
	}, nil
}
