// Package participant holds the canonical participant read model and the
// status lifecycle rules. Participants are owned by the reconciliation core:
// they are mutated only by event application and by the status jobs, never
// directly by API handlers.
package participant

import (
	"time"

	"github.com/google/uuid"
)

// Participant is one person's enrollment in a program offering.
type Participant struct {
	ID          uuid.UUID
	PersonID    uuid.UUID
	OfferingID  uuid.UUID
	StartDate   *time.Time
	EndDate     *time.Time
	Percentage  *float64
	DaysPerWeek *float64
	Background  *string
	Status      Status
	ModifiedBy  *string
	ModifiedAt  time.Time
	CreatedAt   time.Time
}

// HasStarted reports whether the participant's own start date has arrived.
func (p Participant) HasStarted(now time.Time) bool {
	return p.StartDate != nil && !p.StartDate.After(atMidnight(now))
}

func atMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
