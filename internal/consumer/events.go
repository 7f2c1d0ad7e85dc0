package consumer

import (
	"encoding/json"
	"strings"
	"time"

	"caseflow_backend/internal/participant"
	"caseflow_backend/platform/apperr"

	"github.com/google/uuid"
)

// isoDate unmarshals the date-only format the upstream services use.
type isoDate struct {
	time.Time
}

func (d *isoDate) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d isoDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

func datePtr(d *isoDate) *time.Time {
	if d == nil {
		return nil
	}
	return &d.Time
}

// statusPayload is the status shape carried by participant events.
type statusPayload struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	Type       string    `json:"type" validate:"required"`
	ReasonType *string   `json:"reasonType"`
	ReasonText *string   `json:"reasonText"`
	ValidFrom  time.Time `json:"validFrom" validate:"required"`
}

// participantEvent is a full participant snapshot from the owning service.
type participantEvent struct {
	ID          uuid.UUID     `json:"id" validate:"required"`
	PersonID    uuid.UUID     `json:"personId" validate:"required"`
	OfferingID  uuid.UUID     `json:"offeringId" validate:"required"`
	StartDate   *isoDate      `json:"startDate"`
	EndDate     *isoDate      `json:"endDate"`
	Percentage  *float64      `json:"percentage"`
	DaysPerWeek *float64      `json:"daysPerWeek"`
	Background  *string       `json:"background"`
	ModifiedBy  *string       `json:"modifiedBy"`
	ModifiedAt  time.Time     `json:"modifiedAt"`
	CreatedAt   time.Time     `json:"createdAt" validate:"required"`
	Status      statusPayload `json:"status" validate:"required"`
}

// toDomain converts the event into the canonical model, reusing the domain
// constructors so the same validation applies to events and local writes.
func (e participantEvent) toDomain() (participant.Participant, error) {
	var reason *participant.Reason
	if e.Status.ReasonType != nil {
		r, err := participant.NewReason(participant.ReasonType(*e.Status.ReasonType), e.Status.ReasonText)
		if err != nil {
			return participant.Participant{}, err
		}
		reason = &r
	}

	status, err := participant.NewStatus(e.ID, participant.StatusType(e.Status.Type), reason, e.Status.ValidFrom)
	if err != nil {
		return participant.Participant{}, err
	}
	// Keep the upstream status id so replays are idempotent.
	status.ID = e.Status.ID

	return participant.Participant{
		ID:          e.ID,
		PersonID:    e.PersonID,
		OfferingID:  e.OfferingID,
		StartDate:   datePtr(e.StartDate),
		EndDate:     datePtr(e.EndDate),
		Percentage:  e.Percentage,
		DaysPerWeek: e.DaysPerWeek,
		Background:  e.Background,
		Status:      status,
		ModifiedBy:  e.ModifiedBy,
		ModifiedAt:  e.ModifiedAt,
		CreatedAt:   e.CreatedAt,
	}, nil
}

// arrangerMessage is the envelope of the arrangement message stream, which
// multiplexes proposals and assessments.
type arrangerMessage struct {
	Type       string           `json:"type" validate:"required,oneof=PROPOSAL ASSESSMENT"`
	Proposal   *proposalEvent   `json:"proposal"`
	Assessment *assessmentEvent `json:"assessment"`
}

type proposalEvent struct {
	ID            uuid.UUID       `json:"id" validate:"required"`
	ParticipantID uuid.UUID       `json:"participantId" validate:"required"`
	ArrangerID    uuid.UUID       `json:"arrangerId" validate:"required"`
	Status        string          `json:"status" validate:"required"`
	Justification *string         `json:"justification"`
	Change        json.RawMessage `json:"change"`
	CreatedAt     time.Time       `json:"createdAt" validate:"required"`
}

type assessmentEvent struct {
	ID            uuid.UUID `json:"id" validate:"required"`
	ParticipantID uuid.UUID `json:"participantId" validate:"required"`
	ArrangerID    uuid.UUID `json:"arrangerId" validate:"required"`
	Type          string    `json:"type" validate:"required,oneof=CONTINUATION_RECOMMENDED CONTINUATION_NOT_RECOMMENDED NEEDS_CLARIFICATION"`
	Justification *string   `json:"justification"`
	CreatedAt     time.Time `json:"createdAt" validate:"required"`
}

type personEvent struct {
	ID                  uuid.UUID `json:"id" validate:"required"`
	FirstName           string    `json:"firstName" validate:"required"`
	LastName            string    `json:"lastName" validate:"required"`
	EligibilityCategory *string   `json:"eligibilityCategory"`
}

type organizationEvent struct {
	ID                   uuid.UUID  `json:"id" validate:"required"`
	Name                 string     `json:"name" validate:"required"`
	RegistrationNumber   string     `json:"registrationNumber" validate:"required"`
	ParentOrganizationID *uuid.UUID `json:"parentOrganizationId"`
}

type navUnitEvent struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	UnitNumber string    `json:"unitNumber" validate:"required"`
	Name       string    `json:"name" validate:"required"`
}

type caseworkerEvent struct {
	ID        uuid.UUID  `json:"id" validate:"required"`
	Ident     string     `json:"ident" validate:"required"`
	Name      string     `json:"name" validate:"required"`
	Email     *string    `json:"email"`
	NavUnitID *uuid.UUID `json:"navUnitId"`
}

type offeringEvent struct {
	ID             uuid.UUID `json:"id" validate:"required"`
	OrganizationID uuid.UUID `json:"organizationId" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	IntakeType     string    `json:"intakeType" validate:"required,oneof=COURSE ROLLING"`
	StartDate      *isoDate  `json:"startDate"`
	EndDate        *isoDate  `json:"endDate"`
}

// decode unmarshals and validates an event payload. Failures are permanent:
// a malformed record will fail identically on every redelivery.
func decode[T any](value []byte, val structValidator) (T, error) {
	var e T
	if err := json.Unmarshal(value, &e); err != nil {
		return e, apperr.Wrap(apperr.KindBadRequest, "malformed event payload", err)
	}
	if err := val.Struct(e); err != nil {
		return e, apperr.Wrap(apperr.KindBadRequest, "invalid event payload", err)
	}
	return e, nil
}

// structValidator is the validation surface the consumers need.
type structValidator interface {
	Struct(s interface{}) error
}
