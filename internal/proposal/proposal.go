// Package proposal holds arrangement-initiated change proposals awaiting a
// NAV response. Only unresolved proposals live in the store: presence is
// synonymous with "awaiting response", and resolving a proposal deletes it.
package proposal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the upstream lifecycle of a proposal. Only AwaitingResponse
// proposals are persisted locally.
type Status string

const (
	StatusAwaitingResponse Status = "AWAITING_RESPONSE"
	StatusAccepted         Status = "ACCEPTED"
	StatusRejected         Status = "REJECTED"
	StatusRetracted        Status = "RETRACTED"
)

type Proposal struct {
	ID            uuid.UUID
	ParticipantID uuid.UUID
	ArrangerID    uuid.UUID
	Change        Change
	Justification *string
	CreatedAt     time.Time
}

// Change is the closed set of proposed participant changes. The marker
// method keeps the set sealed: only variants in this package satisfy it.
type Change interface {
	changeType() string
}

// AddStartDate proposes a confirmed start date, optionally with an end date.
type AddStartDate struct {
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// RemoveStartDate proposes clearing a previously set start date.
type RemoveStartDate struct{}

// ChangeEndDate proposes a new end date, or clearing it when nil.
type ChangeEndDate struct {
	EndDate *time.Time `json:"endDate"`
}

// ChangeParticipationAmount proposes new percentage and days-per-week values.
type ChangeParticipationAmount struct {
	Percentage  float64  `json:"percentage"`
	DaysPerWeek *float64 `json:"daysPerWeek,omitempty"`
}

func (AddStartDate) changeType() string              { return "ADD_START_DATE" }
func (RemoveStartDate) changeType() string           { return "REMOVE_START_DATE" }
func (ChangeEndDate) changeType() string             { return "CHANGE_END_DATE" }
func (ChangeParticipationAmount) changeType() string { return "CHANGE_PARTICIPATION_AMOUNT" }

type changeEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarshalChange serializes a change into its tagged wire form.
func MarshalChange(c Change) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("change is required")
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}

	return json.Marshal(changeEnvelope{Type: c.changeType(), Payload: payload})
}

// UnmarshalChange decodes a tagged change. Unknown tags are an error: the
// variant set is closed and a new upstream variant needs a code change here.
func UnmarshalChange(data []byte) (Change, error) {
	var env changeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case AddStartDate{}.changeType():
		var c AddStartDate
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case RemoveStartDate{}.changeType():
		return RemoveStartDate{}, nil
	case ChangeEndDate{}.changeType():
		var c ChangeEndDate
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	case ChangeParticipationAmount{}.changeType():
		var c ChangeParticipationAmount
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown proposal change type %q", env.Type)
	}
}
