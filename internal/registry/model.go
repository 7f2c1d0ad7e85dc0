// Package registry materializes the upstream registries this service reads:
// organizations, NAV units, caseworkers, program offerings and persons. All
// entities are owned by their upstream services; the local copies exist only
// as a read model kept fresh by the event consumers.
package registry

import (
	"time"

	"github.com/google/uuid"
)

// IntakeType distinguishes fixed-cohort courses from rolling-intake measures.
type IntakeType string

const (
	IntakeCourse  IntakeType = "COURSE"
	IntakeRolling IntakeType = "ROLLING"
)

type Organization struct {
	ID                   uuid.UUID
	Name                 string
	RegistrationNumber   string
	ParentOrganizationID *uuid.UUID
	ModifiedAt           time.Time
}

type NavUnit struct {
	ID         uuid.UUID
	UnitNumber string
	Name       string
	ModifiedAt time.Time
}

type Caseworker struct {
	ID         uuid.UUID
	Ident      string
	Name       string
	Email      *string
	NavUnitID  *uuid.UUID
	ModifiedAt time.Time
}

type Offering struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	IntakeType     IntakeType
	StartDate      *time.Time
	EndDate        *time.Time
	ModifiedAt     time.Time
}

type Person struct {
	ID                  uuid.UUID
	FirstName           string
	LastName            string
	EligibilityCategory *string
	ModifiedAt          time.Time
}

// Eligible reports whether the person currently has an eligibility category.
func (p Person) Eligible() bool {
	return p.EligibilityCategory != nil && *p.EligibilityCategory != ""
}
