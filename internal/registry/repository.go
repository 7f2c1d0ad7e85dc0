package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("registry entity not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) UpsertOrganization(ctx context.Context, org Organization) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organization (id, name, registration_number, parent_organization_id, modified_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			registration_number = EXCLUDED.registration_number,
			parent_organization_id = EXCLUDED.parent_organization_id,
			modified_at = now()
	`, org.ID, org.Name, org.RegistrationNumber, org.ParentOrganizationID)
	return err
}

func (r *Repository) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM organization WHERE id = $1`, id)
	return err
}

func (r *Repository) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	var org Organization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, registration_number, parent_organization_id, modified_at
		FROM organization WHERE id = $1
	`, id).Scan(&org.ID, &org.Name, &org.RegistrationNumber, &org.ParentOrganizationID, &org.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return org, err
}

// GetOrganizationByRegNumber looks an organization up by its natural key.
func (r *Repository) GetOrganizationByRegNumber(ctx context.Context, regNumber string) (Organization, error) {
	var org Organization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, registration_number, parent_organization_id, modified_at
		FROM organization WHERE registration_number = $1
	`, regNumber).Scan(&org.ID, &org.Name, &org.RegistrationNumber, &org.ParentOrganizationID, &org.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, ErrNotFound
	}
	return org, err
}

func (r *Repository) UpsertNavUnit(ctx context.Context, unit NavUnit) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO nav_unit (id, unit_number, name, modified_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			unit_number = EXCLUDED.unit_number,
			name = EXCLUDED.name,
			modified_at = now()
	`, unit.ID, unit.UnitNumber, unit.Name)
	return err
}

func (r *Repository) DeleteNavUnit(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM nav_unit WHERE id = $1`, id)
	return err
}

func (r *Repository) UpsertCaseworker(ctx context.Context, cw Caseworker) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO caseworker (id, ident, name, email, nav_unit_id, modified_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			ident = EXCLUDED.ident,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			nav_unit_id = EXCLUDED.nav_unit_id,
			modified_at = now()
	`, cw.ID, cw.Ident, cw.Name, cw.Email, cw.NavUnitID)
	return err
}

func (r *Repository) UpsertOffering(ctx context.Context, o Offering) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO program_offering (id, organization_id, name, intake_type, start_date, end_date, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			name = EXCLUDED.name,
			intake_type = EXCLUDED.intake_type,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			modified_at = now()
	`, o.ID, o.OrganizationID, o.Name, string(o.IntakeType), o.StartDate, o.EndDate)
	return err
}

func (r *Repository) DeleteOffering(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM program_offering WHERE id = $1`, id)
	return err
}

func (r *Repository) GetOffering(ctx context.Context, id uuid.UUID) (Offering, error) {
	var o Offering
	var intakeType string
	err := r.pool.QueryRow(ctx, `
		SELECT id, organization_id, name, intake_type, start_date, end_date, modified_at
		FROM program_offering WHERE id = $1
	`, id).Scan(&o.ID, &o.OrganizationID, &o.Name, &intakeType, &o.StartDate, &o.EndDate, &o.ModifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Offering{}, ErrNotFound
	}
	o.IntakeType = IntakeType(intakeType)
	return o, err
}

func (r *Repository) UpsertPerson(ctx context.Context, p Person) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO person (id, first_name, last_name, eligibility_category, modified_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			eligibility_category = EXCLUDED.eligibility_category,
			modified_at = now()
	`, p.ID, p.FirstName, p.LastName, p.EligibilityCategory)
	return err
}

func (r *Repository) DeletePerson(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM person WHERE id = $1`, id)
	return err
}
