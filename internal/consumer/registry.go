package consumer

import (
	"context"

	"caseflow_backend/internal/registry"
	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
)

// RegistryStore is the registry repository surface the registry handlers use.
type RegistryStore interface {
	UpsertOrganization(ctx context.Context, org registry.Organization) error
	DeleteOrganization(ctx context.Context, id uuid.UUID) error
	UpsertNavUnit(ctx context.Context, unit registry.NavUnit) error
	DeleteNavUnit(ctx context.Context, id uuid.UUID) error
	UpsertCaseworker(ctx context.Context, cw registry.Caseworker) error
	UpsertOffering(ctx context.Context, o registry.Offering) error
	DeleteOffering(ctx context.Context, id uuid.UUID) error
}

// OrganizationHandler applies organization registry events.
type OrganizationHandler struct {
	store RegistryStore
	val   structValidator
	log   *logger.Logger
}

func NewOrganizationHandler(store RegistryStore, val structValidator, log *logger.Logger) *OrganizationHandler {
	return &OrganizationHandler{store: store, val: val, log: log}
}

func (h *OrganizationHandler) Topic() string { return TopicOrganization }

func (h *OrganizationHandler) Handle(ctx context.Context, key uuid.UUID, value []byte) error {
	if value == nil {
		if err := h.store.DeleteOrganization(ctx, key); err != nil {
			return apperr.Transient("delete organization", err)
		}
		h.log.EventApplied(TopicOrganization, key.String(), "delete")
		return nil
	}

	e, err := decode[organizationEvent](value, h.val)
	if err != nil {
		return err
	}

	err = h.store.UpsertOrganization(ctx, registry.Organization{
		ID:                   e.ID,
		Name:                 e.Name,
		RegistrationNumber:   e.RegistrationNumber,
		ParentOrganizationID: e.ParentOrganizationID,
	})
	if err != nil {
		return apperr.Transient("upsert organization", err)
	}

	h.log.EventApplied(TopicOrganization, key.String(), "upsert")
	return nil
}

// NavUnitHandler applies NAV unit registry events.
type NavUnitHandler struct {
	store RegistryStore
	val   structValidator
	log   *logger.Logger
}

func NewNavUnitHandler(store RegistryStore, val structValidator, log *logger.Logger) *NavUnitHandler {
	return &NavUnitHandler{store: store, val: val, log: log}
}

func (h *NavUnitHandler) Topic() string { return TopicNavUnit }

func (h *NavUnitHandler) Handle(ctx context.Context, key uuid.UUID, value []byte) error {
	if value == nil {
		if err := h.store.DeleteNavUnit(ctx, key); err != nil {
			return apperr.Transient("delete nav unit", err)
		}
		h.log.EventApplied(TopicNavUnit, key.String(), "delete")
		return nil
	}

	e, err := decode[navUnitEvent](value, h.val)
	if err != nil {
		return err
	}

	err = h.store.UpsertNavUnit(ctx, registry.NavUnit{
		ID:         e.ID,
		UnitNumber: e.UnitNumber,
		Name:       e.Name,
	})
	if err != nil {
		return apperr.Transient("upsert nav unit", err)
	}

	h.log.EventApplied(TopicNavUnit, key.String(), "upsert")
	return nil
}

// CaseworkerHandler applies caseworker events. The caseworker stream never
// tombstones: caseworkers are deactivated upstream, not deleted, so a nil
// value is an invariant violation and fails loudly instead of being applied.
type CaseworkerHandler struct {
	store RegistryStore
	val   structValidator
	log   *logger.Logger
}

func NewCaseworkerHandler(store RegistryStore, val structValidator, log *logger.Logger) *CaseworkerHandler {
	return &CaseworkerHandler{store: store, val: val, log: log}
}

func (h *CaseworkerHandler) Topic() string { return TopicCaseworker }

func (h *CaseworkerHandler) Handle(ctx context.Context, key uuid.UUID, value []byte) error {
	if value == nil {
		return apperr.BadRequest("unexpected tombstone on caseworker stream").WithOp("consumer.CaseworkerHandler")
	}

	e, err := decode[caseworkerEvent](value, h.val)
	if err != nil {
		return err
	}

	err = h.store.UpsertCaseworker(ctx, registry.Caseworker{
		ID:        e.ID,
		Ident:     e.Ident,
		Name:      e.Name,
		Email:     e.Email,
		NavUnitID: e.NavUnitID,
	})
	if err != nil {
		return apperr.Transient("upsert caseworker", err)
	}

	h.log.EventApplied(TopicCaseworker, key.String(), "upsert")
	return nil
}

// OfferingHandler applies program offering events.
type OfferingHandler struct {
	store RegistryStore
	val   structValidator
	log   *logger.Logger
}

func NewOfferingHandler(store RegistryStore, val structValidator, log *logger.Logger) *OfferingHandler {
	return &OfferingHandler{store: store, val: val, log: log}
}

func (h *OfferingHandler) Topic() string { return TopicOffering }

func (h *OfferingHandler) Handle(ctx context.Context, key uuid.UUID, value []byte) error {
	if value == nil {
		if err := h.store.DeleteOffering(ctx, key); err != nil {
			return apperr.Transient("delete offering", err)
		}
		h.log.EventApplied(TopicOffering, key.String(), "delete")
		return nil
	}

	e, err := decode[offeringEvent](value, h.val)
	if err != nil {
		return err
	}

	err = h.store.UpsertOffering(ctx, registry.Offering{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		Name:           e.Name,
		IntakeType:     registry.IntakeType(e.IntakeType),
		StartDate:      datePtr(e.StartDate),
		EndDate:        datePtr(e.EndDate),
	})
	if err != nil {
		return apperr.Transient("upsert offering", err)
	}

	h.log.EventApplied(TopicOffering, key.String(), "upsert")
	return nil
}
