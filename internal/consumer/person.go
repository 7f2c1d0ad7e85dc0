package consumer

import (
	"context"

	"caseflow_backend/internal/registry"
	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
)

type PersonStore interface {
	UpsertPerson(ctx context.Context, p registry.Person) error
	DeletePerson(ctx context.Context, id uuid.UUID) error
}

// DraftDiscarder kills unconfirmed enrollments through the one shared
// discard path, including the upstream notification.
type DraftDiscarder interface {
	DiscardDraftsForPerson(ctx context.Context, personID uuid.UUID) (int, error)
}

// PersonHandler applies person/identity events. When a person's eligibility
// category lapses, their draft enrollments are discarded: an ineligible
// person cannot be enrolled, and keeping the drafts would let a caseworker
// submit them later against stale data.
type PersonHandler struct {
	store     PersonStore
	discarder DraftDiscarder
	val       structValidator
	log       *logger.Logger
}

func NewPersonHandler(store PersonStore, discarder DraftDiscarder, val structValidator, log *logger.Logger) *PersonHandler {
	return &PersonHandler{store: store, discarder: discarder, val: val, log: log}
}

func (h *PersonHandler) Topic() string { return TopicPerson }

func (h *PersonHandler) Handle(ctx context.Context, key uuid.UUID, value []byte) error {
	if value == nil {
		if err := h.store.DeletePerson(ctx, key); err != nil {
			return apperr.Transient("delete person", err)
		}
		h.log.EventApplied(TopicPerson, key.String(), "delete")
		return nil
	}

	e, err := decode[personEvent](value, h.val)
	if err != nil {
		return err
	}

	person := registry.Person{
		ID:                  e.ID,
		FirstName:           e.FirstName,
		LastName:            e.LastName,
		EligibilityCategory: e.EligibilityCategory,
	}

	if err := h.store.UpsertPerson(ctx, person); err != nil {
		return apperr.Transient("upsert person", err)
	}

	if !person.Eligible() {
		discarded, err := h.discarder.DiscardDraftsForPerson(ctx, e.ID)
		if err != nil {
			return apperr.Transient("discard drafts for ineligible person", err)
		}
		if discarded > 0 {
			h.log.Info("discarded drafts for ineligible person",
				"personId", e.ID, "count", discarded)
		}
	}

	h.log.EventApplied(TopicPerson, key.String(), "upsert")
	return nil
}
