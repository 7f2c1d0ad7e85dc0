package consumer

import (
	"context"

	"caseflow_backend/internal/participant"
	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
)

// ParticipantStore is the participant repository surface this handler needs.
type ParticipantStore interface {
	UpsertSnapshot(ctx context.Context, p participant.Participant) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ParticipantHandler applies full participant snapshots from the owning
// domain service. Tombstones delete the local copy.
type ParticipantHandler struct {
	store ParticipantStore
	val   structValidator
	log   *logger.Logger
}

func NewParticipantHandler(store ParticipantStore, val structValidator, log *logger.Logger) *ParticipantHandler {
	return &ParticipantHandler{store: store, val: val, log: log}
}

func (h *ParticipantHandler) Topic() string { return TopicParticipant }

func (h *ParticipantHandler) Handle(ctx context.Context, key uuid.UUID, value []byte) error {
	if value == nil {
		if err := h.store.Delete(ctx, key); err != nil {
			return apperr.Transient("delete participant", err)
		}
		h.log.EventApplied(TopicParticipant, key.String(), "delete")
		return nil
	}

	e, err := decode[participantEvent](value, h.val)
	if err != nil {
		return err
	}
	if e.ID != key {
		return apperr.BadRequest("record key does not match payload id")
	}

	p, err := e.toDomain()
	if err != nil {
		return err
	}

	if err := h.store.UpsertSnapshot(ctx, p); err != nil {
		return apperr.Transient("upsert participant snapshot", err)
	}

	h.log.EventApplied(TopicParticipant, key.String(), "upsert")
	return nil
}
