// Package service provides participant lifecycle operations shared by the
// event consumers and the periodic jobs. Discarding an unconfirmed enrollment
// goes through exactly one code path here, so the upstream registry is always
// told to drop its copy as well.
package service

import (
	"context"
	"errors"
	"time"

	"caseflow_backend/internal/participant"
	"caseflow_backend/internal/participant/repository"
	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the subset of the participant repository the service needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (participant.Participant, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DraftsByPerson(ctx context.Context, personID uuid.UUID) ([]participant.Participant, error)
	InsertStatus(ctx context.Context, s participant.Status) error
}

// DiscardNotifier schedules the upstream side effect of a draft discard.
type DiscardNotifier interface {
	EnqueueDraftDiscarded(ctx context.Context, participantID uuid.UUID) error
}

type Service struct {
	store    Store
	notifier DiscardNotifier
	log      *logger.Logger
}

func New(store Store, notifier DiscardNotifier, log *logger.Logger) *Service {
	return &Service{store: store, notifier: notifier, log: log}
}

// DiscardDraft deletes one unconfirmed enrollment and schedules the upstream
// notification. Discarding an already-absent participant is a no-op.
func (s *Service) DiscardDraft(ctx context.Context, id uuid.UUID) error {
	p, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !p.Status.Type.IsDraft() {
		return apperr.Conflict("participant is not a draft").WithOp("participant.DiscardDraft")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if s.notifier != nil {
		if err := s.notifier.EnqueueDraftDiscarded(ctx, id); err != nil {
			// The local delete stands; the upstream copy is cleaned up by the
			// draft-cleanup job on the registry side if this enqueue is lost.
			s.log.Warn("failed to enqueue draft discard notification", "participantId", id, "error", err)
		}
	}

	s.log.Info("draft participant discarded", "participantId", id)
	return nil
}

// DiscardDraftsForPerson discards every draft enrollment for a person.
// Used when the person's eligibility category lapses. Returns the number of
// drafts discarded.
func (s *Service) DiscardDraftsForPerson(ctx context.Context, personID uuid.UUID) (int, error) {
	drafts, err := s.store.DraftsByPerson(ctx, personID)
	if err != nil {
		return 0, err
	}

	discarded := 0
	for _, d := range drafts {
		if err := s.DiscardDraft(ctx, d.ID); err != nil {
			return discarded, err
		}
		discarded++
	}

	return discarded, nil
}

// ApplyTransition moves a participant to a new status valid from now.
func (s *Service) ApplyTransition(ctx context.Context, participantID uuid.UUID, to participant.StatusType, reason *participant.Reason, now time.Time) error {
	status, err := participant.NewStatus(participantID, to, reason, now)
	if err != nil {
		return err
	}
	return s.store.InsertStatus(ctx, status)
}
