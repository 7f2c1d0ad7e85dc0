package consumer

import (
	"context"
	"errors"

	"caseflow_backend/internal/assessment"
	"caseflow_backend/internal/proposal"
	"caseflow_backend/platform/apperr"
	"caseflow_backend/platform/logger"

	"github.com/google/uuid"
)

type ProposalStore interface {
	Upsert(ctx context.Context, p proposal.Proposal) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type AssessmentStore interface {
	Upsert(ctx context.Context, a assessment.Assessment) error
}

// ArrangerHandler reconciles the arrangement message stream, which carries
// both proposals and assessments. Only awaiting-response proposals are kept;
// any resolved status deletes the proposal from the working store.
type ArrangerHandler struct {
	proposals   ProposalStore
	assessments AssessmentStore
	val         structValidator
	log         *logger.Logger
	// strict makes a proposal referencing an unknown participant fatal.
	// Production runs strict: it always indicates an ordering or backfill
	// bug. Dev environments log and drop, since partial seed data makes
	// dangling references routine there.
	strict bool
}

func NewArrangerHandler(proposals ProposalStore, assessments AssessmentStore, val structValidator, strict bool, log *logger.Logger) *ArrangerHandler {
	return &ArrangerHandler{
		proposals:   proposals,
		assessments: assessments,
		val:         val,
		strict:      strict,
		log:         log,
	}
}

func (h *ArrangerHandler) Topic() string { return TopicArrangerMessage }

func (h *ArrangerHandler) Handle(ctx context.Context, key uuid.UUID, value []byte) error {
	if value == nil {
		if err := h.proposals.Delete(ctx, key); err != nil {
			return apperr.Transient("delete proposal", err)
		}
		h.log.EventApplied(TopicArrangerMessage, key.String(), "delete")
		return nil
	}

	msg, err := decode[arrangerMessage](value, h.val)
	if err != nil {
		return err
	}

	switch msg.Type {
	case "PROPOSAL":
		if msg.Proposal == nil {
			return apperr.BadRequest("proposal message without proposal body")
		}
		return h.handleProposal(ctx, key, *msg.Proposal)
	case "ASSESSMENT":
		if msg.Assessment == nil {
			return apperr.BadRequest("assessment message without assessment body")
		}
		return h.handleAssessment(ctx, key, *msg.Assessment)
	default:
		return apperr.BadRequest("unknown arranger message type " + msg.Type)
	}
}

func (h *ArrangerHandler) handleProposal(ctx context.Context, key uuid.UUID, e proposalEvent) error {
	if proposal.Status(e.Status) != proposal.StatusAwaitingResponse {
		// Resolved proposals are not kept: existence in the store means
		// "awaiting response".
		if err := h.proposals.Delete(ctx, e.ID); err != nil {
			return apperr.Transient("delete resolved proposal", err)
		}
		h.log.EventApplied(TopicArrangerMessage, key.String(), "proposal_resolved")
		return nil
	}

	change, err := proposal.UnmarshalChange(e.Change)
	if err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid proposal change", err)
	}

	err = h.proposals.Upsert(ctx, proposal.Proposal{
		ID:            e.ID,
		ParticipantID: e.ParticipantID,
		ArrangerID:    e.ArrangerID,
		Change:        change,
		Justification: e.Justification,
		CreatedAt:     e.CreatedAt,
	})
	if errors.Is(err, proposal.ErrParticipantMissing) {
		if h.strict {
			return apperr.Wrap(apperr.KindInternal, "proposal references participant absent from store", err).WithOp("consumer.handleProposal")
		}
		h.log.Warn("dropping proposal for unknown participant",
			"proposalId", e.ID, "participantId", e.ParticipantID)
		return nil
	}
	if err != nil {
		return apperr.Transient("upsert proposal", err)
	}

	h.log.EventApplied(TopicArrangerMessage, key.String(), "proposal_upsert")
	return nil
}

func (h *ArrangerHandler) handleAssessment(ctx context.Context, key uuid.UUID, e assessmentEvent) error {
	err := h.assessments.Upsert(ctx, assessment.Assessment{
		ID:            e.ID,
		ParticipantID: e.ParticipantID,
		ArrangerID:    e.ArrangerID,
		Type:          assessment.Type(e.Type),
		Justification: e.Justification,
		CreatedAt:     e.CreatedAt,
	})
	if err != nil {
		return apperr.Transient("upsert assessment", err)
	}

	h.log.EventApplied(TopicArrangerMessage, key.String(), "assessment_upsert")
	return nil
}
