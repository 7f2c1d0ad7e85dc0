package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskDraftDiscarded = "participant.draft.discarded"

type DraftDiscardedPayload struct {
	ParticipantID string `json:"participantId"`
}

func NewDraftDiscardedTask(payload DraftDiscardedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDraftDiscarded, data), nil
}

func ParseDraftDiscardedPayload(task *asynq.Task) (DraftDiscardedPayload, error) {
	var payload DraftDiscardedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DraftDiscardedPayload{}, err
	}
	return payload, nil
}
