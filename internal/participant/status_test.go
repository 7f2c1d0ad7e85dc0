package participant

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func TestNewReason(t *testing.T) {
	if _, err := NewReason(ReasonSick, nil); err != nil {
		t.Fatalf("plain reason rejected: %v", err)
	}

	if _, err := NewReason(ReasonOther, strPtr("moved abroad")); err != nil {
		t.Fatalf("OTHER with description rejected: %v", err)
	}

	if _, err := NewReason(ReasonSick, strPtr("some text")); err == nil {
		t.Fatal("description on non-OTHER reason accepted")
	}

	if _, err := NewReason(ReasonOther, strPtr(strings.Repeat("x", 41))); err == nil {
		t.Fatal("over-length description accepted")
	}
	if _, err := NewReason(ReasonOther, strPtr(strings.Repeat("x", 40))); err != nil {
		t.Fatalf("exactly max-length description rejected: %v", err)
	}

	if _, err := NewReason(ReasonType("VANISHED"), nil); err == nil {
		t.Fatal("unknown reason type accepted")
	}
}

func TestNewStatus(t *testing.T) {
	now := time.Now()
	id := uuid.New()

	s, err := NewStatus(id, StatusParticipating, nil, now)
	if err != nil {
		t.Fatalf("valid status rejected: %v", err)
	}
	if s.ParticipantID != id || s.ValidTo != nil {
		t.Fatalf("unexpected status: %+v", s)
	}

	reason, err := NewReason(ReasonMoved, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewStatus(id, StatusWithdrawn, &reason, now); err != nil {
		t.Fatalf("WITHDRAWN with reason rejected: %v", err)
	}

	// Reasons belong to WITHDRAWN, NOT_ELIGIBLE and CANCELLED only.
	for _, st := range []StatusType{StatusDraft, StatusParticipating, StatusCompleted, StatusMisregistered} {
		if _, err := NewStatus(id, st, &reason, now); err == nil {
			t.Fatalf("%s with reason accepted", st)
		}
	}

	if _, err := NewStatus(id, StatusType("LOST"), nil, now); err == nil {
		t.Fatal("unknown status type accepted")
	}
}
