package proposal

import (
	"testing"
	"time"
)

func TestChangeRoundTrip(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	days := 3.5

	cases := []struct {
		name   string
		change Change
	}{
		{"add start date", AddStartDate{StartDate: start, EndDate: &end}},
		{"add start date without end", AddStartDate{StartDate: start}},
		{"remove start date", RemoveStartDate{}},
		{"change end date", ChangeEndDate{EndDate: &end}},
		{"clear end date", ChangeEndDate{}},
		{"change amount", ChangeParticipationAmount{Percentage: 50, DaysPerWeek: &days}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := MarshalChange(tc.change)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			got, err := UnmarshalChange(data)
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if got.changeType() != tc.change.changeType() {
				t.Fatalf("got %s, want %s", got.changeType(), tc.change.changeType())
			}
		})
	}
}

func TestUnmarshalChangeUnknownType(t *testing.T) {
	if _, err := UnmarshalChange([]byte(`{"type":"SWAP_OFFERING","payload":{}}`)); err == nil {
		t.Fatal("unknown change type accepted")
	}
}

func TestMarshalChangeNil(t *testing.T) {
	if _, err := MarshalChange(nil); err == nil {
		t.Fatal("nil change accepted")
	}
}
