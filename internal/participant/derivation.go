package participant

import "time"

// OfferingTerms are the offering fields that drive status derivation.
// CourseLike is true for fixed-cohort courses with a joint start and end;
// false for rolling-intake support measures.
type OfferingTerms struct {
	CourseLike bool
	StartDate  *time.Time
	EndDate    *time.Time
}

// DeriveEndStatus computes the terminal status a participant should move to,
// given calendar time. The bool result is false when no end transition is due.
//
// Policy:
//   - never started and the offering has ended: administrative closure,
//     NOT_ELIGIBLE
//   - own end date before the offering's end date, or passed while the
//     offering has no end date: ended early, WITHDRAWN, regardless of
//     intake type
//   - course-like offering ending on schedule: COMPLETED
//   - rolling offering reaching its end: WITHDRAWN (open-ended measures have
//     no completion concept)
func DeriveEndStatus(p Participant, terms OfferingTerms, now time.Time) (StatusType, bool) {
	today := atMidnight(now)
	offeringEnded := dateBefore(terms.EndDate, today)
	ownEnded := dateBefore(p.EndDate, today)

	if !offeringEnded && !ownEnded {
		return "", false
	}

	cur := p.Status.Type
	if cur.IsPreStart() {
		if offeringEnded {
			return StatusNotEligible, true
		}
		return "", false
	}

	if cur != StatusParticipating {
		return "", false
	}

	if ownEnded && (terms.EndDate == nil || p.EndDate.Before(*terms.EndDate)) {
		return StatusWithdrawn, true
	}

	if terms.CourseLike {
		return StatusCompleted, true
	}

	return StatusWithdrawn, true
}

// ShouldStartParticipating reports whether a participant awaiting start has
// reached their start date and should move to PARTICIPATING. Drafts and
// waitlisted participants never auto-start; they need an explicit upstream
// decision first. An enrollment whose own end date or whose offering's end
// date has passed belongs to the end pass and never starts.
func ShouldStartParticipating(p Participant, terms OfferingTerms, now time.Time) bool {
	if p.Status.Type != StatusAwaitingStart {
		return false
	}
	today := atMidnight(now)
	if dateBefore(p.EndDate, today) || dateBefore(terms.EndDate, today) {
		return false
	}
	return p.HasStarted(now)
}

// dateBefore reports whether d is strictly before the given day.
func dateBefore(d *time.Time, day time.Time) bool {
	return d != nil && d.Before(day)
}
