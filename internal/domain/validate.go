package domain

import (
	"fmt"
	"time"

	pulseerrors "github.com/stdin/venezuelawatch/internal/errors"
)

// clockSkewTolerance bounds how far EventTimestamp may lag IngestedAt/
// CreatedAt due to distributed clocks before Validate rejects the event.
const clockSkewTolerance = 5 * time.Minute

// Validate checks the universally quantified invariants:
// normalized scalars in range, category in the closed set, and the
// P1⇒risk_score≥70 implication once severity has been assigned. It
// returns an *errors.Error of Kind InvariantViolation on the first
// violation found, matching C4's validate contract: a failing event is
// dropped, logged, and does not abort the batch.
func (e *Event) Validate() error {
	const op = "domain.Event.Validate"

	if e.ID == "" {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "missing id")
	}
	if !IsValidCategory(e.Category) {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, fmt.Sprintf("category %q outside closed set", e.Category))
	}
	if e.MagnitudeNorm < 0 || e.MagnitudeNorm > 1 {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "magnitude_norm out of [0,1]")
	}
	if e.ToneNorm < 0 || e.ToneNorm > 1 {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "tone_norm out of [0,1]")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "confidence out of [0,1]")
	}
	if e.SourceCredibility < 0 || e.SourceCredibility > 1 {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "source_credibility out of [0,1]")
	}
	if e.Sentiment != nil && (*e.Sentiment < -1 || *e.Sentiment > 1) {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "sentiment out of [-1,1]")
	}
	if e.RiskScore < 0 || e.RiskScore > 100 {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "risk_score out of [0,100]")
	}
	if e.NumSources < 1 {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "num_sources must be >=1")
	}
	if !e.EventTimestamp.IsZero() && !e.IngestedAt.IsZero() {
		if e.EventTimestamp.After(e.IngestedAt.Add(clockSkewTolerance)) {
			return pulseerrors.New(pulseerrors.InvariantViolation, op, "event_timestamp after ingested_at beyond skew tolerance")
		}
	}
	if !e.IngestedAt.IsZero() && !e.CreatedAt.IsZero() {
		if e.IngestedAt.After(e.CreatedAt.Add(clockSkewTolerance)) {
			return pulseerrors.New(pulseerrors.InvariantViolation, op, "ingested_at after created_at beyond skew tolerance")
		}
	}
	if e.Severity == P1 && e.RiskScore < 70 {
		return pulseerrors.New(pulseerrors.InvariantViolation, op, "severity P1 requires risk_score >= 70")
	}
	return nil
}
