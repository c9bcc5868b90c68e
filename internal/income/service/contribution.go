package service

import (
	"strconv"

	"verigate/internal/income/models"
)

// Contribution is the computed summary for one candidate.
type Contribution struct {
	EmploymentCount   int
	ContributionWeeks int64
}

// ContributionFromSnapshot computes the summary from the employment
// snapshot's own aggregate counters:
//
//	weeks = quoted - discounted + reintegrated
//
// Missing discounted or reintegrated counters decode as zero. The employment
// count covers every history entry upstream sent, including rejected ones.
// ok is false when there is no snapshot.
func ContributionFromSnapshot(snap *models.EmploymentSnapshot) (c Contribution, ok bool) {
	if snap == nil {
		return Contribution{}, false
	}
	return Contribution{
		EmploymentCount:   len(snap.Records) + len(snap.Rejected),
		ContributionWeeks: int64(snap.QuotedWeeks) - int64(snap.DiscountedWeeks) + int64(snap.ReintegratedWeeks),
	}, true
}

// ContributionDelta is the discount/reintegration pair some webhook senders
// still place at the top level of the delivery.
type ContributionDelta struct {
	QuotedWeeks       models.Count
	DiscountedWeeks   models.Count
	ReintegratedWeeks models.Count
}

// ContributionFromDelta computes weeks from a top-level delta.
//
// Deprecated: the employment snapshot's aggregate is the canonical source; use
// ContributionFromSnapshot. This is kept so deliveries that still carry the
// delta can be compared against the canonical value in logs.
func ContributionFromDelta(d ContributionDelta) int64 {
	return int64(d.QuotedWeeks) - int64(d.DiscountedWeeks) + int64(d.ReintegratedWeeks)
}

// Summary renders the contribution as the stored text record.
func (c Contribution) Summary() (employmentCount, contributionWeeks string) {
	return strconv.Itoa(c.EmploymentCount), strconv.FormatInt(c.ContributionWeeks, 10)
}
