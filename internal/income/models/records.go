package models

import (
	"encoding/json"
	"time"

	"verigate/pkg/domain"
)

// ManualReviewSentinel is written into the contribution summary's numeric-looking
// text fields when automated reconciliation cannot produce values and a person
// has to complete the check at an office.
const ManualReviewSentinel = "requires_office_visit"

// CaseStatus is the local case's overall status as recorded by the archive.
type CaseStatus string

const (
	CaseStatusSuccess    CaseStatus = "success"
	CaseStatusInProgress CaseStatus = "in_progress"
)

// CaseStatusFor maps a webhook status onto the local case status.
func CaseStatusFor(s Status) CaseStatus {
	if s == StatusCompleted {
		return CaseStatusSuccess
	}
	return CaseStatusInProgress
}

// LocalCase is the pre-existing verification case a webhook refers to.
type LocalCase struct {
	ID          domain.CaseID
	Identifier  domain.Identifier
	CandidateID domain.CandidateID
	Status      CaseStatus
	CreatedAt   time.Time
}

// CaseArchive is the durable record of what one delivery said and what was fetched.
type CaseArchive struct {
	CaseID         domain.CaseID
	Status         CaseStatus
	RawWebhook     json.RawMessage
	RawProfile     json.RawMessage
	RawEmployment  json.RawMessage
	HistoryJSON    json.RawMessage
	VerificationID string
	UpdatedAt      time.Time
}

// PersonIdentity links a candidate to their national insurance number.
type PersonIdentity struct {
	CandidateID domain.CandidateID
	NSS         string
	UpdatedAt   time.Time
}

// ContributionSummary holds the counters shown to reviewers. Both fields are
// text so they can carry ManualReviewSentinel.
type ContributionSummary struct {
	CandidateID       domain.CandidateID
	EmploymentCount   string
	ContributionWeeks string
	UpdatedAt         time.Time
}

// RequiresManualReview reports whether the summary carries the sentinel.
func (c *ContributionSummary) RequiresManualReview() bool {
	return c != nil && (c.EmploymentCount == ManualReviewSentinel || c.ContributionWeeks == ManualReviewSentinel)
}

// EmploymentHistoryRow is one append-only ledger entry. Sequence is assigned
// by the store; rows are never updated after insert.
type EmploymentHistoryRow struct {
	CandidateID   domain.CandidateID
	Sequence      int
	EmployerName  string
	StartDate     time.Time
	EndDate       *time.Time
	BaseSalary    Amount
	MonthlySalary Amount
	Region        string
	Institution   Institution
	Active        bool
	CreatedAt     time.Time
}
