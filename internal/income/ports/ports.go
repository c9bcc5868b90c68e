// Package ports declares the collaborators the income pipeline depends on.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"verigate/internal/income/models"
	"verigate/pkg/domain"
	audit "verigate/pkg/platform/audit"
)

// Upstream is the verification provider.
type Upstream interface {
	FetchProfile(ctx context.Context, identifier domain.Identifier) (*models.ProfileSnapshot, error)
	FetchEmployment(ctx context.Context, identifier domain.Identifier) (*models.EmploymentSnapshot, error)
	RequestVerification(ctx context.Context, identifier domain.Identifier, externalID string) (string, error)
}

// CaseStore reads pre-existing verification cases.
type CaseStore interface {
	// FindLatestByIdentifier returns the newest case for identifier or sentinel.ErrNotFound.
	FindLatestByIdentifier(ctx context.Context, identifier domain.Identifier) (*models.LocalCase, error)
}

// ArchiveStore persists what each delivery said and what was fetched for it.
type ArchiveStore interface {
	// SaveArchive records the archive and the case status; the latest delivery wins.
	SaveArchive(ctx context.Context, archive *models.CaseArchive) error
	GetArchive(ctx context.Context, caseID domain.CaseID) (*models.CaseArchive, error)
}

// IdentityStore holds national insurance numbers per candidate.
type IdentityStore interface {
	UpsertNSS(ctx context.Context, candidateID domain.CandidateID, nss string, now time.Time) error
	// GetIdentity returns sentinel.ErrNotFound when the candidate has no identity row.
	GetIdentity(ctx context.Context, candidateID domain.CandidateID) (*models.PersonIdentity, error)
}

// SummaryStore holds contribution summaries per candidate.
type SummaryStore interface {
	UpsertSummary(ctx context.Context, summary *models.ContributionSummary) error
	GetSummary(ctx context.Context, candidateID domain.CandidateID) (*models.ContributionSummary, error)
}

// HistoryStore is the append-only employment ledger.
type HistoryStore interface {
	// Append assigns the next sequence for the candidate and inserts row, returning the sequence.
	Append(ctx context.Context, row *models.EmploymentHistoryRow) (int, error)
	ListByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]*models.EmploymentHistoryRow, error)
	Count(ctx context.Context, candidateID domain.CandidateID) (int, error)
}

// Unlock releases a subject lock.
type Unlock func(ctx context.Context) error

// SubjectLocker serialises deliveries for one subject.
type SubjectLocker interface {
	// Lock blocks until the lock is held or the wait budget is spent, in which
	// case it returns sentinel.ErrLocked.
	Lock(ctx context.Context, key string) (Unlock, error)
}

// AuditPublisher records pipeline audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
