package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"verigate/internal/income/models"
	"verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
)

// InMemory implements every income store in process. It backs local
// development and service tests; rows are copied on the way in and out so
// callers cannot mutate stored state.
type InMemory struct {
	mu         sync.RWMutex
	nextCaseID domain.CaseID
	cases      []*models.LocalCase
	archives   map[domain.CaseID]*models.CaseArchive
	identities map[domain.CandidateID]*models.PersonIdentity
	summaries  map[domain.CandidateID]*models.ContributionSummary
	history    map[domain.CandidateID][]*models.EmploymentHistoryRow
}

func NewInMemory() *InMemory {
	return &InMemory{
		archives:   make(map[domain.CaseID]*models.CaseArchive),
		identities: make(map[domain.CandidateID]*models.PersonIdentity),
		summaries:  make(map[domain.CandidateID]*models.ContributionSummary),
		history:    make(map[domain.CandidateID][]*models.EmploymentHistoryRow),
	}
}

// CreateCase registers a local case. Cases are created outside the pipeline;
// this exists for seeding.
func (s *InMemory) CreateCase(_ context.Context, identifier domain.Identifier, candidateID domain.CandidateID, createdAt time.Time) (*models.LocalCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCaseID++
	c := &models.LocalCase{
		ID:          s.nextCaseID,
		Identifier:  identifier,
		CandidateID: candidateID,
		Status:      models.CaseStatusInProgress,
		CreatedAt:   createdAt,
	}
	s.cases = append(s.cases, c)
	out := *c
	return &out, nil
}

func (s *InMemory) FindLatestByIdentifier(_ context.Context, identifier domain.Identifier) (*models.LocalCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.LocalCase
	for _, c := range s.cases {
		if c.Identifier != identifier {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && c.ID > latest.ID) {
			latest = c
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s *InMemory) SaveArchive(_ context.Context, archive *models.CaseArchive) error {
	if archive == nil {
		return errArchiveRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.LocalCase
	for _, c := range s.cases {
		if c.ID == archive.CaseID {
			found = c
			break
		}
	}
	if found == nil {
		return sentinel.ErrNotFound
	}
	found.Status = archive.Status
	stored := *archive
	s.archives[archive.CaseID] = &stored
	return nil
}

func (s *InMemory) GetArchive(_ context.Context, caseID domain.CaseID) (*models.CaseArchive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.archives[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *a
	return &out, nil
}

// GetCase returns a case by ID.
func (s *InMemory) GetCase(_ context.Context, caseID domain.CaseID) (*models.LocalCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.cases {
		if c.ID == caseID {
			out := *c
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) UpsertNSS(_ context.Context, candidateID domain.CandidateID, nss string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[candidateID] = &models.PersonIdentity{CandidateID: candidateID, NSS: nss, UpdatedAt: now}
	return nil
}

func (s *InMemory) GetIdentity(_ context.Context, candidateID domain.CandidateID) (*models.PersonIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.identities[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	return &out, nil
}

func (s *InMemory) UpsertSummary(_ context.Context, summary *models.ContributionSummary) error {
	if summary == nil {
		return errSummaryRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *summary
	s.summaries[summary.CandidateID] = &stored
	return nil
}

func (s *InMemory) GetSummary(_ context.Context, candidateID domain.CandidateID) (*models.ContributionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *sum
	return &out, nil
}

func (s *InMemory) Append(_ context.Context, row *models.EmploymentHistoryRow) (int, error) {
	if row == nil {
		return 0, errHistoryRowRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.history[row.CandidateID]
	next := 1
	if len(rows) > 0 {
		next = rows[len(rows)-1].Sequence + 1
	}
	stored := *row
	stored.Sequence = next
	s.history[row.CandidateID] = append(rows, &stored)
	return next, nil
}

func (s *InMemory) ListByCandidate(_ context.Context, candidateID domain.CandidateID) ([]*models.EmploymentHistoryRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.history[candidateID]
	out := make([]*models.EmploymentHistoryRow, 0, len(rows))
	for _, r := range rows {
		cp := *r
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.EmploymentHistoryRow) int { return a.Sequence - b.Sequence })
	return out, nil
}

func (s *InMemory) Count(_ context.Context, candidateID domain.CandidateID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[candidateID]), nil
}
