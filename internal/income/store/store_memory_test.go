package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/income/models"
	"verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
)

// =============================================================================
// In-Memory Store Test Suite
// =============================================================================
// Justification: service tests run against this store, so it must honour the
// same lookup order, latest-write-wins and ledger sequencing as Postgres.

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
}

func (s *InMemorySuite) TestFindLatestByIdentifier() {
	s.Run("missing identifier is not found", func() {
		_, err := s.store.FindLatestByIdentifier(s.ctx, "NOPE")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("newest case wins and ties break on id", func() {
		_, err := s.store.CreateCase(s.ctx, "ABC123", 1, s.now.Add(-time.Hour))
		s.Require().NoError(err)
		tieA, err := s.store.CreateCase(s.ctx, "ABC123", 2, s.now)
		s.Require().NoError(err)
		tieB, err := s.store.CreateCase(s.ctx, "ABC123", 3, s.now)
		s.Require().NoError(err)

		got, err := s.store.FindLatestByIdentifier(s.ctx, "ABC123")
		s.Require().NoError(err)
		s.Greater(tieB.ID, tieA.ID)
		s.Equal(tieB.ID, got.ID)
		s.Equal(domain.CandidateID(3), got.CandidateID)
	})
}

func (s *InMemorySuite) TestSaveArchiveUpdatesCaseStatus() {
	c, err := s.store.CreateCase(s.ctx, "ABC123", 7, s.now)
	s.Require().NoError(err)

	archive := &models.CaseArchive{
		CaseID:         c.ID,
		Status:         models.CaseStatusSuccess,
		RawWebhook:     json.RawMessage(`{"status":"completed"}`),
		VerificationID: "ver_1",
		UpdatedAt:      s.now,
	}
	s.Require().NoError(s.store.SaveArchive(s.ctx, archive))

	updated, err := s.store.GetCase(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.CaseStatusSuccess, updated.Status)

	archive.VerificationID = "ver_2"
	s.Require().NoError(s.store.SaveArchive(s.ctx, archive))
	got, err := s.store.GetArchive(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("ver_2", got.VerificationID)

	s.ErrorIs(s.store.SaveArchive(s.ctx, &models.CaseArchive{CaseID: 999}), sentinel.ErrNotFound)
	s.Error(s.store.SaveArchive(s.ctx, nil))
}

func (s *InMemorySuite) TestIdentityLatestWriteWins() {
	_, err := s.store.GetIdentity(s.ctx, 1)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.UpsertNSS(s.ctx, 1, "11111111111", s.now))
	s.Require().NoError(s.store.UpsertNSS(s.ctx, 1, "22222222222", s.now.Add(time.Minute)))

	got, err := s.store.GetIdentity(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("22222222222", got.NSS)
}

func (s *InMemorySuite) TestSummaryLatestWriteWins() {
	s.Require().NoError(s.store.UpsertSummary(s.ctx, &models.ContributionSummary{CandidateID: 1, EmploymentCount: "2", ContributionWeeks: "95"}))
	s.Require().NoError(s.store.UpsertSummary(s.ctx, &models.ContributionSummary{CandidateID: 1, EmploymentCount: models.ManualReviewSentinel, ContributionWeeks: models.ManualReviewSentinel}))

	got, err := s.store.GetSummary(s.ctx, 1)
	s.Require().NoError(err)
	s.True(got.RequiresManualReview())
}

func (s *InMemorySuite) TestHistorySequencing() {
	s.Run("sequences start at one per candidate", func() {
		seq, err := s.store.Append(s.ctx, &models.EmploymentHistoryRow{CandidateID: 10, EmployerName: "A"})
		s.Require().NoError(err)
		s.Equal(1, seq)
		seq, err = s.store.Append(s.ctx, &models.EmploymentHistoryRow{CandidateID: 11, EmployerName: "B"})
		s.Require().NoError(err)
		s.Equal(1, seq)
	})

	s.Run("concurrent appends never share a sequence", func() {
		const n = 40
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.store.Append(s.ctx, &models.EmploymentHistoryRow{CandidateID: 20, EmployerName: "C"})
			}()
		}
		wg.Wait()

		rows, err := s.store.ListByCandidate(s.ctx, 20)
		s.Require().NoError(err)
		s.Len(rows, n)
		for i, r := range rows {
			s.Equal(i+1, r.Sequence)
		}
		count, err := s.store.Count(s.ctx, 20)
		s.Require().NoError(err)
		s.Equal(n, count)
	})

	s.Run("nil row rejected", func() {
		_, err := s.store.Append(s.ctx, nil)
		s.Error(err)
	})
}
