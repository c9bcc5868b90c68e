//go:build integration

package store_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/income/models"
	"verigate/internal/income/store"
	"verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/testutil/containers"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	now      time.Time
}

func TestPostgresIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresIntegrationSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"verification_case_archives", "verification_cases", "person_identities",
		"contribution_summaries", "employment_history")
	s.Require().NoError(err)
}

func (s *PostgresIntegrationSuite) TestArchiveRoundTrip() {
	ctx := context.Background()
	c, err := s.store.CreateCase(ctx, "ABC123", 42, s.now)
	s.Require().NoError(err)

	latest, err := s.store.FindLatestByIdentifier(ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(c.ID, latest.ID)

	err = s.store.SaveArchive(ctx, &models.CaseArchive{
		CaseID:         c.ID,
		Status:         models.CaseStatusSuccess,
		RawWebhook:     json.RawMessage(`{"status":"completed"}`),
		RawProfile:     json.RawMessage(`{"nss":"12345678901"}`),
		VerificationID: "ver_1",
		UpdatedAt:      s.now,
	})
	s.Require().NoError(err)

	got, err := s.store.GetArchive(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.CaseStatusSuccess, got.Status)
	s.JSONEq(`{"nss":"12345678901"}`, string(got.RawProfile))
	s.Nil(got.RawEmployment)

	latest, err = s.store.FindLatestByIdentifier(ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(models.CaseStatusSuccess, latest.Status)
}

func (s *PostgresIntegrationSuite) TestIdentityUpsert() {
	ctx := context.Background()
	s.Require().NoError(s.store.UpsertNSS(ctx, 42, "11111111111", s.now))
	s.Require().NoError(s.store.UpsertNSS(ctx, 42, "12345678901", s.now))

	got, err := s.store.GetIdentity(ctx, 42)
	s.Require().NoError(err)
	s.Equal("12345678901", got.NSS)

	_, err = s.store.GetIdentity(ctx, 43)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentAppendsAreGapless verifies the advisory lock serialises
// sequence assignment across connections.
func (s *PostgresIntegrationSuite) TestConcurrentAppendsAreGapless() {
	ctx := context.Background()
	const goroutines = 25
	candidate := domain.CandidateID(77)

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Append(ctx, &models.EmploymentHistoryRow{
				CandidateID:  candidate,
				EmployerName: "ACME",
				StartDate:    s.now,
				BaseSalary:   "1000.00",
				Institution:  models.InstitutionIMSS,
				Active:       true,
				CreatedAt:    s.now,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	rows, err := s.store.ListByCandidate(ctx, candidate)
	s.Require().NoError(err)
	s.Require().Len(rows, goroutines)
	for i, r := range rows {
		s.Equal(i+1, r.Sequence)
	}
	s.Equal(models.Amount("1000.00"), rows[0].BaseSalary)
}
