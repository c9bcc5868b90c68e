package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"verigate/internal/income/models"
	"verigate/pkg/domain"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

// Postgres persists cases, archives and reconciliation targets in PostgreSQL.
// Queries run inside the context transaction when one is present.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies the schema. Statements are idempotent.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply income schema: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) conn(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// CreateCase inserts a local case. Used for seeding and tests.
func (s *Postgres) CreateCase(ctx context.Context, identifier domain.Identifier, candidateID domain.CandidateID, createdAt time.Time) (*models.LocalCase, error) {
	query := `
		INSERT INTO verification_cases (identifier, candidate_id, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, identifier, candidate_id, status, created_at
	`
	c, err := scanCase(s.conn(ctx).QueryRowContext(ctx, query,
		identifier.String(), int64(candidateID), string(models.CaseStatusInProgress), createdAt))
	if err != nil {
		return nil, fmt.Errorf("create case: %w", err)
	}
	return c, nil
}

func (s *Postgres) FindLatestByIdentifier(ctx context.Context, identifier domain.Identifier) (*models.LocalCase, error) {
	query := `
		SELECT id, identifier, candidate_id, status, created_at
		FROM verification_cases
		WHERE identifier = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	c, err := scanCase(s.conn(ctx).QueryRowContext(ctx, query, identifier.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find latest case: %w", err)
	}
	return c, nil
}

// SaveArchive writes the case status and the archive row in one transaction.
// The archive is upserted by case id; the latest delivery wins.
func (s *Postgres) SaveArchive(ctx context.Context, archive *models.CaseArchive) error {
	if archive == nil {
		return errArchiveRequired
	}
	return tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		res, err := t.ExecContext(ctx,
			`UPDATE verification_cases SET status = $2 WHERE id = $1`,
			int64(archive.CaseID), string(archive.Status))
		if err != nil {
			return fmt.Errorf("update case status: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update case status rows affected: %w", err)
		} else if n == 0 {
			return sentinel.ErrNotFound
		}

		err = upsertRow(ctx, t,
			`SELECT 1 FROM verification_case_archives WHERE case_id = $1 FOR UPDATE`,
			`UPDATE verification_case_archives SET
				status = $2, raw_webhook = $3, raw_profile = $4, raw_employment = $5,
				history_json = $6, verification_id = $7, updated_at = $8
			WHERE case_id = $1`,
			`INSERT INTO verification_case_archives
				(case_id, status, raw_webhook, raw_profile, raw_employment, history_json, verification_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			int64(archive.CaseID),
			string(archive.Status),
			jsonArg(archive.RawWebhook),
			jsonArg(archive.RawProfile),
			jsonArg(archive.RawEmployment),
			jsonArg(archive.HistoryJSON),
			archive.VerificationID,
			archive.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("save case archive: %w", err)
		}
		return nil
	})
}

func (s *Postgres) GetArchive(ctx context.Context, caseID domain.CaseID) (*models.CaseArchive, error) {
	query := `
		SELECT case_id, status, raw_webhook, raw_profile, raw_employment, history_json, verification_id, updated_at
		FROM verification_case_archives
		WHERE case_id = $1
	`
	var (
		a                            models.CaseArchive
		id                           int64
		status                       string
		webhook, profile, employment []byte
		history                      []byte
	)
	err := s.conn(ctx).QueryRowContext(ctx, query, int64(caseID)).Scan(
		&id, &status, &webhook, &profile, &employment, &history, &a.VerificationID, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get case archive: %w", err)
	}
	a.CaseID = domain.CaseID(id)
	a.Status = models.CaseStatus(status)
	a.RawWebhook = rawOrNil(webhook)
	a.RawProfile = rawOrNil(profile)
	a.RawEmployment = rawOrNil(employment)
	a.HistoryJSON = rawOrNil(history)
	return &a, nil
}

func (s *Postgres) UpsertNSS(ctx context.Context, candidateID domain.CandidateID, nss string, now time.Time) error {
	return tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		err := upsertRow(ctx, t,
			`SELECT 1 FROM person_identities WHERE candidate_id = $1 FOR UPDATE`,
			`UPDATE person_identities SET nss = $2, updated_at = $3 WHERE candidate_id = $1`,
			`INSERT INTO person_identities (candidate_id, nss, updated_at) VALUES ($1, $2, $3)`,
			int64(candidateID), nss, now,
		)
		if err != nil {
			return fmt.Errorf("upsert nss: %w", err)
		}
		return nil
	})
}

func (s *Postgres) GetIdentity(ctx context.Context, candidateID domain.CandidateID) (*models.PersonIdentity, error) {
	var (
		p  models.PersonIdentity
		id int64
	)
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT candidate_id, nss, updated_at FROM person_identities WHERE candidate_id = $1`,
		int64(candidateID)).Scan(&id, &p.NSS, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	p.CandidateID = domain.CandidateID(id)
	return &p, nil
}

func (s *Postgres) UpsertSummary(ctx context.Context, summary *models.ContributionSummary) error {
	if summary == nil {
		return errSummaryRequired
	}
	return tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		err := upsertRow(ctx, t,
			`SELECT 1 FROM contribution_summaries WHERE candidate_id = $1 FOR UPDATE`,
			`UPDATE contribution_summaries SET
				employment_count = $2, contribution_weeks = $3, updated_at = $4
			WHERE candidate_id = $1`,
			`INSERT INTO contribution_summaries (candidate_id, employment_count, contribution_weeks, updated_at)
			VALUES ($1, $2, $3, $4)`,
			int64(summary.CandidateID), summary.EmploymentCount, summary.ContributionWeeks, summary.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert contribution summary: %w", err)
		}
		return nil
	})
}

func (s *Postgres) GetSummary(ctx context.Context, candidateID domain.CandidateID) (*models.ContributionSummary, error) {
	var (
		sum models.ContributionSummary
		id  int64
	)
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT candidate_id, employment_count, contribution_weeks, updated_at
		FROM contribution_summaries
		WHERE candidate_id = $1
	`, int64(candidateID)).Scan(&id, &sum.EmploymentCount, &sum.ContributionWeeks, &sum.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get contribution summary: %w", err)
	}
	sum.CandidateID = domain.CandidateID(id)
	return &sum, nil
}

// Append assigns MAX(sequence)+1 for the candidate under a transaction-scoped
// advisory lock, so concurrent appends for one candidate never share a sequence.
func (s *Postgres) Append(ctx context.Context, row *models.EmploymentHistoryRow) (int, error) {
	if row == nil {
		return 0, errHistoryRowRequired
	}
	var seq int
	err := tx.Run(ctx, s.db, func(ctx context.Context, t *sql.Tx) error {
		if _, err := t.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`,
			int64(row.CandidateID)); err != nil {
			return fmt.Errorf("lock employment history: %w", err)
		}
		if err := t.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(sequence), 0) + 1 FROM employment_history WHERE candidate_id = $1`,
			int64(row.CandidateID)).Scan(&seq); err != nil {
			return fmt.Errorf("next employment history sequence: %w", err)
		}
		query := `
			INSERT INTO employment_history
				(candidate_id, sequence, employer_name, start_date, end_date, base_salary,
				 monthly_salary, region, institution, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := t.ExecContext(ctx, query,
			int64(row.CandidateID),
			seq,
			row.EmployerName,
			row.StartDate,
			row.EndDate,
			amountArg(row.BaseSalary),
			amountArg(row.MonthlySalary),
			row.Region,
			string(row.Institution),
			row.Active,
			row.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append employment history: %w", translateWriteErr(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Postgres) ListByCandidate(ctx context.Context, candidateID domain.CandidateID) ([]*models.EmploymentHistoryRow, error) {
	query := `
		SELECT candidate_id, sequence, employer_name, start_date, end_date, base_salary,
		       monthly_salary, region, institution, active, created_at
		FROM employment_history
		WHERE candidate_id = $1
		ORDER BY sequence
	`
	rows, err := s.conn(ctx).QueryContext(ctx, query, int64(candidateID))
	if err != nil {
		return nil, fmt.Errorf("list employment history: %w", err)
	}
	defer rows.Close()

	var out []*models.EmploymentHistoryRow
	for rows.Next() {
		r, err := scanHistoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employment history: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employment history: %w", err)
	}
	return out, nil
}

func (s *Postgres) Count(ctx context.Context, candidateID domain.CandidateID) (int, error) {
	var n int
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM employment_history WHERE candidate_id = $1`, int64(candidateID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count employment history: %w", err)
	}
	return n, nil
}

// upsertRow is an explicit read-check-then-insert-or-update keyed by args[0].
// The existing row is locked FOR UPDATE so the write that commits last wins.
func upsertRow(ctx context.Context, t *sql.Tx, exists, update, insert string, args ...any) error {
	var one int
	err := t.QueryRowContext(ctx, exists, args[0]).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = t.ExecContext(ctx, insert, args...)
	case err != nil:
		return err
	default:
		_, err = t.ExecContext(ctx, update, args...)
	}
	return translateWriteErr(err)
}

// translateWriteErr maps a unique violation onto sentinel.ErrConflict.
func translateWriteErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*models.LocalCase, error) {
	var (
		c           models.LocalCase
		id          int64
		identifier  string
		candidateID int64
		status      string
	)
	if err := row.Scan(&id, &identifier, &candidateID, &status, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ID = domain.CaseID(id)
	c.Identifier = domain.Identifier(identifier)
	c.CandidateID = domain.CandidateID(candidateID)
	c.Status = models.CaseStatus(status)
	return &c, nil
}

func scanHistoryRow(row scanner) (*models.EmploymentHistoryRow, error) {
	var (
		r                   models.EmploymentHistoryRow
		candidateID         int64
		endDate             sql.NullTime
		baseSalary, monthly sql.NullString
		institution         string
	)
	if err := row.Scan(&candidateID, &r.Sequence, &r.EmployerName, &r.StartDate, &endDate,
		&baseSalary, &monthly, &r.Region, &institution, &r.Active, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.CandidateID = domain.CandidateID(candidateID)
	if endDate.Valid {
		t := endDate.Time
		r.EndDate = &t
	}
	r.BaseSalary = models.Amount(baseSalary.String)
	r.MonthlySalary = models.Amount(monthly.String)
	r.Institution = models.Institution(institution)
	return &r, nil
}

func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

func amountArg(a models.Amount) sql.NullString {
	return sql.NullString{String: string(a), Valid: !a.IsZero()}
}
