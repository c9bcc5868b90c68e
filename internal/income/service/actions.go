package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"

	"verigate/internal/income/metrics"
	"verigate/internal/income/models"
	"verigate/internal/income/ports"
	"verigate/pkg/domain"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/requestcontext"
)

// Action names, used as the metric label and in logs.
const (
	ActionSaveIdentity     = "save_identity"
	ActionSaveContribution = "save_contribution_summary"
	ActionAppendHistory    = "append_employment_history"
	ActionCaptureDocument  = "capture_document"
	ActionManualReview     = "manual_review"
)

// ActionInput is everything a reconciliation action may read. Snapshots are
// nil when the entity was not announced or could not be fetched.
type ActionInput struct {
	Event       *models.WebhookEvent
	CandidateID domain.CandidateID
	Profile     *models.ProfileSnapshot
	Employment  *models.EmploymentSnapshot
}

// Actions binds the reconciliation steps to their stores. It holds no
// per-delivery state; every step reads only its ActionInput.
type Actions struct {
	Identities ports.IdentityStore
	Summaries  ports.SummaryStore
	History    ports.HistoryStore
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	audit func(ctx context.Context, event audit.Event)
}

// ActionFunc is one isolated reconciliation step.
type ActionFunc func(ctx context.Context, in ActionInput) error

// Run executes fn and contains its failure: errors and panics are logged with
// the candidate id and counted, and never reach the caller.
func (a *Actions) Run(ctx context.Context, in ActionInput, name string, fn ActionFunc) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger().ErrorContext(ctx, "reconciliation action panicked",
				"action", name,
				"candidate_id", in.CandidateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			a.recordFailure(ctx, in, name, fmt.Errorf("panic: %v", r))
			failed = true
		}
	}()

	if err := fn(ctx, in); err != nil {
		a.logger().ErrorContext(ctx, "reconciliation action failed",
			"action", name,
			"candidate_id", in.CandidateID,
			"error", err,
		)
		a.recordFailure(ctx, in, name, err)
		return true
	}
	return false
}

// SaveIdentity upserts the profile's NSS onto the candidate's identity record.
func (a *Actions) SaveIdentity(ctx context.Context, in ActionInput) error {
	if !in.Profile.HasNSS() {
		a.logger().InfoContext(ctx, "profile carries no NSS; identity unchanged",
			"candidate_id", in.CandidateID,
			"profile_fetched", in.Profile != nil,
		)
		return nil
	}
	if err := a.Identities.UpsertNSS(ctx, in.CandidateID, in.Profile.NSS, requestcontext.Now(ctx)); err != nil {
		return fmt.Errorf("save nss: %w", err)
	}
	a.emit(ctx, in, audit.EventIdentitySaved, "", "")
	return nil
}

// SaveContributionSummary stores the computed contribution weeks, or the
// manual-review sentinel when no employment snapshot is available.
func (a *Actions) SaveContributionSummary(ctx context.Context, in ActionInput) error {
	summary := &models.ContributionSummary{
		CandidateID: in.CandidateID,
		UpdatedAt:   requestcontext.Now(ctx),
	}
	c, ok := ContributionFromSnapshot(in.Employment)
	if ok {
		summary.EmploymentCount, summary.ContributionWeeks = c.Summary()
	} else {
		summary.EmploymentCount = models.ManualReviewSentinel
		summary.ContributionWeeks = models.ManualReviewSentinel
	}
	if err := a.Summaries.UpsertSummary(ctx, summary); err != nil {
		return fmt.Errorf("save contribution summary: %w", err)
	}
	a.emit(ctx, in, audit.EventContributionSaved, summary.ContributionWeeks, "")
	return nil
}

// AppendHistory appends one ledger row per usable employment record. A record
// that cannot be converted or stored is logged with its fragment and skipped.
// Prior rows are never touched, so a replayed delivery appends again.
func (a *Actions) AppendHistory(ctx context.Context, in ActionInput) error {
	if in.Employment == nil {
		a.logger().InfoContext(ctx, "no employment snapshot; history unchanged", "candidate_id", in.CandidateID)
		return nil
	}

	for _, rej := range in.Employment.Rejected {
		a.recordFailure(ctx, in, ActionAppendHistory, rej.Err)
		a.logger().WarnContext(ctx, "employment record rejected",
			"candidate_id", in.CandidateID,
			"index", rej.Index,
			"fragment", string(rej.Raw),
			"error", rej.Err,
		)
	}

	appended := 0
	for i, rec := range in.Employment.Records {
		row, err := historyRow(ctx, in.CandidateID, rec)
		if err == nil {
			_, err = a.History.Append(ctx, row)
		}
		if err != nil {
			a.recordFailure(ctx, in, ActionAppendHistory, err)
			a.logger().WarnContext(ctx, "employment record not appended",
				"candidate_id", in.CandidateID,
				"index", i,
				"employer_name", rec.EmployerName,
				"start_date", rec.RawStartDate(),
				"end_date", rec.RawEndDate(),
				"error", err,
			)
			continue
		}
		appended++
	}

	if a.Metrics != nil {
		a.Metrics.AddHistoryRows(appended)
	}
	if appended > 0 {
		a.emit(ctx, in, audit.EventHistoryAppended, strconv.Itoa(appended), "")
	}
	return nil
}

func historyRow(ctx context.Context, candidateID domain.CandidateID, rec models.EmploymentRecord) (*models.EmploymentHistoryRow, error) {
	start, err := rec.StartDate()
	if err != nil {
		return nil, err
	}
	end, err := rec.EndDate()
	if err != nil {
		return nil, err
	}
	return &models.EmploymentHistoryRow{
		CandidateID:   candidateID,
		EmployerName:  rec.EmployerName,
		StartDate:     start,
		EndDate:       end,
		BaseSalary:    rec.BaseSalary,
		MonthlySalary: rec.MonthlySalary,
		Region:        rec.Region,
		Institution:   rec.Institution,
		Active:        true,
		CreatedAt:     requestcontext.Now(ctx),
	}, nil
}

// CaptureDocument observes whether the first record links a source document.
// Archival happens elsewhere; nothing is queued here.
func (a *Actions) CaptureDocument(ctx context.Context, in ActionInput) error {
	if !in.Employment.HasRecords() {
		return nil
	}
	first := in.Employment.Records[0]
	if first.DocumentURL == "" {
		a.logger().DebugContext(ctx, "first employment record has no document link", "candidate_id", in.CandidateID)
		return nil
	}
	a.logger().InfoContext(ctx, "employment document available for archival",
		"candidate_id", in.CandidateID,
		"employer_name", first.EmployerName,
		"document_url", first.DocumentURL,
	)
	return nil
}

// FlagManualReviewIfIncomplete writes the manual-review sentinel when the
// candidate still has no NSS or no employment history after reconciliation.
func (a *Actions) FlagManualReviewIfIncomplete(ctx context.Context, in ActionInput) error {
	reason, err := a.incompleteReason(ctx, in.CandidateID)
	if err != nil {
		return err
	}
	if reason == "" {
		return nil
	}
	return a.MarkManualReview(ctx, in, reason)
}

func (a *Actions) incompleteReason(ctx context.Context, candidateID domain.CandidateID) (string, error) {
	identity, err := a.Identities.GetIdentity(ctx, candidateID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return "", fmt.Errorf("read identity: %w", err)
	}
	if identity == nil || identity.NSS == "" {
		return "missing_nss", nil
	}
	n, err := a.History.Count(ctx, candidateID)
	if err != nil {
		return "", fmt.Errorf("count employment history: %w", err)
	}
	if n == 0 {
		return "empty_employment_history", nil
	}
	return "", nil
}

// MarkManualReview writes the sentinel on both summary fields.
func (a *Actions) MarkManualReview(ctx context.Context, in ActionInput, reason string) error {
	err := a.Summaries.UpsertSummary(ctx, &models.ContributionSummary{
		CandidateID:       in.CandidateID,
		EmploymentCount:   models.ManualReviewSentinel,
		ContributionWeeks: models.ManualReviewSentinel,
		UpdatedAt:         requestcontext.Now(ctx),
	})
	if err != nil {
		return fmt.Errorf("mark manual review: %w", err)
	}
	if a.Metrics != nil {
		a.Metrics.IncrementManualReview()
	}
	a.logger().InfoContext(ctx, "candidate flagged for manual review",
		"candidate_id", in.CandidateID,
		"reason", reason,
	)
	a.emit(ctx, in, audit.EventManualReviewFlagged, models.ManualReviewSentinel, reason)
	return nil
}

func (a *Actions) recordFailure(ctx context.Context, in ActionInput, name string, err error) {
	if a.Metrics != nil {
		a.Metrics.IncrementActionFailure(name)
	}
	a.emit(ctx, in, audit.EventActionFailed, name, err.Error())
}

func (a *Actions) emit(ctx context.Context, in ActionInput, action audit.AuditEvent, decision, reason string) {
	if a.audit == nil {
		return
	}
	evt := audit.Event{
		CandidateID: int64(in.CandidateID),
		Action:      string(action),
		Decision:    decision,
		Reason:      reason,
	}
	if in.Event != nil {
		evt.Subject = in.Event.Identifier().String()
		evt.VerificationID = in.Event.VerificationID()
	}
	a.audit(ctx, evt)
}

func (a *Actions) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
