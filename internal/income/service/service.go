// Package service runs the webhook reconciliation pipeline: parse the
// delivery, archive it against the local case and branch into retry, no-data
// or reconciliation.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"verigate/internal/income/metrics"
	"verigate/internal/income/models"
	"verigate/internal/income/ports"
	"verigate/internal/platform/logger"
	"verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/requestcontext"
)

// Outcome is the terminal branch a delivery took.
type Outcome string

const (
	OutcomeInProgress  Outcome = "in_progress"
	OutcomeRetryIssued Outcome = "retry_issued"
	OutcomeNoData      Outcome = "no_data"
	OutcomeReconciled  Outcome = "reconciled"
)

var outcomeMessages = map[Outcome]string{
	OutcomeInProgress:  "verification in progress; event archived",
	OutcomeRetryIssued: "verification retry requested",
	OutcomeNoData:      "verification completed without data",
	OutcomeReconciled:  "verification reconciled",
}

// Message is the acknowledgement text returned to the webhook caller.
func (o Outcome) Message() string {
	return outcomeMessages[o]
}

// Stores groups the persistence ports the pipeline writes to.
type Stores struct {
	Cases      ports.CaseStore
	Archives   ports.ArchiveStore
	Identities ports.IdentityStore
	Summaries  ports.SummaryStore
	History    ports.HistoryStore
}

func (s Stores) validate() error {
	switch {
	case s.Cases == nil:
		return fmt.Errorf("case store is required")
	case s.Archives == nil:
		return fmt.Errorf("archive store is required")
	case s.Identities == nil:
		return fmt.Errorf("identity store is required")
	case s.Summaries == nil:
		return fmt.Errorf("summary store is required")
	case s.History == nil:
		return fmt.Errorf("history store is required")
	}
	return nil
}

type Service struct {
	upstream       ports.Upstream
	stores         Stores
	locker         ports.SubjectLocker
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics

	fetcher *Fetcher
	actions *Actions
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(upstream ports.Upstream, stores Stores, locker ports.SubjectLocker, opts ...Option) (*Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if err := stores.validate(); err != nil {
		return nil, err
	}
	if locker == nil {
		return nil, fmt.Errorf("subject locker is required")
	}

	svc := &Service{
		upstream: upstream,
		stores:   stores,
		locker:   locker,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	svc.fetcher = NewFetcher(upstream, svc.logger, svc.metrics)
	svc.actions = &Actions{
		Identities: stores.Identities,
		Summaries:  stores.Summaries,
		History:    stores.History,
		Logger:     svc.logger,
		Metrics:    svc.metrics,
		audit:      svc.emit,
	}
	return svc, nil
}

// Process handles one webhook delivery end to end.
func (s *Service) Process(ctx context.Context, delivery *models.Delivery) (Outcome, error) {
	start := time.Now()
	ctx, span := logger.StartSpan(ctx, "income.Process")
	defer span.End()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveProcessing(time.Since(start))
		}
	}()

	outcome, err := s.process(ctx, delivery)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return "", err
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	s.countWebhook(string(outcome))
	return outcome, nil
}

func (s *Service) process(ctx context.Context, delivery *models.Delivery) (Outcome, error) {
	if delivery == nil {
		delivery = &models.Delivery{}
	}
	event, err := models.ParseWebhookEvent(delivery.Fields)
	if err != nil {
		s.countWebhook("rejected")
		s.logger.WarnContext(ctx, "webhook rejected", "error", err)
		s.emit(ctx, audit.Event{Action: string(audit.EventWebhookRejected), Reason: dErrors.MessageOf(err)})
		return "", err
	}
	ctx = requestcontext.WithDeliveryID(ctx, event.VerificationID())
	identifier := event.Identifier()

	localCase, err := s.stores.Cases.FindLatestByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countWebhook("case_not_found")
			s.logger.WarnContext(ctx, "no verification case for identifier", "identifier", identifier)
			s.emit(ctx, audit.Event{
				Subject:        identifier.String(),
				VerificationID: event.VerificationID(),
				Action:         string(audit.EventCaseNotFound),
			})
			return "", dErrors.Wrap(err, dErrors.CodeNotFound, "no verification case for identifier")
		}
		s.countWebhook("error")
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up verification case")
	}

	unlock, err := s.locker.Lock(ctx, identifier.String())
	if err != nil {
		s.countWebhook("locked")
		s.logger.WarnContext(ctx, "subject lock not acquired", "identifier", identifier, "error", err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "another delivery for this subject is being processed")
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "failed to release subject lock", "identifier", identifier, "error", err)
		}
	}()

	p := &pass{
		event:      event,
		raw:        delivery.Fields,
		rawWebhook: delivery.Body,
		caseID:     localCase.ID,
		candidate:  localCase.CandidateID,
	}
	s.warnDeprecatedDelta(ctx, p)

	switch {
	case !event.IsCompleted():
		if err := s.archive(ctx, p, nil, nil); err != nil {
			return "", err
		}
		return OutcomeInProgress, nil

	case event.CanRetry():
		if err := s.archive(ctx, p, nil, nil); err != nil {
			return "", err
		}
		if err := s.retry(ctx, p); err != nil {
			return "", err
		}
		return OutcomeRetryIssued, nil

	case !event.DataAvailable():
		if err := s.archive(ctx, p, nil, nil); err != nil {
			return "", err
		}
		s.logger.InfoContext(ctx, "verification completed without data", "identifier", identifier)
		s.emit(ctx, p.auditEvent(audit.EventNoDataAvailable))
		return OutcomeNoData, nil
	}

	profile, employment := s.fetcher.Fetch(ctx, event)
	if err := s.archive(ctx, p, profile, employment); err != nil {
		return "", err
	}
	s.reconcile(ctx, p, profile, employment)
	return OutcomeReconciled, nil
}

// pass carries the per-delivery values resolved once by the orchestrator.
// rawWebhook is the request body as received.
type pass struct {
	event      *models.WebhookEvent
	raw        map[string]any
	rawWebhook json.RawMessage
	caseID     domain.CaseID
	candidate  domain.CandidateID
}

func (p *pass) input(profile *models.ProfileSnapshot, employment *models.EmploymentSnapshot) ActionInput {
	return ActionInput{
		Event:       p.event,
		CandidateID: p.candidate,
		Profile:     profile,
		Employment:  employment,
	}
}

func (p *pass) auditEvent(action audit.AuditEvent) audit.Event {
	return audit.Event{
		Subject:        p.event.Identifier().String(),
		CandidateID:    int64(p.candidate),
		CaseID:         int64(p.caseID),
		VerificationID: p.event.VerificationID(),
		Action:         string(action),
	}
}

// archive records what the delivery said and what was fetched. It runs once
// per delivery; failure is fatal because nothing downstream is durable without it.
func (s *Service) archive(ctx context.Context, p *pass, profile *models.ProfileSnapshot, employment *models.EmploymentSnapshot) error {
	archive := &models.CaseArchive{
		CaseID:         p.caseID,
		Status:         models.CaseStatusFor(p.event.Status()),
		RawWebhook:     p.rawWebhook,
		RawProfile:     profile.Raw(),
		RawEmployment:  employment.Raw(),
		HistoryJSON:    employment.HistoryJSON(),
		VerificationID: p.event.VerificationID(),
		UpdatedAt:      requestcontext.Now(ctx),
	}
	if err := s.stores.Archives.SaveArchive(ctx, archive); err != nil {
		s.countWebhook("error")
		s.logger.ErrorContext(ctx, "failed to archive webhook",
			"case_id", p.caseID,
			"candidate_id", p.candidate,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive webhook")
	}
	evt := p.auditEvent(audit.EventCaseArchived)
	evt.Decision = string(archive.Status)
	s.emit(ctx, evt)
	return nil
}

// reconcile runs every action in isolation, then applies the manual-review
// branch when identity or history is still missing.
func (s *Service) reconcile(ctx context.Context, p *pass, profile *models.ProfileSnapshot, employment *models.EmploymentSnapshot) {
	in := p.input(profile, employment)

	s.actions.Run(ctx, in, ActionSaveIdentity, s.actions.SaveIdentity)
	s.actions.Run(ctx, in, ActionSaveContribution, s.actions.SaveContributionSummary)
	s.actions.Run(ctx, in, ActionAppendHistory, s.actions.AppendHistory)
	s.actions.Run(ctx, in, ActionCaptureDocument, s.actions.CaptureDocument)

	if !p.event.CanRetry() {
		s.actions.Run(ctx, in, ActionManualReview, s.actions.FlagManualReviewIfIncomplete)
	}

	s.emit(ctx, p.auditEvent(audit.EventReconciliationApplied))
}

func (s *Service) countWebhook(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementWebhook(outcome)
	}
}

// emit forwards an audit event; publishing failures are logged, never returned.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
