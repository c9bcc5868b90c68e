package service

import (
	"context"

	"github.com/google/uuid"

	dErrors "verigate/pkg/domain-errors"
	audit "verigate/pkg/platform/audit"
)

// retry re-issues the verification upstream with a fresh correlation id.
// Failure is fatal for the delivery.
func (s *Service) retry(ctx context.Context, p *pass) error {
	identifier := p.event.Identifier()
	correlationID := uuid.NewString()

	verificationID, err := s.upstream.RequestVerification(ctx, identifier, correlationID)
	if err != nil {
		s.countWebhook("retry_failed")
		if s.metrics != nil {
			s.metrics.IncrementRetry("error")
		}
		s.logger.ErrorContext(ctx, "failed to re-issue verification",
			"identifier", identifier,
			"candidate_id", p.candidate,
			"external_id", correlationID,
			"error", err,
		)
		evt := p.auditEvent(audit.EventRetryFailed)
		evt.ExternalID = correlationID
		evt.Reason = err.Error()
		s.emit(ctx, evt)
		return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to re-issue verification")
	}

	if s.metrics != nil {
		s.metrics.IncrementRetry("ok")
	}
	s.logger.InfoContext(ctx, "verification re-issued",
		"identifier", identifier,
		"candidate_id", p.candidate,
		"external_id", correlationID,
		"new_verification_id", verificationID,
	)
	evt := p.auditEvent(audit.EventRetryIssued)
	evt.ExternalID = correlationID
	evt.ReissuedVerificationID = verificationID
	s.emit(ctx, evt)
	return nil
}
