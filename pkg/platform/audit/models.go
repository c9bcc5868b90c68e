package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers writes of regulated personal data (NSS,
	// contribution figures, employment ledger) and manual-review decisions.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers deliveries that were rejected or referenced
	// subjects we have no case for.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine pipeline progress.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from the pipeline to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID             string
	Category       EventCategory
	Timestamp      time.Time
	Subject        string // business identifier of the verification subject
	CandidateID    int64
	CaseID         int64
	VerificationID string
	// ExternalID is the correlation id sent upstream with a re-issued request.
	ExternalID string
	// ReissuedVerificationID is the id the provider assigned to a re-issued request.
	ReissuedVerificationID string
	Action                 string
	Decision               string
	Reason                 string
	RequestID              string
}

type AuditEvent string

const (
	EventWebhookRejected       AuditEvent = "webhook_rejected"
	EventCaseNotFound          AuditEvent = "case_not_found"
	EventCaseArchived          AuditEvent = "case_archived"
	EventRetryIssued           AuditEvent = "retry_issued"
	EventRetryFailed           AuditEvent = "retry_failed"
	EventNoDataAvailable       AuditEvent = "no_data_available"
	EventIdentitySaved         AuditEvent = "identity_saved"
	EventContributionSaved     AuditEvent = "contribution_summary_saved"
	EventHistoryAppended       AuditEvent = "employment_history_appended"
	EventManualReviewFlagged   AuditEvent = "manual_review_flagged"
	EventActionFailed          AuditEvent = "reconciliation_action_failed"
	EventReconciliationApplied AuditEvent = "reconciliation_applied"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventIdentitySaved:       CategoryCompliance,
	EventContributionSaved:   CategoryCompliance,
	EventHistoryAppended:     CategoryCompliance,
	EventManualReviewFlagged: CategoryCompliance,
	EventCaseArchived:        CategoryCompliance,

	EventWebhookRejected: CategorySecurity,
	EventCaseNotFound:    CategorySecurity,

	EventRetryIssued:           CategoryOperations,
	EventRetryFailed:           CategoryOperations,
	EventNoDataAvailable:       CategoryOperations,
	EventActionFailed:          CategoryOperations,
	EventReconciliationApplied: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
