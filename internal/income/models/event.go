package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

// Status is the lifecycle status reported by a webhook.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus accepts only the two values the provider documents.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusInProgress, StatusCompleted:
		return Status(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation,
		fmt.Sprintf("status must be one of %s, %s; got %q", StatusInProgress, StatusCompleted, s))
}

// Entity names a data set the provider has available for a subject.
type Entity string

const (
	EntityProfile    Entity = "profile"
	EntityEmployment Entity = "employment"
	EntityInvoices   Entity = "invoices"
)

// ParseEntity accepts only the closed entity set.
func ParseEntity(s string) (Entity, error) {
	switch Entity(s) {
	case EntityProfile, EntityEmployment, EntityInvoices:
		return Entity(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation,
		fmt.Sprintf("entity must be one of %s, %s, %s; got %q", EntityProfile, EntityEmployment, EntityInvoices, s))
}

// WebhookEvent is one asynchronous completion notice. It is immutable once
// parsed; use ParseWebhookEvent to construct it.
type WebhookEvent struct {
	event          string
	verificationID string
	identifier     domain.Identifier
	status         Status
	dataAvailable  bool
	canRetry       bool
	entities       map[Entity]struct{}
	lastUpdatedAt  time.Time
	timestamp      time.Time
	externalID     string
}

var requiredWebhookKeys = []string{
	"event",
	"verification_id",
	"identifier",
	"data_available",
	"can_retry",
	"status",
	"last_updated_at",
	"timestamp",
}

// ParseWebhookEvent validates a decoded JSON body. It fails on the first
// missing or invalid field; nothing is defaulted except the optional keys.
func ParseWebhookEvent(raw map[string]any) (*WebhookEvent, error) {
	if raw == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "webhook body is required")
	}
	for _, key := range requiredWebhookKeys {
		if _, ok := raw[key]; !ok {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s is required", key))
		}
	}

	var (
		e   WebhookEvent
		err error
	)
	if e.event, err = stringField(raw, "event"); err != nil {
		return nil, err
	}
	if e.verificationID, err = idField(raw, "verification_id"); err != nil {
		return nil, err
	}
	id, err := stringField(raw, "identifier")
	if err != nil {
		return nil, err
	}
	if e.identifier, err = domain.ParseIdentifier(id); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "identifier is invalid")
	}
	if e.dataAvailable, err = boolField(raw, "data_available"); err != nil {
		return nil, err
	}
	if e.canRetry, err = boolField(raw, "can_retry"); err != nil {
		return nil, err
	}
	status, err := stringField(raw, "status")
	if err != nil {
		return nil, err
	}
	if e.status, err = ParseStatus(status); err != nil {
		return nil, err
	}
	if e.lastUpdatedAt, err = timeField(raw, "last_updated_at"); err != nil {
		return nil, err
	}
	if e.timestamp, err = timeField(raw, "timestamp"); err != nil {
		return nil, err
	}
	if e.entities, err = entitiesField(raw); err != nil {
		return nil, err
	}
	if v, ok := raw["external_id"]; ok && v != nil {
		if e.externalID, err = idField(raw, "external_id"); err != nil {
			return nil, err
		}
	}

	return &e, nil
}

func (e *WebhookEvent) Event() string                 { return e.event }
func (e *WebhookEvent) VerificationID() string        { return e.verificationID }
func (e *WebhookEvent) Identifier() domain.Identifier { return e.identifier }
func (e *WebhookEvent) Status() Status                { return e.status }
func (e *WebhookEvent) DataAvailable() bool           { return e.dataAvailable }
func (e *WebhookEvent) CanRetry() bool                { return e.canRetry }
func (e *WebhookEvent) LastUpdatedAt() time.Time      { return e.lastUpdatedAt }
func (e *WebhookEvent) Timestamp() time.Time          { return e.timestamp }
func (e *WebhookEvent) ExternalID() string            { return e.externalID }

// IsCompleted reports whether the provider finished the verification.
func (e *WebhookEvent) IsCompleted() bool { return e.status == StatusCompleted }

// HasEntity reports whether the provider announced data for ent.
func (e *WebhookEvent) HasEntity(ent Entity) bool {
	_, ok := e.entities[ent]
	return ok
}

// Entities returns the announced entities in a stable order.
func (e *WebhookEvent) Entities() []Entity {
	out := make([]Entity, 0, len(e.entities))
	for ent := range e.entities {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func stringField(raw map[string]any, key string) (string, error) {
	s, ok := raw[key].(string)
	if !ok {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be a string", key))
	}
	return s, nil
}

// maxExactFloatInt is the largest integer a float64 holds without rounding.
const maxExactFloatInt = 1 << 53

// idField accepts strings and integral JSON numbers; providers are not
// consistent about quoting ids.
func idField(raw map[string]any, key string) (string, error) {
	switch v := raw[key].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must not be empty", key))
		}
		return v, nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return strconv.FormatInt(n, 10), nil
		}
	case float64:
		// Integers past 2^53 have already been rounded by the decoder.
		if v == math.Trunc(v) && math.Abs(v) <= maxExactFloatInt {
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be a string or an integer", key))
}

func boolField(raw map[string]any, key string) (bool, error) {
	b, ok := raw[key].(bool)
	if !ok {
		return false, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s must be a boolean", key))
	}
	return b, nil
}

func timeField(raw map[string]any, key string) (time.Time, error) {
	s, err := stringField(raw, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := parseTimestamp(s)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("%s must be an RFC 3339 timestamp", key))
	}
	return t, nil
}

func entitiesField(raw map[string]any) (map[Entity]struct{}, error) {
	out := make(map[Entity]struct{})
	v, ok := raw["entities"]
	if !ok || v == nil {
		return out, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "entities must be a list")
	}
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "entities must contain strings")
		}
		ent, err := ParseEntity(s)
		if err != nil {
			return nil, err
		}
		out[ent] = struct{}{}
	}
	return out, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
