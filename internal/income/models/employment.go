package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dErrors "verigate/pkg/domain-errors"
)

// Institution is the social security institute that issued a record.
type Institution string

const (
	InstitutionIMSS   Institution = "imss"
	InstitutionISSSTE Institution = "issste"
)

func ParseInstitution(s string) (Institution, error) {
	switch Institution(strings.ToLower(strings.TrimSpace(s))) {
	case InstitutionIMSS:
		return InstitutionIMSS, nil
	case InstitutionISSSTE:
		return InstitutionISSSTE, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("institution %q is not recognised", s))
}

// EmploymentRecord is one job entry of the employment history. Dates are kept
// as received; StartDate and EndDate parse them so a malformed date only
// affects the record it belongs to.
type EmploymentRecord struct {
	EmployerName           string
	EmployerRegistrationID string
	Region                 string
	BaseSalary             Amount
	MonthlySalary          Amount
	DocumentURL            string
	Institution            Institution

	startDate string
	endDate   string
}

// EmploymentRecordParams carries the fields of a record before validation.
type EmploymentRecordParams struct {
	EmployerName           string
	EmployerRegistrationID string
	StartDate              string
	EndDate                string
	Region                 string
	BaseSalary             Amount
	MonthlySalary          Amount
	DocumentURL            string
	Institution            string
}

// NewEmploymentRecord fails when the institution is unknown or the employer is missing.
func NewEmploymentRecord(p EmploymentRecordParams) (EmploymentRecord, error) {
	inst, err := ParseInstitution(p.Institution)
	if err != nil {
		return EmploymentRecord{}, err
	}
	if strings.TrimSpace(p.EmployerName) == "" {
		return EmploymentRecord{}, dErrors.New(dErrors.CodeValidation, "employer name is required")
	}
	return EmploymentRecord{
		EmployerName:           strings.TrimSpace(p.EmployerName),
		EmployerRegistrationID: p.EmployerRegistrationID,
		Region:                 p.Region,
		BaseSalary:             p.BaseSalary,
		MonthlySalary:          p.MonthlySalary,
		DocumentURL:            strings.TrimSpace(p.DocumentURL),
		Institution:            inst,
		startDate:              p.StartDate,
		endDate:                p.EndDate,
	}, nil
}

// RawStartDate returns the start date as sent upstream.
func (r EmploymentRecord) RawStartDate() string { return r.startDate }

// RawEndDate returns the end date as sent upstream; empty means current.
func (r EmploymentRecord) RawEndDate() string { return r.endDate }

// StartDate parses the start date.
func (r EmploymentRecord) StartDate() (time.Time, error) {
	return parseDate("start_date", r.startDate)
}

// EndDate parses the end date. A nil time means the job is current.
func (r EmploymentRecord) EndDate() (*time.Time, error) {
	if strings.TrimSpace(r.endDate) == "" {
		return nil, nil
	}
	t, err := parseDate("end_date", r.endDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IsCurrent reports whether the record has no end date.
func (r EmploymentRecord) IsCurrent() bool {
	return strings.TrimSpace(r.endDate) == ""
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s %q is not a date", field, s))
}

// RejectedRecord describes an upstream history entry that could not be constructed.
type RejectedRecord struct {
	Index int
	Raw   json.RawMessage
	Err   error
}

// EmploymentSnapshot is one parsed response of GET /employments/{identifier}.
type EmploymentSnapshot struct {
	Identifier        string
	LastUpdatedAt     time.Time
	QuotedWeeks       Count
	DiscountedWeeks   Count
	ReintegratedWeeks Count
	Records           []EmploymentRecord
	Rejected          []RejectedRecord

	raw     json.RawMessage
	history json.RawMessage
}

type employmentWire struct {
	Identifier        string            `json:"identifier"`
	LastUpdatedAt     string            `json:"last_updated_at"`
	QuotedWeeks       Count             `json:"semanas_cotizadas"`
	DiscountedWeeks   Count             `json:"discounted_weeks"`
	ReintegratedWeeks Count             `json:"reintegrated_weeks"`
	History           []json.RawMessage `json:"employment_history"`
}

type recordWire struct {
	EmployerName           string `json:"employer_name"`
	EmployerRegistrationID string `json:"employer_registration_id"`
	StartDate              string `json:"start_date"`
	EndDate                string `json:"end_date"`
	Region                 string `json:"region"`
	BaseSalary             Amount `json:"base_salary"`
	MonthlySalary          Amount `json:"monthly_salary"`
	DocumentURL            string `json:"document_url"`
	Institution            string `json:"institution"`
}

// ParseEmployment decodes an employment body. History entries that fail
// construction are collected in Rejected instead of failing the snapshot.
func ParseEmployment(body []byte) (*EmploymentSnapshot, error) {
	var w employmentWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "employment body is not valid JSON")
	}

	snap := &EmploymentSnapshot{
		Identifier:        w.Identifier,
		QuotedWeeks:       w.QuotedWeeks,
		DiscountedWeeks:   w.DiscountedWeeks,
		ReintegratedWeeks: w.ReintegratedWeeks,
		Records:           make([]EmploymentRecord, 0, len(w.History)),
		raw:               append(json.RawMessage(nil), body...),
	}
	if w.LastUpdatedAt != "" {
		t, err := parseTimestamp(w.LastUpdatedAt)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "employment last_updated_at is invalid")
		}
		snap.LastUpdatedAt = t
	}
	if w.History != nil {
		history, err := json.Marshal(w.History)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "re-encode employment history")
		}
		snap.history = history
	}

	for i, item := range w.History {
		var rw recordWire
		if err := json.Unmarshal(item, &rw); err != nil {
			snap.Rejected = append(snap.Rejected, RejectedRecord{Index: i, Raw: item, Err: err})
			continue
		}
		rec, err := NewEmploymentRecord(EmploymentRecordParams(rw))
		if err != nil {
			snap.Rejected = append(snap.Rejected, RejectedRecord{Index: i, Raw: item, Err: err})
			continue
		}
		snap.Records = append(snap.Records, rec)
	}
	return snap, nil
}

// Raw returns the body exactly as received.
func (s *EmploymentSnapshot) Raw() json.RawMessage {
	if s == nil {
		return nil
	}
	return s.raw
}

// HistoryJSON returns the employment_history list as received, or nil.
func (s *EmploymentSnapshot) HistoryJSON() json.RawMessage {
	if s == nil {
		return nil
	}
	return s.history
}

// HasRecords reports whether the snapshot carries at least one usable record.
func (s *EmploymentSnapshot) HasRecords() bool {
	return s != nil && len(s.Records) > 0
}
