package models

import (
	"encoding/json"
	"fmt"
	"strings"

	dErrors "verigate/pkg/domain-errors"
)

// EmploymentStatus is the provider's view of whether the subject currently works.
type EmploymentStatus string

const (
	EmploymentEmployed   EmploymentStatus = "employed"
	EmploymentUnemployed EmploymentStatus = "unemployed"
	EmploymentUnknown    EmploymentStatus = "unknown"
)

// ParseEmploymentStatus is case- and whitespace-insensitive, like ParseInstitution.
func ParseEmploymentStatus(s string) (EmploymentStatus, error) {
	switch status := EmploymentStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case EmploymentEmployed, EmploymentUnemployed, EmploymentUnknown:
		return status, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("employment_status %q is not recognised", s))
}

// Address is the postal address on the profile.
type Address struct {
	Street         string `json:"street"`
	ExteriorNumber string `json:"exterior_number"`
	InteriorNumber string `json:"interior_number,omitempty"`
	Neighborhood   string `json:"neighborhood"`
	Municipality   string `json:"municipality"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
}

// ProfileSnapshot is one parsed response of GET /profile/{identifier}.
type ProfileSnapshot struct {
	FirstName        string
	LastName         string
	SecondLastName   string
	Identifier       string
	NSS              string
	RFC              string
	Phone            string
	Email            string
	Address          Address
	EmploymentStatus EmploymentStatus

	raw json.RawMessage
}

type profileWire struct {
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	SecondLastName   string  `json:"second_last_name"`
	Identifier       string  `json:"identifier"`
	NSS              *string `json:"nss"`
	RFC              *string `json:"rfc"`
	Phone            *string `json:"phone"`
	Email            *string `json:"email"`
	Address          Address `json:"address"`
	EmploymentStatus string  `json:"employment_status"`
}

// ParseProfile decodes a profile body. Unknown employment statuses fail.
func ParseProfile(body []byte) (*ProfileSnapshot, error) {
	var w profileWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "profile body is not valid JSON")
	}
	status, err := ParseEmploymentStatus(w.EmploymentStatus)
	if err != nil {
		return nil, err
	}
	return &ProfileSnapshot{
		FirstName:        w.FirstName,
		LastName:         w.LastName,
		SecondLastName:   w.SecondLastName,
		Identifier:       w.Identifier,
		NSS:              strings.TrimSpace(deref(w.NSS)),
		RFC:              strings.TrimSpace(deref(w.RFC)),
		Phone:            deref(w.Phone),
		Email:            deref(w.Email),
		Address:          w.Address,
		EmploymentStatus: status,
		raw:              append(json.RawMessage(nil), body...),
	}, nil
}

// HasNSS reports whether the profile carries a national insurance number.
func (p *ProfileSnapshot) HasNSS() bool {
	return p != nil && p.NSS != ""
}

// Raw returns the body exactly as received.
func (p *ProfileSnapshot) Raw() json.RawMessage {
	if p == nil {
		return nil
	}
	return p.raw
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
