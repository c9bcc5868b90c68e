package domain

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	dErrors "verigate/pkg/domain-errors"
)

// MaxIdentifierLength bounds a business identifier. CURP is 18 characters and
// RFC 12-13; the margin allows provider-side test identifiers.
const MaxIdentifierLength = 64

// Identifier is the government-issued business identifier (CURP/RFC style)
// a verification subject is known by upstream. It is the external key used to
// locate the local case.
type Identifier string

// CandidateID is the internal numeric key of a person record.
type CandidateID int64

// CaseID is the primary key of a local verification case.
type CaseID int64

// ParseIdentifier validates an identifier at a trust boundary. Surrounding
// whitespace is trimmed; the remaining value must be letters, digits or '&'.
func ParseIdentifier(s string) (Identifier, error) {
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identifier must be valid UTF-8")
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identifier is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxIdentifierLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("identifier exceeds %d characters", MaxIdentifierLength))
	}
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' {
			continue
		}
		return "", dErrors.New(dErrors.CodeInvalidInput, "identifier contains invalid characters")
	}
	return Identifier(trimmed), nil
}

func (i Identifier) String() string { return string(i) }

// IsZero reports whether the identifier is unset.
func (i Identifier) IsZero() bool { return i == "" }

// ParseCandidateID parses a positive decimal candidate id.
func ParseCandidateID(s string) (CandidateID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "candidate id must be a positive integer")
	}
	return CandidateID(n), nil
}

func (c CandidateID) String() string { return strconv.FormatInt(int64(c), 10) }

// IsZero reports whether the candidate id is unset.
func (c CandidateID) IsZero() bool { return c <= 0 }

func (c CaseID) String() string { return strconv.FormatInt(int64(c), 10) }
