package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimalLiteral is plain decimal notation. strconv.ParseFloat alone would
// also admit NaN, Inf and hex floats, none of which NUMERIC stores faithfully.
var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// parseDecimal accepts finite values written in decimal notation only.
func parseDecimal(s string) (float64, bool) {
	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Amount is a monetary value as sent upstream. The provider sends salaries as
// JSON numbers or numeric strings; both decode to the same decimal text so it
// can be stored in a NUMERIC column without float rounding.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = ""
			return nil
		}
	}
	if _, ok := parseDecimal(s); !ok {
		return fmt.Errorf("invalid amount %q", s)
	}
	*a = Amount(s)
	return nil
}

// IsZero reports whether no amount was sent.
func (a Amount) IsZero() bool { return a == "" }

// Count is a non-negative integer counter that may arrive quoted.
type Count int64

func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		*c = 0
		return nil
	}
	n, ok := parseDecimal(s)
	if !ok || n < 0 || n != math.Trunc(n) || n >= math.MaxInt64 {
		return fmt.Errorf("invalid count %q", s)
	}
	*c = Count(n)
	return nil
}
