//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseIdentifier tests that parsing never panics on arbitrary input
// and always returns either a valid identifier or an error.
//
// Justification: Trust boundary functions must handle arbitrary input safely.
func FuzzParseIdentifier(f *testing.F) {
	f.Add("")
	f.Add("ABC123")
	f.Add("GODE561231HDFRRN09")
	f.Add("'; DROP TABLE cases;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("ABC123\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseIdentifier(input)

		if err == nil {
			// Valid identifiers are a fixed point of parsing.
			roundTrip, err2 := ParseIdentifier(id.String())
			if err2 != nil {
				t.Errorf("valid identifier failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed identifier value")
			}
			if utf8.RuneCountInString(string(id)) > MaxIdentifierLength {
				t.Error("oversized identifier was accepted")
			}
		}

		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
