package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountUnmarshal(t *testing.T) {
	valid := map[string]Amount{
		`450.5`:      "450.5",
		`"13515.00"`: "13515.00",
		`" 12 "`:     "12",
		`1e3`:        "1e3",
		`"-.5"`:      "-.5",
		`null`:       "",
		`""`:         "",
	}
	for in, want := range valid {
		t.Run(in, func(t *testing.T) {
			var a Amount
			require.NoError(t, json.Unmarshal([]byte(in), &a))
			assert.Equal(t, want, a)
		})
	}

	for _, in := range []string{`"NaN"`, `"Inf"`, `"-infinity"`, `"0x1p-2"`, `"1_000"`, `"12abc"`, `"1e400"`, `true`} {
		t.Run("rejects "+in, func(t *testing.T) {
			var a Amount
			assert.Error(t, json.Unmarshal([]byte(in), &a))
		})
	}
}

func TestCountUnmarshal(t *testing.T) {
	var c Count
	require.NoError(t, json.Unmarshal([]byte(`"100"`), &c))
	assert.Equal(t, Count(100), c)

	for _, in := range []string{`"0x10"`, `"NaN"`, `"+Inf"`, `-1`, `2.5`, `"1e19"`} {
		t.Run("rejects "+in, func(t *testing.T) {
			var c Count
			assert.Error(t, json.Unmarshal([]byte(in), &c))
		})
	}
}
