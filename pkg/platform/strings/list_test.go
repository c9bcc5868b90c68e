package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "blank", input: "   ", want: nil},
		{name: "only separators", input: ", ,", want: nil},
		{name: "single broker", input: "localhost:9092", want: []string{"localhost:9092"}},
		{name: "trims and drops repeats", input: " broker-1:9092,broker-2:9092, broker-1:9092 ,", want: []string{"broker-1:9092", "broker-2:9092"}},
		{name: "case sensitive", input: "Broker,broker", want: []string{"Broker", "broker"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.input))
		})
	}
}
