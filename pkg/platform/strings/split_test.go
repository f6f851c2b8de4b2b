package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{name: "empty", raw: "", expected: nil},
		{name: "blank", raw: "   ", expected: nil},
		{name: "single broker", raw: "kafka:9092", expected: []string{"kafka:9092"}},
		{name: "trims whitespace", raw: " a:1 , b:2 ", expected: []string{"a:1", "b:2"}},
		{name: "drops empty elements", raw: "a:1,,b:2,", expected: []string{"a:1", "b:2"}},
		{name: "removes duplicates preserving order", raw: "b:2,a:1,b:2", expected: []string{"b:2", "a:1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.raw, ","))
		})
	}
}

func TestDedupeAndTrim(t *testing.T) {
	assert.Nil(t, DedupeAndTrim(nil))
	assert.Equal(t, []string{}, DedupeAndTrim([]string{}))
	assert.Equal(t, []string{"foo", "bar"}, DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  ", "bar"}))
}
