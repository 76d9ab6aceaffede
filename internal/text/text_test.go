package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumberedList(t *testing.T) {
	t.Run("Strips Prefixes", func(t *testing.T) {
		items := ParseNumberedList("1. Alpha\n2.Beta\n  3.   Gamma  ", 5)
		assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, items)
	})

	t.Run("Caps At Limit", func(t *testing.T) {
		resp := "1. a\n2. b\n3. c\n4. d\n5. e\n6. f"
		items := ParseNumberedList(resp, 5)
		assert.Len(t, items, 5)
		assert.Equal(t, "e", items[4])
	})

	t.Run("Ignores Prose", func(t *testing.T) {
		resp := "Here are your items:\n\n1. first\nnot numbered\n- 2. bulleted\n10. tenth\n"
		assert.Equal(t, []string{"first", "tenth"}, ParseNumberedList(resp, 10))
	})

	t.Run("No Matches", func(t *testing.T) {
		assert.Empty(t, ParseNumberedList("nothing numbered here", 3))
		assert.Nil(t, ParseNumberedList("1. a", 0))
	})

	t.Run("Item Never Keeps Its Prefix", func(t *testing.T) {
		var b strings.Builder
		for i := 1; i <= 20; i++ {
			b.WriteString(strings.Repeat(" ", i%3))
			b.WriteString(strings.TrimSpace(strings.Repeat("9", i%2)))
			b.WriteString("1. value\n")
		}
		for _, item := range ParseNumberedList(b.String(), 20) {
			assert.Equal(t, "value", item)
		}
	})
}

func TestCleanModelResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"Plain", "1. a\n2. b", []string{"a", "b"}},
		{"Fenced", "```\n1. a\n2. b\n```", []string{"a", "b"}},
		{"Bold Numbers", "**1.** a\n**2. b**", []string{"a", "b"}},
		{"Bullets", "- 1. a\n* 2. b", []string{"a", "b"}},
		{"CRLF", "1. a\r\n2. b\r\n", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumberedList(CleanModelResponse(tt.in), 10))
		})
	}
}
