package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected Representation
	}{
		{
			name:     "dedup",
			input:    []string{"東京", "タワー", "東京", "東京"},
			expected: Representation{"タワー", "東京"},
		},
		{
			name:     "case fold",
			input:    []string{"IT", "it", "It"},
			expected: Representation{"it"},
		},
		{
			name:     "full fold",
			input:    []string{"Straße", "STRASSE"},
			expected: Representation{"strasse"},
		},
		{
			name:     "blank tokens dropped",
			input:    []string{" ", "", "go"},
			expected: Representation{"go"},
		},
		{
			name:     "empty",
			input:    nil,
			expected: Representation{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_PermutationInvariant(t *testing.T) {
	a := Normalize([]string{"観光", "東京", "Go", "東京"})
	b := Normalize([]string{"go", "東京", "観光"})

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.String(), b.String())
}

func TestRepresentation_StoredForm(t *testing.T) {
	rep := Normalize([]string{"美しい", "東京", "タワー"})

	stored := rep.String()
	assert.Equal(t, 2, countSpaces(stored))
	assert.Equal(t, rep, Normalize(strings.Fields(stored)))
	assert.Equal(t, "", Representation{}.String())
}

func TestRepresentation_Contains(t *testing.T) {
	rep := Normalize([]string{"東京", "タワー", "観光"})

	assert.True(t, rep.Contains("東京"))
	assert.True(t, rep.Contains("観光"))
	assert.False(t, rep.Contains("美しい"))
	assert.False(t, Representation{}.Contains("東京"))
}

func countSpaces(s string) int {
	n := 0
	for _, r := range s {
		if r == ' ' {
			n++
		}
	}
	return n
}
