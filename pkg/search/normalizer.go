package search

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Representation is the canonical, searchable form of a document: a set of
// case-folded tokens. It is kept sorted so equal sets compare and
// serialize identically; the order itself carries no meaning.
type Representation []string

// Normalize case-folds tokens and deduplicates them. Blank tokens are
// dropped. Empty input yields an empty, non-nil representation.
func Normalize(tokens []string) Representation {
	// Casers are stateful and must not be shared across goroutines.
	fold := cases.Fold()

	seen := make(map[string]struct{}, len(tokens))
	rep := make(Representation, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(fold.String(tok))
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		rep = append(rep, tok)
	}
	sort.Strings(rep)
	return rep
}

// String is the stored form: tokens separated by a single space
func (r Representation) String() string {
	return strings.Join(r, " ")
}

// Len returns the number of distinct tokens
func (r Representation) Len() int { return len(r) }

// Empty reports whether the representation has no tokens
func (r Representation) Empty() bool { return len(r) == 0 }

// Contains reports whether token is in the set. token must already be
// normalized.
func (r Representation) Contains(token string) bool {
	i := sort.SearchStrings(r, token)
	return i < len(r) && r[i] == token
}

// Equal reports set equality
func (r Representation) Equal(other Representation) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}
