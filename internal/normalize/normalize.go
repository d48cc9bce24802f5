package normalize

import "strings"

// Term returns a normalized form of a user-supplied search term suitable
// for matching. Normalization currently trims surrounding whitespace and
// lower-cases the term; an all-whitespace input normalizes to the empty
// string, which callers treat as "no search".
func Term(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Handle normalizes a username/handle for comparison the same way Term
// does. Identity strings from the auth provider are opaque and are NOT
// normalized; only display handles are.
func Handle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
