package model

import (
	"strconv"
	"strings"
)

// IdentityHash derives the stable deduplication key for a product name.
//
// The algorithm is a public contract shared with upstream submitters, who
// compute the same hash independently to avoid resubmission: lower-case and
// trim the name, then run a 32-bit rolling hash over its code points
// (h = (h<<5) - h + codepoint, wrapped into signed 32-bit range) and render
// "name_" followed by the absolute value. Collisions in the 32-bit space are
// an accepted limitation; colliding names are treated as the same product.
//
// A literal empty name yields the empty string, which callers treat as "no
// identity". Whitespace-only names trim to nothing and hash to "name_0",
// matching what submitters compute.
func IdentityHash(name string) string {
	if name == "" {
		return ""
	}

	normalized := strings.TrimSpace(strings.ToLower(name))

	var h int32
	for _, r := range normalized {
		h = (h << 5) - h + int32(r)
	}

	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return "name_" + strconv.FormatInt(abs, 10)
}

// CacheKeyParts normalizes a (name, category) pair for cache keying. This is
// distinct from IdentityHash: cache correctness depends on the pair, not on
// record identity.
func CacheKeyParts(name, category string) (string, string) {
	return strings.ToLower(strings.TrimSpace(name)), strings.ToLower(strings.TrimSpace(category))
}
