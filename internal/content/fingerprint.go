package content

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// Fingerprint computes the dedup identity hash of a post. Internal whitespace
// runs in the text collapse to single spaces and media references are sorted
// before hashing, so cosmetic re-fetch differences and attachment order do not
// change identity. Empty input hashes the empty string.
func Fingerprint(text string, mediaRefs []string) string {
	var b strings.Builder

	if text != "" {
		b.WriteString(strings.Join(strings.Fields(text), " "))
	}

	if len(mediaRefs) > 0 {
		refs := make([]string, len(mediaRefs))
		copy(refs, mediaRefs)
		sort.Strings(refs)
		b.WriteString(strings.Join(refs, "|"))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

var excessiveNewlines = regexp.MustCompile(`\n{3,}`)

// SanitizeText trims a post body and collapses runs of three or more newlines
// to a paragraph break. Returns "" when nothing readable remains.
func SanitizeText(text string) string {
	text = excessiveNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
