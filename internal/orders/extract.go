// Package orders resolves order references mentioned in chat messages.
//
// A reference can come in explicitly with the request or be extracted from
// the message text. Resolution prefers the local store and falls back to the
// upstream order status service.
package orders

import (
	"regexp"
	"strings"
)

// orderRefPattern matches order references like "ORDER-4521", "order_991" or
// "ORDER12345". At least three digits are required so short numerics in
// ordinary text do not match.
var orderRefPattern = regexp.MustCompile(`(?i)\b(ORDER[-_]?\d{3,})\b`)

// ExtractOrderRef returns the first order reference found in text, normalized
// to upper case with underscores replaced by hyphens. It returns "" when no
// reference is present.
func ExtractOrderRef(text string) string {
	m := orderRefPattern.FindString(text)
	if m == "" {
		return ""
	}
	return strings.ReplaceAll(strings.ToUpper(m), "_", "-")
}
