// Package util provides common utility functions.
package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Matches runs of whitespace (for collapsing).
var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeTagName cleans user input into the stored display form of a tag
// name: trimmed, inner whitespace collapsed. Casing is preserved: "Slow Burn"
// stays "Slow Burn"; identity comparisons go through FoldTagName.
func NormalizeTagName(input string) string {
	s := strings.TrimSpace(input)
	return whitespaceRe.ReplaceAllString(s, " ")
}

// FoldTagName converts a tag name to its canonical comparison form.
// Two tags collide when their folded names are equal.
//
// Folding rules:
//  1. Unicode-normalize (NFKC, so composed and decomposed forms compare equal)
//  2. Lowercase
//  3. Trim and collapse whitespace
//
// Examples:
//
//	"Reading"   → "reading"
//	" Slow Burn " → "slow burn"
//	"CAFÉ"      → "café"
func FoldTagName(input string) string {
	s := norm.NFKC.String(input)
	s = strings.ToLower(strings.TrimSpace(s))
	return whitespaceRe.ReplaceAllString(s, " ")
}
