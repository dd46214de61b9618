package domain

import "strings"

// NormalizeText trims the text and collapses internal whitespace runs to a
// single space, so retries and near-identical resubmissions hash the same.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeBrand trims and case-folds a brand tag for consistent bucket keys.
func NormalizeBrand(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
