package fetcher

import "strings"

// categoryFixes maps known upstream misspellings to the canonical label.
var categoryFixes = map[string]string{
	"Obrazovno":            "Obrazovni",
	"Regionalni (Kolažni)": "Regionalni",
}

// CanonicalCategory returns the canonical form of a single category label.
func CanonicalCategory(label string) string {
	label = strings.TrimSpace(label)
	if fixed, ok := categoryFixes[label]; ok {
		return fixed
	}
	return label
}

// NormalizeCategories splits a slash-delimited category string into trimmed,
// canonical labels. Empty components and repeated labels are dropped, so the
// result is stable under repeated normalisation.
func NormalizeCategories(s string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, "/") {
		label := CanonicalCategory(part)
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}
