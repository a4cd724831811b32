package fetcher

import (
	"net/url"
	"strings"
)

// ResolveImage resolves raw against base. Empty input, or input that cannot be
// resolved, yields fallback.
func ResolveImage(base, raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return fallback
	}
	return b.ResolveReference(ref).String()
}

// PickImage chooses among image variants: the preferred index first, then
// the first variant that resolves, then fallback.
func PickImage(base string, variants []string, preferred int, fallback string) string {
	if preferred >= 0 && preferred < len(variants) {
		if u := ResolveImage(base, variants[preferred], ""); u != "" {
			return u
		}
	}
	for _, v := range variants {
		if u := ResolveImage(base, v, ""); u != "" {
			return u
		}
	}
	return fallback
}
