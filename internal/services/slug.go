package services

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultSlug = "chat"
	maxSlugLen  = 120
)

// Slugify derives a URL-safe slug from a title: diacritics are folded to their
// base letters, everything is lowercased, and each run of characters outside
// [a-z0-9] becomes a single '-'. An empty result falls back to "chat".
func Slugify(title string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	b.Grow(len(folded))
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}

	s := strings.Trim(b.String(), "-")
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		return defaultSlug
	}
	return s
}

// nextSlug returns base when it is free, otherwise base-N for the smallest
// N >= 1 not present in taken.
func nextSlug(base string, taken []string) string {
	set := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		set[s] = struct{}{}
	}
	if _, ok := set[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		cand := base + "-" + strconv.Itoa(n)
		if _, ok := set[cand]; !ok {
			return cand
		}
	}
}
