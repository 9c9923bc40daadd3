package service

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength   = 30
	jobIDTimeLayout = "20060102_150405"
	emptySlug       = "job"
)

// conceptSlug folds diacritics, keeps only ASCII letters, digits and spaces,
// lowercases, turns spaces into underscores and truncates to 30 characters.
func conceptSlug(concept string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, concept)
	if err != nil {
		folded = concept
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(unicode.ToLower(r))
		case r == ' ':
			b.WriteByte('_')
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	if slug == "" {
		return emptySlug
	}
	return slug
}

// newJobID derives the job key from the concept and creation time.
func newJobID(concept string, now time.Time) string {
	return conceptSlug(concept) + "_" + now.Format(jobIDTimeLayout)
}
