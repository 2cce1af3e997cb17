package companyimport

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 96

// Slugify folds parts into a lowercase, dash-separated ASCII identifier.
func Slugify(parts ...string) string {
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, strings.Join(parts, " "))
	if err != nil {
		folded = strings.Join(parts, " ")
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// SlugGenerator hands out unique slugs. It starts empty; Reserve marks slugs
// already taken by earlier runs.
type SlugGenerator struct {
	used map[string]struct{}
}

func NewSlugGenerator() *SlugGenerator {
	return &SlugGenerator{used: make(map[string]struct{})}
}

// SlugBase is the unsuffixed slug Next starts from.
func SlugBase(name, locality string) string {
	if base := Slugify(name, locality); base != "" {
		return base
	}
	return "company"
}

func (g *SlugGenerator) Reserve(slugs ...string) {
	for _, s := range slugs {
		g.used[s] = struct{}{}
	}
}

// Next returns the slug of name and locality, suffixed -2, -3, ... on collision.
func (g *SlugGenerator) Next(name, locality string) string {
	base := SlugBase(name, locality)

	slug := base
	for n := 2; ; n++ {
		if _, taken := g.used[slug]; !taken {
			break
		}
		slug = base + "-" + strconv.Itoa(n)
	}
	g.used[slug] = struct{}{}
	return slug
}
