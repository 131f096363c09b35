package utils

import (
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

const (
	slugSourceLimit = 140
	fallbackSlug    = "post"

	// SlugColumnSize is the width of the posts.url column.
	SlugColumnSize = 160
	// MaxSlugSuffix is the largest n SlugCandidate is asked for.
	MaxSlugSuffix = 1000
)

// maxBaseSlugLength leaves room for the ".1000" suffix inside the column.
var maxBaseSlugLength = SlugColumnSize - len(SlugCandidate("", MaxSlugSuffix))

// BaseSlug derives the url slug from the title, or from the first 140
// characters of the body when the post has no title. Transliteration can
// make the slug much longer than its source, so it is cut to fit the column
// together with any suffix.
func BaseSlug(title, body string) string {
	source := title
	if strings.TrimSpace(source) == "" {
		runes := []rune(body)
		if len(runes) > slugSourceLimit {
			runes = runes[:slugSourceLimit]
		}
		source = string(runes)
	}
	s := truncateSlug(slug.Make(source), maxBaseSlugLength)
	if s == "" {
		return fallbackSlug
	}
	return s
}

// SlugCandidate returns the n-th candidate for base: the base itself for
// n <= 1, "base.n" otherwise.
func SlugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "." + strconv.Itoa(n)
}

// truncateSlug cuts s to at most max bytes on a rune boundary and drops a
// dangling separator.
func truncateSlug(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i := range s {
		if i > max {
			break
		}
		cut = i
	}
	return strings.TrimRight(s[:cut], "-_")
}
