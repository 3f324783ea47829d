package episode

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

var leadingTags = `^(?:[\[(][^\])]*[\])][^\p{L}\p{N}\[(]*)*`

// normalize case folds a title and rewrites characters that vary between
// release names of the same show.
func normalize(s string) string {
	s = folder.String(s)
	s = strings.NewReplacer("'", "", "’", "", "`", "", "&", " and ").Replace(s)
	return s
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// nameMatcher matches a series name as a token bounded prefix of a
// normalized title, optionally preceded by bracketed release tags.
type nameMatcher struct {
	re *regexp.Regexp
}

func newNameMatcher(name string) (*nameMatcher, bool) {
	parts := tokens(normalize(name))
	if len(parts) == 0 {
		return nil, false
	}
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	pattern := leadingTags + strings.Join(quoted, `[^\p{L}\p{N}]+`) + `(?:$|[^\p{L}\p{N}])`
	return &nameMatcher{re: regexp.MustCompile(pattern)}, true
}

// match returns the remainder of the normalized title after the name.
func (m *nameMatcher) match(normalized string) (string, bool) {
	loc := m.re.FindStringIndex(normalized)
	if loc == nil {
		return "", false
	}
	end := loc[1]
	// Keep the separator that bounded the name so remainder patterns can
	// anchor on it.
	if end > loc[0] {
		r, size := utf8.DecodeLastRuneInString(normalized[:end])
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			end -= size
		}
	}
	return normalized[end:], true
}

// NameKey is the case folded, token joined form of a series name used to
// look series up regardless of punctuation.
func NameKey(name string) string {
	return strings.Join(tokens(normalize(name)), " ")
}
