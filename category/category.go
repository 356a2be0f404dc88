// Package category classifies calendar events and maps categories to
// Google Calendar color identifiers.
package category

import (
	"strings"

	"golang.org/x/text/cases"
)

// Category is one of the five fixed labels.
type Category string

const (
	Client   Category = "Client"
	Team     Category = "Team"
	OneOnOne Category = "One-on-One"
	Personal Category = "Personal"
	Other    Category = "Other"
)

// DefaultColorID is used for Other and for anything that is not a known category.
const DefaultColorID = "11"

// table is in color-id order. Each category has exactly one color.
var table = []struct {
	category Category
	colorID  string
}{
	{Client, "1"},
	{Team, "2"},
	{OneOnOne, "5"},
	{Personal, "6"},
	{Other, DefaultColorID},
}

// All returns the categories in table order.
func All() []Category {
	out := make([]Category, 0, len(table))
	for _, e := range table {
		out = append(out, e.category)
	}
	return out
}

// ColorID maps a label to its color identifier. The match is case-insensitive
// and the function is total: unknown labels get DefaultColorID.
func ColorID(label string) string {
	if c, ok := lookup(label); ok {
		for _, e := range table {
			if e.category == c {
				return e.colorID
			}
		}
	}
	return DefaultColorID
}

// Normalize turns free text returned by the model into a Category. Surrounding
// whitespace, quotes, markdown emphasis, a trailing period and a leading
// "Category:" are stripped. Anything still unrecognized becomes Other.
func Normalize(raw string) Category {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > len("category:") && strings.EqualFold(s[:len("category:")], "category:") {
		s = s[len("category:"):]
	}
	s = strings.Trim(strings.TrimSpace(s), "\"'`*")
	s = strings.TrimSuffix(s, ".")
	if c, ok := lookup(s); ok {
		return c
	}
	return Other
}

// Valid reports whether label names one of the five categories.
func Valid(label string) bool {
	_, ok := lookup(label)
	return ok
}

func lookup(label string) (Category, bool) {
	fold := cases.Fold()
	key := fold.String(strings.TrimSpace(label))
	for _, e := range table {
		if fold.String(string(e.category)) == key {
			return e.category, true
		}
	}
	return "", false
}
