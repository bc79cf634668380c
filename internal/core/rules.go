package core

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Uncategorized is the reserved fallback label. It needs no keywords and is
// always implicitly the last rule of every CategorySet.
const Uncategorized = "Uncategorized"

var (
	ErrEmptyLabel     = errors.New("empty category label")
	ErrDuplicateLabel = errors.New("duplicate category label")
	ErrFallbackRule   = errors.New("fallback category cannot declare keywords")
)

// CategoryRule associates a label with keyword substrings.
type CategoryRule struct {
	Label    string   `json:"label" yaml:"label"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// CategorySet is an immutable, ordered sequence of rules. The first rule
// with a matching keyword wins, so specific categories must precede broad ones.
type CategorySet struct {
	rules []CategoryRule // keywords stored upper-cased
}

// NewCategorySet validates and copies rules. Keywords are folded to upper
// case and blank keywords are dropped. A rule labelled Uncategorized is
// accepted only without keywords and is otherwise ignored.
func NewCategorySet(rules ...CategoryRule) (CategorySet, error) {
	seen := make(map[string]struct{}, len(rules))
	out := make([]CategoryRule, 0, len(rules))
	for i, r := range rules {
		label := strings.TrimSpace(r.Label)
		if label == "" {
			return CategorySet{}, fmt.Errorf("rule %d: %w", i, ErrEmptyLabel)
		}
		if _, dup := seen[label]; dup {
			return CategorySet{}, fmt.Errorf("rule %d (%s): %w", i, label, ErrDuplicateLabel)
		}
		seen[label] = struct{}{}

		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			keywords = append(keywords, upper(k))
		}
		if label == Uncategorized {
			if len(keywords) > 0 {
				return CategorySet{}, fmt.Errorf("rule %d: %w", i, ErrFallbackRule)
			}
			continue
		}
		out = append(out, CategoryRule{Label: label, Keywords: keywords})
	}
	return CategorySet{rules: out}, nil
}

// MustCategorySet is NewCategorySet for static rule tables.
func MustCategorySet(rules ...CategoryRule) CategorySet {
	set, err := NewCategorySet(rules...)
	if err != nil {
		panic(err)
	}
	return set
}

// Rules returns a copy of the configured rules in order, without the fallback.
func (s CategorySet) Rules() []CategoryRule {
	out := make([]CategoryRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = CategoryRule{Label: r.Label, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// Labels returns every label including the trailing fallback.
func (s CategorySet) Labels() []string {
	out := make([]string, 0, len(s.rules)+1)
	for _, r := range s.rules {
		out = append(out, r.Label)
	}
	return append(out, Uncategorized)
}

// Len returns the number of keyword rules.
func (s CategorySet) Len() int {
	return len(s.rules)
}

// Categorize returns the label of the first rule with a keyword occurring in
// description, compared case-insensitively by plain substring search.
func Categorize(description string, rules CategorySet) string {
	desc := upper(description)
	for _, r := range rules.rules {
		for _, k := range r.Keywords {
			if strings.Contains(desc, k) {
				return r.Label
			}
		}
	}
	return Uncategorized
}

// upper folds s to upper case. A Caser is stateful, so one is built per call.
func upper(s string) string {
	return cases.Upper(language.Und).String(s)
}
