// Package schema declares the validation rules of each section of an election
// draft.
//
// Every validator is a pure function of its input: it returns the normalized
// value and the list of errors found, without any hidden state. The candidate
// validator depends on the categories of the previous section, which is why it
// is built by a factory that closes over that set; a new validator is created
// every time the categories change.
//
// Documentation Last Review: 15.10.2026
//
package schema

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	electionNameRe = regexp.MustCompile(`^[\p{L}\p{N} \-_.,:;'"&()/!?#@+]+$`)
	categoryRe     = regexp.MustCompile(`^[\p{L}\p{N} \-_.&()/']+$`)
	personRe       = regexp.MustCompile(`^[\p{L} \-.']+$`)
	externalIDRe   = regexp.MustCompile(`^[A-Za-z0-9/\-_.]+$`)
	levelRe        = regexp.MustCompile(`^[\p{L}\p{N} \-/]+$`)
	labelRe        = regexp.MustCompile(`^[\p{L}\p{N} \-_.,&()/#']+$`)
)

// bounds is an inclusive range of rune counts.
type bounds struct {
	min, max int
}

func (b bounds) check(value string) (string, bool) {
	n := utf8.RuneCountInString(value)
	if n < b.min {
		return fmt.Sprintf("must be at least %d characters", b.min), false
	}

	if n > b.max {
		return fmt.Sprintf("must be at most %d characters", b.max), false
	}

	return "", true
}

// text checks the length and the characters of a value. The message is empty
// when the value is valid.
func text(value string, b bounds, allowed *regexp.Regexp) string {
	msg, ok := b.check(value)
	if !ok {
		return msg
	}

	if allowed != nil && !allowed.MatchString(value) {
		return "contains characters that are not allowed"
	}

	return ""
}

// printable returns true if every rune is printable or a common whitespace.
func printable(value string) bool {
	for _, r := range value {
		if r == '\n' || r == '\r' || r == '\t' {
			continue
		}

		if !unicode.IsPrint(r) {
			return false
		}
	}

	return true
}

// fold is the key used for the case-insensitive comparisons.
func fold(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// duplicate is a group of entries sharing the same folded key.
type duplicate struct {
	value   string
	indices []int
}

func (d duplicate) entries() string {
	parts := make([]string, len(d.indices))
	for i, idx := range d.indices {
		parts[i] = fmt.Sprint(idx)
	}

	return strings.Join(parts, ", ")
}

// duplicates returns the groups of entries that share the same key, in the
// order of their first occurrence. Empty keys are ignored as they are
// reported by the field checks.
func duplicates(n int, key func(int) string) []duplicate {
	groups := make(map[string]*duplicate)
	order := make([]string, 0)

	for i := 0; i < n; i++ {
		raw := key(i)
		k := fold(raw)
		if k == "" {
			continue
		}

		group, found := groups[k]
		if !found {
			group = &duplicate{value: strings.TrimSpace(raw)}
			groups[k] = group
			order = append(order, k)
		}

		group.indices = append(group.indices, i)
	}

	res := make([]duplicate, 0)
	for _, k := range order {
		if len(groups[k].indices) > 1 {
			res = append(res, *groups[k])
		}
	}

	return res
}
