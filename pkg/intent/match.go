package intent

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// containsWord reports whether text contains phrase bounded by non-word
// characters. Every occurrence is checked, so "codes and code" matches
// "code" even though the first hit is not a whole word. Both arguments are
// expected to be lowercase.
func containsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	from := 0
	for from <= len(text)-len(phrase) {
		idx := strings.Index(text[from:], phrase)
		if idx == -1 {
			return false
		}
		start := from + idx
		end := start + len(phrase)
		if boundaryBefore(text, start) && boundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

// containsStem reports whether some word in text starts with stem, so
// "compil" matches "compiling" but "rust" does not match "trust".
func containsStem(text, stem string) bool {
	if stem == "" {
		return false
	}
	from := 0
	for from <= len(text)-len(stem) {
		idx := strings.Index(text[from:], stem)
		if idx == -1 {
			return false
		}
		start := from + idx
		if boundaryBefore(text, start) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// normalizeSpace trims s and collapses internal whitespace runs.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// fillerSet holds lowercase filler phrases ordered longest first.
type fillerSet []string

func newFillerSet(fillers []string) fillerSet {
	seen := make(map[string]bool, len(fillers))
	out := make(fillerSet, 0, len(fillers))
	for _, f := range fillers {
		f = normalizeSpace(strings.ToLower(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) == len(out[j]) {
			return out[i] < out[j]
		}
		return len(out[i]) > len(out[j])
	})
	return out
}

// strip removes leading fillers from an already space-normalized query,
// repeatedly, so "hey um can you" is fully consumed. Case of the remaining
// text is preserved.
func (fs fillerSet) strip(query string) string {
	for {
		stripped := false
		for _, f := range fs {
			if len(query) < len(f) || !strings.EqualFold(query[:len(f)], f) || !boundaryAfter(query, len(f)) {
				continue
			}
			query = strings.TrimLeft(query[len(f):], " ,;:!.")
			stripped = true
			break
		}
		if !stripped || query == "" {
			return query
		}
	}
}
