package search

import (
	"strings"
	"unicode"
)

const maxVariants = 10

type QueryContext struct {
	Original   string
	Normalized string
	Variants   []string
}

// NormalizeQuery lower-cases input and collapses whitespace. Punctuation is
// dropped except for characters that carry meaning inside skill names
// (c++, c#, node.js, front-end).
func NormalizeQuery(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	input = strings.ToLower(input)

	b := strings.Builder{}
	b.Grow(len(input))
	lastWasSpace := false

	for _, r := range input {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastWasSpace = false
		case r == '+' || r == '#' || r == '.' || r == '-':
			if r == '-' && (b.Len() == 0 || lastWasSpace) {
				continue
			}
			b.WriteRune(r)
			lastWasSpace = false
		case unicode.IsSpace(r) || r == ',' || r == '/' || r == ';' || r == '|':
			if b.Len() == 0 || lastWasSpace {
				continue
			}
			b.WriteByte(' ')
			lastWasSpace = true
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.TrimRight(w, ".-")
	}
	return strings.Join(strings.Fields(strings.Join(words, " ")), " ")
}

// ExpandQuery returns the normalized query followed by variants where one
// known term (one or two words) is swapped for a synonym.
func ExpandQuery(normalized string) []string {
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return []string{}
	}

	out := make([]string, 0, maxVariants)
	seen := make(map[string]struct{}, maxVariants)
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || len(out) >= maxVariants {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(normalized)
	for _, syn := range GetSynonyms(normalized) {
		add(syn)
	}

	words := strings.Fields(normalized)
	replace := func(start, n int) {
		phrase := strings.Join(words[start:start+n], " ")
		syns := GetSynonyms(phrase)
		if len(syns) == 0 {
			return
		}
		before := strings.Join(words[:start], " ")
		after := strings.Join(words[start+n:], " ")
		rest := " " + before + " " + after + " "
		for _, syn := range syns {
			// "c# .net developer" must not become ".net .net developer"
			if strings.Contains(rest, " "+syn+" ") {
				continue
			}
			add(strings.Join(strings.Fields(before+" "+syn+" "+after), " "))
		}
	}

	// two-word phrases first so "software engineer" wins over "engineer"
	for i := 0; i+2 <= len(words); i++ {
		replace(i, 2)
	}
	for i := range words {
		replace(i, 1)
	}
	return out
}

func ProcessQuery(input string) QueryContext {
	ctx := QueryContext{Original: input}
	ctx.Normalized = NormalizeQuery(input)
	if ctx.Normalized == "" {
		ctx.Variants = []string{}
		return ctx
	}
	ctx.Variants = ExpandQuery(ctx.Normalized)
	return ctx
}

// Alternatives returns term plus its synonyms, normalized and de-duplicated.
func Alternatives(term string) []string {
	n := NormalizeQuery(term)
	if n == "" {
		return nil
	}
	out := []string{n}
	for _, s := range GetSynonyms(n) {
		if s != n {
			out = append(out, s)
		}
	}
	return out
}

func FallbackFirstWord(normalized string) string {
	words := strings.Fields(strings.TrimSpace(normalized))
	if len(words) == 0 {
		return ""
	}
	return words[0]
}
