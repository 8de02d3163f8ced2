package boolean

import (
	"strings"

	"apply-codes/internal/search"
)

const (
	maxTitleVariants = 4
	maxSkillGroups   = 6
)

// profileTerms qualify a query that would otherwise be a single term.
var profileTerms = []string{"resume", "cv", "profile"}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "for": true, "with": true,
	"to": true, "of": true, "in": true, "at": true, "on": true, "we": true, "are": true,
	"is": true, "who": true, "our": true, "need": true, "looking": true, "hiring": true,
	"someone": true, "team": true, "role": true, "job": true, "position": true,
}

// Fallback builds a query from parsed requirements without a model: title
// variants OR-ed together, each skill OR-ed with its synonyms, groups AND-ed,
// and excluded companies under NOT. The result always contains AND or OR
// when req has at least one term.
func Fallback(req Requirements, items []ContextItem) string {
	exclude := append([]string(nil), req.Exclude...)
	for _, it := range items {
		if it.Kind() == TypeExcludeCompanies {
			exclude = appendUnique(exclude, it.List()...)
		}
	}

	var groups []string
	if t := strings.TrimSpace(req.Title); t != "" {
		variants := search.ProcessQuery(t).Variants
		if len(variants) > maxTitleVariants {
			variants = variants[:maxTitleVariants]
		}
		groups = appendGroup(groups, group(variants))
	}

	skills := req.Skills
	if len(skills) > maxSkillGroups {
		skills = skills[:maxSkillGroups]
	}
	for _, s := range skills {
		if alts := search.Alternatives(s); len(alts) > 0 {
			groups = appendGroup(groups, group(alts))
		}
	}

	if len(groups) == 0 {
		groups = keywordGroups(req)
	}
	if len(groups) == 0 {
		return ""
	}

	if loc := strings.TrimSpace(req.Location); loc != "" && !strings.EqualFold(loc, "remote") {
		groups = appendGroup(groups, term(loc))
	} else if loc != "" {
		groups = appendGroup(groups, group([]string{"remote", "work from home"}))
	}

	q := strings.Join(groups, " AND ")
	if !Valid(q) {
		q += " AND " + group(profileTerms)
	}
	if len(exclude) > 0 {
		terms := make([]string, 0, len(exclude))
		for _, e := range exclude {
			terms = append(terms, term(e))
		}
		q += " NOT " + group(terms)
	}
	return q
}

// keywordGroups is the last resort when neither a title nor a skill was
// recognised: the first content words of the experience or location text.
func keywordGroups(req Requirements) []string {
	var out []string
	for _, w := range strings.Fields(search.NormalizeQuery(req.Experience + " " + req.Location)) {
		if stopwords[w] || len(out) == 3 {
			continue
		}
		out = append(out, w)
	}
	return appendGroup(nil, group(out))
}

// FromText parses text and builds the fallback query in one step.
func FromText(text string, items []ContextItem) (string, Requirements) {
	req := ParseRequirements(text, items)
	q := Fallback(req, items)
	if q == "" {
		req.Title = firstWords(text, 3)
		q = Fallback(req, items)
	}
	return q, req
}

func firstWords(text string, n int) string {
	var out []string
	for _, w := range strings.Fields(search.NormalizeQuery(text)) {
		if stopwords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == n {
			break
		}
	}
	return strings.Join(out, " ")
}

func appendGroup(groups []string, g string) []string {
	if g == "" {
		return groups
	}
	return append(groups, g)
}

func group(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = term(t); t != "" {
			quoted = append(quoted, t)
		}
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

// term quotes multi-word phrases and strips characters that break the syntax.
func term(s string) string {
	s = strings.Join(strings.Fields(strings.NewReplacer(`"`, "", "(", "", ")", "").Replace(s)), " ")
	if s == "" {
		return ""
	}
	if strings.ContainsRune(s, ' ') {
		return `"` + s + `"`
	}
	return s
}
