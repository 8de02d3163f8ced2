// Package boolean builds LinkedIn-style Boolean search strings from free-text
// job requirements and the context items a recruiter attaches to them.
package boolean

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	TypeLocation         = "location"
	TypeFirecrawl        = "firecrawl"
	TypeDocument         = "document"
	TypePerplexity       = "perplexity"
	TypeSkills           = "skills"
	TypeExperience       = "experience"
	TypeCompanyType      = "companyType"
	TypeExcludeCompanies = "excludeCompanies"
	TypeNote             = "note"
)

// DefaultContextBudget is the character budget for the merged context block.
const DefaultContextBudget = 6000

// ContextItem is one piece of extra context attached to a requirement.
type ContextItem struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content any    `json:"content"`
	Source  string `json:"source,omitempty"`
}

var typeAliases = map[string]string{
	"location":          TypeLocation,
	"firecrawl":         TypeFirecrawl,
	"url":               TypeFirecrawl,
	"web":               TypeFirecrawl,
	"document":          TypeDocument,
	"file":              TypeDocument,
	"perplexity":        TypePerplexity,
	"research":          TypePerplexity,
	"skills":            TypeSkills,
	"experience":        TypeExperience,
	"companytype":       TypeCompanyType,
	"company_type":      TypeCompanyType,
	"excludecompanies":  TypeExcludeCompanies,
	"exclude_companies": TypeExcludeCompanies,
}

// Kind returns the canonical item type; unknown types are notes.
func (i ContextItem) Kind() string {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(i.Type))]; ok {
		return t
	}
	return TypeNote
}

// Text flattens Content to a single string.
func (i ContextItem) Text() string {
	switch v := i.Content.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.Join(trimAll(v), ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, ContextItem{Content: item}.Text())
		}
		return strings.Join(trimAll(parts), ", ")
	case map[string]any:
		for _, key := range []string{"text", "content", "markdown", "value"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// List splits the item text on commas, semicolons and newlines.
func (i ContextItem) List() []string {
	return splitList(i.Text())
}

var contextOrder = []struct {
	kind  string
	label string
}{
	{TypeLocation, "Location"},
	{TypeSkills, "Required skills"},
	{TypeExperience, "Experience"},
	{TypeCompanyType, "Company type"},
	{TypeExcludeCompanies, "Exclude companies"},
	{TypeFirecrawl, "Web page content"},
	{TypeDocument, "Document content"},
	{TypePerplexity, "Research"},
	{TypeNote, "Notes"},
}

// MergeContext renders items as labelled blocks in a fixed order. Identical
// contents are dropped and long blocks are cut in proportion to their size so
// the result stays within budget characters. It also returns the item types
// that contributed, in render order.
func MergeContext(items []ContextItem, budget int) (string, []string) {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	type entry struct {
		title string
		text  string
	}
	groups := make(map[string][]entry, len(contextOrder))
	seen := make(map[string]struct{}, len(items))
	total := 0
	for _, it := range items {
		text := it.Text()
		if text == "" {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(text), " "))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kind := it.Kind()
		groups[kind] = append(groups[kind], entry{title: strings.TrimSpace(it.Title), text: text})
		total += utf8.RuneCountInString(text)
	}
	if total == 0 {
		return "", []string{}
	}

	var b strings.Builder
	used := make([]string, 0, len(groups))
	for _, g := range contextOrder {
		entries := groups[g.kind]
		if len(entries) == 0 {
			continue
		}
		used = append(used, g.kind)
		b.WriteString(g.label)
		b.WriteString(":\n")
		for _, e := range entries {
			text := e.text
			if total > budget {
				limit := utf8.RuneCountInString(text) * budget / total
				text = truncate(text, limit)
			}
			if text == "" {
				continue
			}
			b.WriteString("- ")
			if e.title != "" {
				b.WriteString(e.title)
				b.WriteString(": ")
			}
			b.WriteString(text)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), used
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit])) + "..."
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '|' || r == '•'
	})
	return trimAll(parts)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "-*"))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
