package prompts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var catalogYAML []byte

var ErrUnknownPrompt = errors.New("unknown prompt")

const (
	OutputText = "text"
	OutputJSON = "json"
)

type entry struct {
	System   string `yaml:"system"`
	Output   string `yaml:"output"`
	Template string `yaml:"template"`
}

type Prompt struct {
	Name   string
	System string
	Output string
	tmpl   *template.Template
}

// Rendered is a prompt ready to send to the model.
type Rendered struct {
	Name   string
	System string
	Text   string
	JSON   bool
}

type Catalog struct {
	prompts map[string]*Prompt
	budget  *Budget
}

var funcs = template.FuncMap{
	"join": func(v any, sep string) string {
		switch val := v.(type) {
		case []string:
			return strings.Join(val, sep)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, sep)
		default:
			return fmt.Sprint(v)
		}
	},
	"json": func(v any) string {
		if s, ok := v.(string); ok {
			return s
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	},
}

// Load parses the embedded catalogue.
func Load(budget *Budget) (*Catalog, error) {
	return Parse(catalogYAML, budget)
}

func Parse(raw []byte, budget *Budget) (*Catalog, error) {
	var entries map[string]entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse prompt catalogue: %w", err)
	}

	c := &Catalog{prompts: make(map[string]*Prompt, len(entries)), budget: budget}
	for name, e := range entries {
		out := strings.ToLower(strings.TrimSpace(e.Output))
		if out == "" {
			out = OutputText
		}
		if out != OutputText && out != OutputJSON {
			return nil, fmt.Errorf("prompt %s: unknown output %q", name, e.Output)
		}
		tmpl, err := template.New(name).Funcs(funcs).Parse(e.Template)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		c.prompts[name] = &Prompt{Name: name, System: strings.TrimSpace(e.System), Output: out, tmpl: tmpl}
	}
	return c, nil
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.prompts))
	for n := range c.prompts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Get(name string) (*Prompt, bool) {
	p, ok := c.prompts[name]
	return p, ok
}

// Render executes the named template over data and trims the result to the token budget.
func (c *Catalog) Render(name string, data map[string]any) (Rendered, error) {
	p, ok := c.prompts[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}

	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", name, err)
	}

	text := collapseBlankLines(b.String())
	if c.budget != nil {
		text = c.budget.Trim(text, 0)
	}
	return Rendered{Name: name, System: p.System, Text: text, JSON: p.Output == OutputJSON}, nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
