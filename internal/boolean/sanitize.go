package boolean

import (
	"regexp"
	"strings"

	"apply-codes/internal/pkg/jsonclean"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

var (
	labelRe = regexp.MustCompile(`(?i)^\s*(?:here(?:'s| is)\s+(?:the|a|your)\s+)?(?:linkedin\s+)?(?:boolean\s+)?(?:search\s+)?(?:string|query)\s*:\s*`)

	quoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "«", `"`, "»", `"`,
		"‘", "'", "’", "'",
		"&&", " AND ", "||", " OR ",
	)
)

// Sanitize turns raw model output into a single well-formed search string.
func Sanitize(raw string) string {
	s := jsonclean.StripFences(raw)
	s = quoteReplacer.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	s = labelRe.ReplaceAllString(s, "")
	s = unwrap(s)
	s = strings.TrimRight(s, ".;")

	toks := tokenize(s)
	toks = balance(toks)
	toks = tidy(toks)
	return render(toks)
}

// Valid reports whether q has at least one search term joined by AND or OR.
func Valid(q string) bool {
	hasOp, hasTerm := false, false
	for _, t := range tokenize(q) {
		switch t.kind {
		case tokOp:
			if t.text == "AND" || t.text == "OR" {
				hasOp = true
			}
		case tokWord, tokPhrase:
			hasTerm = true
		}
	}
	return hasOp && hasTerm
}

// unwrap drops quotes or backticks wrapped around the whole string when the
// inside is an expression rather than a single phrase.
func unwrap(s string) string {
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first != '"' && first != '\'' && first != '`') || first != last {
			return s
		}
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if first == '"' && (strings.Contains(inner, `"`) || !hasOperator(inner)) {
			return s
		}
		s = inner
	}
	return s
}

func hasOperator(s string) bool {
	for _, f := range strings.Fields(s) {
		switch strings.ToUpper(strings.Trim(f, "()")) {
		case "AND", "OR", "NOT":
			return true
		}
	}
	return false
}

func tokenize(s string) []token {
	var toks []token
	r := []rune(s)
	for i := 0; i < len(r); {
		c := r[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case c == '"':
			j := i + 1
			for j < len(r) && r[j] != '"' {
				j++
			}
			inner := strings.Join(strings.Fields(string(r[i+1:min(j, len(r))])), " ")
			if inner != "" {
				toks = append(toks, token{kind: tokPhrase, text: `"` + inner + `"`})
			}
			i = j + 1
		default:
			j := i
			for j < len(r) && !strings.ContainsRune(" \t\n()\"", r[j]) {
				j++
			}
			word := string(r[i:j])
			switch up := strings.ToUpper(word); up {
			case "AND", "OR", "NOT":
				toks = append(toks, token{kind: tokOp, text: up})
			default:
				toks = append(toks, token{kind: tokWord, text: word})
			}
			i = j
		}
	}
	return toks
}

// balance drops unmatched closing parens and closes any left open.
func balance(toks []token) []token {
	out := make([]token, 0, len(toks))
	depth := 0
	for _, t := range toks {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			if depth == 0 {
				continue
			}
			depth--
		}
		out = append(out, t)
	}
	for ; depth > 0; depth-- {
		out = append(out, token{kind: tokRParen, text: ")"})
	}
	return out
}

// tidy removes operators with a missing operand and empty groups until
// nothing changes.
func tidy(toks []token) []token {
	for changed := true; changed; {
		changed = false
		out := make([]token, 0, len(toks))
		for _, t := range toks {
			prev := token{kind: -1}
			if len(out) > 0 {
				prev = out[len(out)-1]
			}
			switch t.kind {
			case tokOp:
				if t.text != "NOT" && (prev.kind == -1 || prev.kind == tokLParen || prev.kind == tokOp) {
					changed = true
					continue
				}
				if t.text == "NOT" && prev.kind == tokOp && prev.text == "NOT" {
					changed = true
					continue
				}
			case tokRParen:
				switch prev.kind {
				case tokLParen:
					out = out[:len(out)-1]
					changed = true
					continue
				case tokOp:
					out = out[:len(out)-1]
					changed = true
				}
			}
			out = append(out, t)
		}
		for len(out) > 0 && out[len(out)-1].kind == tokOp {
			out = out[:len(out)-1]
			changed = true
		}
		toks = out
	}
	return toks
}

func render(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && t.kind != tokRParen && toks[i-1].kind != tokLParen {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}
