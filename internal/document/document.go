// Package document turns raw document text into sections, tables and plain
// text. HTML is first rendered to the same markdown-like form the scraper
// produces, so one line scanner serves every input type.
package document

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

type Type string

const (
	TypeAuto     Type = "auto"
	TypeText     Type = "txt"
	TypeMarkdown Type = "markdown"
	TypeHTML     Type = "html"
	TypePDF      Type = "pdf"
	TypeDOCX     Type = "docx"
)

var ErrEmpty = errors.New("document has no text")

// ParseType accepts the names clients send; "" means auto.
func ParseType(s string) (Type, bool) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeAuto, true
	case "md":
		return TypeMarkdown, true
	case "text":
		return TypeText, true
	case TypeAuto, TypeText, TypeMarkdown, TypeHTML, TypePDF, TypeDOCX:
		return t, true
	default:
		return "", false
	}
}

type Section struct {
	Heading   string `json:"heading"`
	Level     int    `json:"level"`
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
}

type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type Document struct {
	Type     Type      `json:"type"`
	Title    string    `json:"title,omitempty"`
	Markdown string    `json:"-"`
	Text     string    `json:"text"`
	Sections []Section `json:"sections"`
	Tables   []Table   `json:"tables"`
	// WordCount counts the words of Text.
	WordCount int      `json:"wordCount"`
	Language  Language `json:"language"`
}

type Options struct {
	Type               Type
	ExtractTables      bool
	PreserveFormatting bool
}

var (
	headingRe   = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*$`)
	tableSepRe  = regexp.MustCompile(`^\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)*\|?$`)
	imageRe     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	emphasisRe  = regexp.MustCompile(`(\*\*|__|\*|~~|` + "`" + `)`)
	listItemRe  = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)])\s+`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
)

// Parse reads raw as opts.Type, detecting the type when it is auto. PDF
// and DOCX input must already be extracted text.
func Parse(raw string, opts Options) (Document, error) {
	if strings.TrimSpace(raw) == "" {
		return Document{}, ErrEmpty
	}
	typ := opts.Type
	if typ == "" || typ == TypeAuto {
		typ = Detect(raw)
	}

	doc := Document{Type: typ, Sections: []Section{}, Tables: []Table{}}
	md := raw
	switch typ {
	case TypeHTML:
		var err error
		md, doc.Title, err = htmlToMarkdown(raw)
		if err != nil {
			return Document{}, err
		}
	case TypeText, TypePDF, TypeDOCX:
		md = markPlainHeadings(raw)
	}
	md = strings.TrimSpace(blankRunsRe.ReplaceAllString(strings.ReplaceAll(md, "\r\n", "\n"), "\n\n"))
	if md == "" {
		return Document{}, ErrEmpty
	}

	doc.Markdown = md
	doc.Sections, doc.Tables = scan(md)
	if !opts.ExtractTables {
		doc.Tables = []Table{}
	}
	if doc.Title == "" && len(doc.Sections) > 0 && doc.Sections[0].Level == 1 {
		doc.Title = doc.Sections[0].Heading
	}
	if opts.PreserveFormatting {
		doc.Text = md
	} else {
		doc.Text = PlainText(md)
	}
	doc.WordCount = len(strings.Fields(doc.Text))
	doc.Language = DetectLanguage(doc.Text)
	return doc, nil
}

// Detect guesses the type of raw from its first non-blank lines.
func Detect(raw string) Type {
	head := strings.ToLower(strings.TrimSpace(raw))
	if len(head) > 512 {
		head = head[:512]
	}
	for _, tag := range []string{"<!doctype html", "<html", "<body", "<div", "<p>", "<table", "<h1", "<ul"} {
		if strings.Contains(head, tag) {
			return TypeHTML
		}
	}
	marks := 0
	for _, line := range strings.Split(raw, "\n") {
		t := strings.TrimSpace(line)
		switch {
		case headingRe.MatchString(t), strings.HasPrefix(t, "```"), strings.HasPrefix(t, "|"):
			marks += 2
		case linkRe.MatchString(t):
			marks++
		}
		if marks >= 2 {
			return TypeMarkdown
		}
	}
	return TypeText
}

// scan splits md into heading sections and pipe tables. Lines inside code
// fences are never headings or table rows.
func scan(md string) ([]Section, []Table) {
	sections := []Section{}
	tables := []Table{}

	var (
		cur     *Section
		body    []string
		inFence bool
		rows    [][]string
		sepSeen bool
	)
	flushSection := func() {
		if cur == nil && strings.TrimSpace(strings.Join(body, "\n")) == "" {
			return
		}
		s := Section{}
		if cur != nil {
			s = *cur
		}
		s.Content = strings.TrimSpace(strings.Join(body, "\n"))
		s.WordCount = len(strings.Fields(PlainText(s.Content)))
		sections = append(sections, s)
		cur, body = nil, nil
	}
	flushTable := func() {
		if len(rows) == 0 {
			return
		}
		t := Table{Headers: rows[0], Rows: [][]string{}}
		if len(rows) > 1 {
			t.Rows = rows[1:]
		}
		if !sepSeen && len(rows) == 1 {
			t = Table{Headers: []string{}, Rows: rows}
		}
		tables = append(tables, t)
		rows, sepSeen = nil, false
	}

	for _, line := range strings.Split(md, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "```") {
			inFence = !inFence
			body = append(body, line)
			continue
		}
		if inFence {
			body = append(body, line)
			continue
		}

		if strings.HasPrefix(t, "|") {
			if tableSepRe.MatchString(t) {
				sepSeen = true
			} else {
				rows = append(rows, splitRow(t))
			}
			body = append(body, line)
			continue
		}
		flushTable()

		if m := headingRe.FindStringSubmatch(t); m != nil {
			flushSection()
			cur = &Section{Heading: PlainText(m[2]), Level: len(m[1])}
			continue
		}
		body = append(body, line)
	}
	flushTable()
	flushSection()
	return sections, tables
}

func splitRow(line string) []string {
	line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = PlainText(strings.TrimSpace(c))
	}
	return cells
}

// markPlainHeadings turns the headings of plain text documents, short
// lines in capitals or ending in a colon, into markdown headings.
func markPlainHeadings(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if isPlainHeading(t) {
			lines[i] = "## " + strings.TrimSuffix(t, ":")
		}
	}
	return strings.Join(lines, "\n")
}

func isPlainHeading(t string) bool {
	if t == "" || len(t) > 40 || len(strings.Fields(t)) > 5 || strings.ContainsAny(t, ",.;|") {
		return false
	}
	if strings.HasSuffix(t, ":") && !strings.Contains(strings.TrimSuffix(t, ":"), ":") {
		return unicode.IsUpper([]rune(t)[0])
	}
	letters := 0
	for _, r := range t {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 4
}

// PlainText strips markdown markup from md, keeping list items on their
// own lines and table cells separated by tabs.
func PlainText(md string) string {
	var out []string
	inFence := false
	for _, line := range strings.Split(md, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, strings.TrimRight(line, " \t"))
			continue
		}
		if tableSepRe.MatchString(t) {
			continue
		}
		if strings.HasPrefix(t, "|") {
			t = strings.Join(splitRowRaw(t), "\t")
		}
		if m := headingRe.FindStringSubmatch(t); m != nil {
			t = m[2]
		}
		t = strings.TrimPrefix(t, "> ")
		t = listItemRe.ReplaceAllString(t, "- ")
		t = imageRe.ReplaceAllString(t, "$1")
		t = linkRe.ReplaceAllString(t, "$1")
		t = emphasisRe.ReplaceAllString(t, "")
		out = append(out, t)
	}
	return strings.TrimSpace(blankRunsRe.ReplaceAllString(strings.Join(out, "\n"), "\n\n"))
}

func splitRowRaw(line string) []string {
	line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

// RenderTables writes tables back as markdown, or as tab separated text.
func RenderTables(tables []Table, markdown bool) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		if markdown {
			if len(t.Headers) > 0 {
				b.WriteString("| " + strings.Join(t.Headers, " | ") + " |\n")
				b.WriteString("|" + strings.Repeat(" --- |", len(t.Headers)) + "\n")
			}
			for _, r := range t.Rows {
				b.WriteString("| " + strings.Join(r, " | ") + " |\n")
			}
			continue
		}
		if len(t.Headers) > 0 {
			b.WriteString(strings.Join(t.Headers, "\t") + "\n")
		}
		for _, r := range t.Rows {
			b.WriteString(strings.Join(r, "\t") + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
