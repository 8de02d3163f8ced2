package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resumeMarkdown = `# Jane Doe

Senior Go engineer in **Berlin**. See [GitHub](https://github.com/jane).

## Skills

- Go
- Kubernetes

| Company | Years |
| --- | --- |
| Acme | 3 |
| Globex | 2 |
`

func TestParse_Markdown(t *testing.T) {
	doc, err := Parse(resumeMarkdown, Options{ExtractTables: true})
	require.NoError(t, err)

	assert.Equal(t, TypeMarkdown, doc.Type)
	assert.Equal(t, "Jane Doe", doc.Title)
	require.Len(t, doc.Sections, 2)
	assert.Equal(t, "Jane Doe", doc.Sections[0].Heading)
	assert.Equal(t, 1, doc.Sections[0].Level)
	assert.Equal(t, 7, doc.Sections[0].WordCount)
	assert.Equal(t, "Skills", doc.Sections[1].Heading)
	assert.Equal(t, 2, doc.Sections[1].Level)

	assert.Contains(t, doc.Text, "Berlin. See GitHub.")
	assert.Contains(t, doc.Text, "- Kubernetes")
	assert.Contains(t, doc.Text, "Acme\t3")
	assert.NotContains(t, doc.Text, "**")
	assert.NotContains(t, doc.Text, "https://")
	assert.NotContains(t, doc.Text, "---")

	require.Len(t, doc.Tables, 1)
	assert.Equal(t, []string{"Company", "Years"}, doc.Tables[0].Headers)
	assert.Equal(t, [][]string{{"Acme", "3"}, {"Globex", "2"}}, doc.Tables[0].Rows)
}

func TestParse_Options(t *testing.T) {
	doc, err := Parse(resumeMarkdown, Options{PreserveFormatting: true})
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "**Berlin**")
	assert.NotNil(t, doc.Tables)
	assert.Empty(t, doc.Tables)
}

func TestParse_PlainTextHeadings(t *testing.T) {
	raw := "JANE DOE\nSummary:\nBackend engineer with eight years of experience building payment systems for the banks and the startups.\nEXPERIENCE\nAcme Corp, 2019 to 2024\n"

	doc, err := Parse(raw, Options{})
	require.NoError(t, err)
	assert.Equal(t, TypeText, doc.Type)

	var headings []string
	for _, s := range doc.Sections {
		headings = append(headings, s.Heading)
	}
	assert.Equal(t, []string{"JANE DOE", "Summary", "EXPERIENCE"}, headings)
	assert.Equal(t, "en", doc.Language.Code)
	assert.Contains(t, doc.Text, "Acme Corp, 2019 to 2024")
}

func TestParse_HTML(t *testing.T) {
	raw := `<html><head><title>Platform Engineer</title><script>var x = 1;</script></head>
<body><nav>Home</nav><h1>Platform Engineer</h1><p>Run the <b>Kubernetes</b> fleet.</p>
<ul><li>Go</li><li>Terraform</li></ul>
<table><tr><th>Level</th><th>Salary</th></tr><tr><td>Senior</td><td>120k</td></tr></table></body></html>`

	doc, err := Parse(raw, Options{ExtractTables: true})
	require.NoError(t, err)

	assert.Equal(t, TypeHTML, doc.Type)
	assert.Equal(t, "Platform Engineer", doc.Title)
	require.Len(t, doc.Sections, 1)
	assert.Contains(t, doc.Text, "Run the Kubernetes fleet.")
	assert.Contains(t, doc.Text, "- Terraform")
	assert.NotContains(t, doc.Text, "var x")
	assert.NotContains(t, doc.Text, "Home")
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, []string{"Level", "Salary"}, doc.Tables[0].Headers)
	assert.Equal(t, [][]string{{"Senior", "120k"}}, doc.Tables[0].Rows)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("  \n ", Options{})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("<html><body><script>x()</script></body></html>", Options{})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("PDF")
	assert.True(t, ok)
	assert.Equal(t, TypePDF, typ)

	typ, ok = ParseType("md")
	assert.True(t, ok)
	assert.Equal(t, TypeMarkdown, typ)

	typ, ok = ParseType("")
	assert.True(t, ok)
	assert.Equal(t, TypeAuto, typ)

	_, ok = ParseType("rtf")
	assert.False(t, ok)
}

func TestDetectLanguage(t *testing.T) {
	fr := DetectLanguage("Nous recherchons un développeur pour notre équipe à Paris avec une expérience des systèmes")
	assert.Equal(t, "fr", fr.Code)
	assert.InDelta(t, 1.0, fr.Confidence, 0.001)

	assert.Equal(t, LanguageUnknown, DetectLanguage("Go Kubernetes Terraform").Code)
}

func TestRenderTables(t *testing.T) {
	tables := []Table{{Headers: []string{"Level", "Salary"}, Rows: [][]string{{"Senior", "120k"}}}}

	assert.Equal(t, "| Level | Salary |\n| --- | --- |\n| Senior | 120k |", RenderTables(tables, true))
	assert.Equal(t, "Level\tSalary\nSenior\t120k", RenderTables(tables, false))
}
