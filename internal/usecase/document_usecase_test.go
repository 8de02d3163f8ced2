package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"apply-codes/internal/document"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/infrastructure/scraper"
	"apply-codes/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const offerLetter = `# Offer

We are pleased to offer you the role of Staff Engineer.

## Compensation

| Item | Amount |
| --- | --- |
| Base | 180000 |
| Bonus | 15% |
`

func newDocuments(t *testing.T, pages PageFetcher, gen llm.Generator, s store.Store) *Documents {
	t.Helper()
	uc := NewDocumentUsecase(pages, loadCatalog(t), gen, NewRecorder(s, nil), nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	uc.now = func() time.Time { return now }
	return uc
}

func TestParseDocument_Text(t *testing.T) {
	s := store.NewMemory()
	uc := newDocuments(t, nil, nil, s)

	res, err := uc.ParseDocument(context.Background(), "u1", ParseDocumentInput{
		DocumentSource: DocumentSource{Text: offerLetter},
		ExtractTables:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, document.TypeMarkdown, res.DocumentType)
	require.Len(t, res.Sections, 2)
	assert.Equal(t, "Compensation", res.Sections[1].Heading)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, []string{"Item", "Amount"}, res.Tables[0].Headers)
	assert.Equal(t, "text", res.Metadata["source"])
	assert.Equal(t, "Offer", res.Metadata["title"])
	assert.Equal(t, "en", res.Language.Code)
	assert.Positive(t, res.WordCount)
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionAnalysisLogs, map[string]any{"kind": "parseDocument"}))
}

func TestParseDocument_URL(t *testing.T) {
	pages := fakePages{page: scraper.Page{
		URL:      "https://acme.example.com/careers",
		Title:    "Acme careers",
		Content:  "# Careers\n\nWe hire Go engineers for the platform team and the data team.",
		Source:   "firecrawl",
		Metadata: map[string]any{"statusCode": 200},
	}}
	uc := newDocuments(t, pages, nil, store.NewMemory())

	res, err := uc.ParseDocument(context.Background(), "u1", ParseDocumentInput{
		DocumentSource: DocumentSource{URL: "https://acme.example.com/careers", Type: "html"},
	})
	require.NoError(t, err)
	assert.Equal(t, document.TypeMarkdown, res.DocumentType)
	assert.Equal(t, "Acme careers", res.Metadata["title"])
	assert.Equal(t, "firecrawl", res.Metadata["source"])
	assert.Equal(t, 200, res.Metadata["statusCode"])
	assert.Contains(t, res.Text, "We hire Go engineers")
	assert.Empty(t, res.Tables)
}

func TestParseDocument_Validation(t *testing.T) {
	ctx := context.Background()
	uc := newDocuments(t, fakePages{err: scraper.ErrInvalidURL}, nil, store.NewMemory())

	cases := map[string]DocumentSource{
		"no source":    {},
		"blank text":   {Text: "   "},
		"both sources": {URL: "https://example.com", Text: "hello"},
		"bad type":     {Text: "hello", Type: "rtf"},
		"bad url":      {URL: "ftp://example.com/cv.pdf"},
		"no text":      {Text: "<html><body><script>x()</script></body></html>"},
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uc.ParseDocument(ctx, "u1", ParseDocumentInput{DocumentSource: src})
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestProcessTextExtraction_LocalModes(t *testing.T) {
	ctx := context.Background()
	gen := llm.NewScripted("flash")
	uc := newDocuments(t, nil, gen, store.NewMemory())
	src := DocumentSource{Text: offerLetter}

	res, err := uc.ProcessTextExtraction(ctx, "u1", TextExtractionInput{DocumentSource: src})
	require.NoError(t, err)
	assert.Equal(t, ExtractionFull, res.ExtractionType)
	assert.Equal(t, FormatText, res.OutputFormat)
	assert.Contains(t, res.ExtractedText, "Base\t180000")
	assert.Nil(t, res.Data)
	assert.Equal(t, "en", res.LanguageDetected)
	assert.Zero(t, res.ProcessingTimeMS)

	res, err = uc.ProcessTextExtraction(ctx, "u1", TextExtractionInput{DocumentSource: src, ExtractionType: "tables", OutputFormat: "markdown"})
	require.NoError(t, err)
	assert.Equal(t, "| Item | Amount |\n| --- | --- |\n| Base | 180000 |\n| Bonus | 15% |", res.ExtractedText)

	res, err = uc.ProcessTextExtraction(ctx, "u1", TextExtractionInput{DocumentSource: src, OutputFormat: "json"})
	require.NoError(t, err)
	assert.Equal(t, "Offer", res.Data["title"])
	assert.Len(t, res.Data["sections"], 2)

	assert.Empty(t, gen.Requests)
}

func TestProcessTextExtraction_KeyPoints(t *testing.T) {
	gen := llm.NewScripted("flash", "```json\n{\"summary\":\"\",\"keyPoints\":[\"Builds payment systems\",\" \",\"Leads a team of four\"]}\n```")
	s := store.NewMemory()
	uc := newDocuments(t, nil, gen, s)

	res, err := uc.ProcessTextExtraction(context.Background(), "u1", TextExtractionInput{
		DocumentSource: DocumentSource{Text: "Go Kubernetes Terraform"},
		ExtractionType: "key_points",
		Language:       "de",
		OutputFormat:   "json",
	})
	require.NoError(t, err)

	assert.Equal(t, "- Builds payment systems\n- Leads a team of four", res.ExtractedText)
	assert.Equal(t, []string{"Builds payment systems", "Leads a team of four"}, res.Data["keyPoints"])
	assert.Equal(t, "de", res.LanguageDetected)
	assert.Equal(t, "flash", res.Model)
	assert.True(t, gen.Last().JSON)
	assert.Contains(t, gen.Last().Prompt, "key points")
	assert.Contains(t, gen.Last().Prompt, `"de"`)
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionAnalysisLogs, map[string]any{"kind": "processTextExtraction"}))
}

func TestProcessTextExtraction_Summary(t *testing.T) {
	gen := llm.NewScripted("flash", `{"summary":"  An offer for a Staff Engineer.  "}`, "no json here")
	uc := newDocuments(t, nil, gen, store.NewMemory())
	src := DocumentSource{Text: offerLetter}

	res, err := uc.ProcessTextExtraction(context.Background(), "u1", TextExtractionInput{DocumentSource: src, ExtractionType: "summary"})
	require.NoError(t, err)
	assert.Equal(t, "An offer for a Staff Engineer.", res.ExtractedText)
	assert.Contains(t, gen.Last().Prompt, "Summarize")

	_, err = uc.ProcessTextExtraction(context.Background(), "u1", TextExtractionInput{DocumentSource: src, ExtractionType: "summary"})
	var outErr *ModelOutputError
	require.True(t, errors.As(err, &outErr))
	assert.Equal(t, "no json here", outErr.Raw)
}

func TestProcessTextExtraction_Validation(t *testing.T) {
	uc := newDocuments(t, nil, llm.NewScripted("flash"), store.NewMemory())
	src := DocumentSource{Text: offerLetter}

	_, err := uc.ProcessTextExtraction(context.Background(), "u1", TextExtractionInput{DocumentSource: src, ExtractionType: "ocr"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.ProcessTextExtraction(context.Background(), "u1", TextExtractionInput{DocumentSource: src, OutputFormat: "pdf"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.ProcessTextExtraction(context.Background(), "u1", TextExtractionInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
