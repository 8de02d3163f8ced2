package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apply-codes/internal/document"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/infrastructure/scraper"
	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/jsonclean"
	"apply-codes/internal/prompts"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

// Extraction modes.
const (
	ExtractionFull      = "full"
	ExtractionSummary   = "summary"
	ExtractionKeyPoints = "key_points"
	ExtractionTables    = "tables"
)

// Output formats of ProcessTextExtraction.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

const extractPrompt = "extractText"

type DocumentSource struct {
	URL  string
	Text string
	Type string
}

type ParseDocumentInput struct {
	DocumentSource
	ExtractTables      bool
	PreserveFormatting bool
}

type ParseDocumentResult struct {
	Text         string             `json:"text"`
	Tables       []document.Table   `json:"tables"`
	Sections     []document.Section `json:"sections"`
	Metadata     map[string]any     `json:"metadata"`
	WordCount    int                `json:"wordCount"`
	DocumentType document.Type      `json:"documentType"`
	Language     document.Language  `json:"language"`
}

type TextExtractionInput struct {
	DocumentSource
	ExtractionType string
	Language       string
	OutputFormat   string
}

type TextExtractionResult struct {
	ExtractedText    string         `json:"extractedText"`
	Data             map[string]any `json:"data,omitempty"`
	ExtractionType   string         `json:"extractionType"`
	OutputFormat     string         `json:"outputFormat"`
	LanguageDetected string         `json:"languageDetected"`
	Confidence       float64        `json:"confidence"`
	WordCount        int            `json:"wordCount"`
	ProcessingTimeMS int64          `json:"processingTimeMs"`
	Model            string         `json:"model,omitempty"`
}

type DocumentUsecase interface {
	ParseDocument(ctx context.Context, userID string, in ParseDocumentInput) (ParseDocumentResult, error)
	ProcessTextExtraction(ctx context.Context, userID string, in TextExtractionInput) (TextExtractionResult, error)
}

type Documents struct {
	pages   PageFetcher
	catalog *prompts.Catalog
	llm     llm.Generator
	audit   *Recorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewDocumentUsecase(pages PageFetcher, catalog *prompts.Catalog, gen llm.Generator, audit *Recorder, log *zap.Logger) *Documents {
	return &Documents{
		pages:   pages,
		catalog: catalog,
		llm:     gen,
		audit:   audit,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

func (u *Documents) ParseDocument(ctx context.Context, userID string, in ParseDocumentInput) (ParseDocumentResult, error) {
	doc, meta, err := u.load(ctx, in.DocumentSource, document.Options{
		ExtractTables:      in.ExtractTables,
		PreserveFormatting: in.PreserveFormatting,
	})
	if err != nil {
		return ParseDocumentResult{}, err
	}

	res := ParseDocumentResult{
		Text:         doc.Text,
		Tables:       doc.Tables,
		Sections:     doc.Sections,
		Metadata:     meta,
		WordCount:    doc.WordCount,
		DocumentType: doc.Type,
		Language:     doc.Language,
	}
	u.audit.Record(ctx, store.CollectionAnalysisLogs, Entry{
		UserID:  userID,
		Kind:    "parseDocument",
		Request: sourceLog(in.DocumentSource),
		Response: map[string]any{
			"documentType": res.DocumentType,
			"wordCount":    res.WordCount,
			"sections":     len(res.Sections),
			"tables":       len(res.Tables),
		},
	})
	return res, nil
}

// ProcessTextExtraction returns the document text in the requested shape.
// Summaries and key points come from the model; the other modes are local.
func (u *Documents) ProcessTextExtraction(ctx context.Context, userID string, in TextExtractionInput) (TextExtractionResult, error) {
	start := u.now()
	mode := strings.ToLower(strings.TrimSpace(in.ExtractionType))
	if mode == "" {
		mode = ExtractionFull
	}
	switch mode {
	case ExtractionFull, ExtractionSummary, ExtractionKeyPoints, ExtractionTables:
	default:
		return TextExtractionResult{}, invalid("extractionType must be one of full, summary, key_points, tables")
	}
	format := strings.ToLower(strings.TrimSpace(in.OutputFormat))
	if format == "" {
		format = FormatText
	}
	switch format {
	case FormatText, FormatJSON, FormatMarkdown:
	default:
		return TextExtractionResult{}, invalid("outputFormat must be one of text, json, markdown")
	}

	doc, _, err := u.load(ctx, in.DocumentSource, document.Options{
		ExtractTables:      true,
		PreserveFormatting: format == FormatMarkdown,
	})
	if err != nil {
		return TextExtractionResult{}, err
	}

	res := TextExtractionResult{
		ExtractionType:   mode,
		OutputFormat:     format,
		LanguageDetected: doc.Language.Code,
		Confidence:       doc.Language.Confidence,
		WordCount:        doc.WordCount,
	}
	hint := strings.ToLower(strings.TrimSpace(in.Language))
	if res.LanguageDetected == document.LanguageUnknown && hint != "" {
		res.LanguageDetected = hint
	}

	switch mode {
	case ExtractionFull:
		res.ExtractedText = doc.Text
		if format == FormatJSON {
			res.Data = map[string]any{"title": doc.Title, "sections": doc.Sections, "tables": doc.Tables}
		}
	case ExtractionTables:
		res.ExtractedText = document.RenderTables(doc.Tables, format == FormatMarkdown)
		if format == FormatJSON {
			res.Data = map[string]any{"tables": doc.Tables}
		}
	default:
		if err := u.condense(ctx, mode, format, firstNonEmpty(hint, doc.Language.Code), doc, &res); err != nil {
			return TextExtractionResult{}, err
		}
	}
	res.ProcessingTimeMS = u.now().Sub(start).Milliseconds()

	u.audit.Record(ctx, store.CollectionAnalysisLogs, Entry{
		UserID: userID,
		Kind:   "processTextExtraction",
		Request: mergeFields(sourceLog(in.DocumentSource), map[string]any{
			"extractionType": mode,
			"outputFormat":   format,
		}),
		Response: map[string]any{
			"wordCount":        res.WordCount,
			"languageDetected": res.LanguageDetected,
			"model":            res.Model,
		},
	})
	return res, nil
}

func (u *Documents) condense(ctx context.Context, mode, format, lang string, doc document.Document, res *TextExtractionResult) error {
	if lang == document.LanguageUnknown {
		lang = ""
	}
	rendered, err := u.catalog.Render(extractPrompt, map[string]any{
		"mode":     mode,
		"language": lang,
		"text":     doc.Text,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	resp, err := u.llm.Generate(ctx, llm.Request{System: rendered.System, Prompt: rendered.Text, JSON: true})
	if err != nil {
		return err
	}
	obj, err := jsonclean.Object(resp.Text)
	if err != nil {
		u.logger.Warn("model returned invalid json",
			zap.String("prompt", extractPrompt),
			zap.String("raw", logger.TruncateForLog(resp.Text, 300)),
		)
		return &ModelOutputError{Prompt: extractPrompt, Raw: resp.Text, Err: err}
	}
	res.Model = resp.Model

	summary, _ := obj["summary"].(string)
	points := stringList(obj["keyPoints"])
	if mode == ExtractionSummary {
		res.ExtractedText = strings.TrimSpace(summary)
		if format == FormatJSON {
			res.Data = map[string]any{"summary": res.ExtractedText}
		}
		return nil
	}
	lines := make([]string, len(points))
	for i, p := range points {
		lines[i] = "- " + p
	}
	res.ExtractedText = strings.Join(lines, "\n")
	if format == FormatJSON {
		res.Data = map[string]any{"keyPoints": points}
	}
	return nil
}

// load reads the document from its URL or inline text, never both.
func (u *Documents) load(ctx context.Context, src DocumentSource, opts document.Options) (document.Document, map[string]any, error) {
	url, text := strings.TrimSpace(src.URL), src.Text
	switch {
	case url == "" && strings.TrimSpace(text) == "":
		return document.Document{}, nil, invalid("documentUrl or documentText is required")
	case url != "" && strings.TrimSpace(text) != "":
		return document.Document{}, nil, invalid("send documentUrl or documentText, not both")
	}
	typ, ok := document.ParseType(src.Type)
	if !ok {
		return document.Document{}, nil, invalid("documentType must be one of auto, pdf, docx, txt, html, markdown")
	}
	opts.Type = typ

	meta := map[string]any{"source": "text", "characterCount": len([]rune(text))}
	if url != "" {
		page, err := u.pages.Fetch(ctx, scraper.Options{URL: url, FullPage: true})
		if errors.Is(err, scraper.ErrInvalidURL) {
			return document.Document{}, nil, invalid("documentUrl must be an http(s) address")
		}
		if err != nil {
			return document.Document{}, nil, err
		}
		text = page.Content
		// the scraper already renders pages as markdown
		if typ == document.TypeAuto || typ == document.TypeHTML {
			opts.Type = document.TypeMarkdown
		}
		meta = map[string]any{
			"source":         page.Source,
			"url":            page.URL,
			"title":          page.Title,
			"description":    page.Description,
			"characterCount": len([]rune(text)),
		}
		for k, v := range page.Metadata {
			if _, taken := meta[k]; !taken {
				meta[k] = v
			}
		}
	}

	doc, err := document.Parse(text, opts)
	if errors.Is(err, document.ErrEmpty) {
		return document.Document{}, nil, invalid("document has no readable text")
	}
	if err != nil {
		return document.Document{}, nil, invalid("document could not be parsed: %v", err)
	}
	if doc.Title != "" {
		if _, ok := meta["title"]; !ok || meta["title"] == "" {
			meta["title"] = doc.Title
		}
	}
	return doc, meta, nil
}

func sourceLog(src DocumentSource) map[string]any {
	out := map[string]any{"documentType": src.Type}
	if src.URL != "" {
		out["documentUrl"] = src.URL
	} else {
		out["documentLength"] = len(src.Text)
	}
	return out
}

func mergeFields(a, b map[string]any) map[string]any {
	for k, v := range b {
		a[k] = v
	}
	return a
}

func stringList(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
