package usecase

import (
	"context"
	"fmt"
	"strings"

	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/jsonclean"
	"apply-codes/internal/prompts"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

// GenerationSpec describes the input contract of one generation route.
type GenerationSpec struct {
	Required []string
	// AnyOf needs at least one non-empty field.
	AnyOf []string
}

// Generations is keyed by route name, which is also the prompt name.
var Generations = map[string]GenerationSpec{
	"generateContent":            {Required: []string{"prompt"}},
	"generateJobDescription":     {Required: []string{"title"}},
	"enhanceJobDescription":      {Required: []string{"content"}},
	"summarizeJob":               {Required: []string{"content"}},
	"createLinkedinPost":         {Required: []string{"topic"}},
	"generateEmailTemplates":     {Required: []string{"templatePurpose", "jobTitle", "companyName"}},
	"generateInterviewQuestions": {Required: []string{"jobTitle"}},
	"prepareInterview":           {Required: []string{"candidateName"}},
	"analyzeCompensation":        {Required: []string{"jobTitle", "location"}},
	"extractNlpTerms":            {Required: []string{"text"}},
	"analyzeCandidate":           {AnyOf: []string{"resume", "linkedinUrl"}},
	"analyzeResume":              {Required: []string{"resumeText"}},
	"generateLinkedinAnalysis":   {AnyOf: []string{"linkedinUrl", "profileData"}},
	"generateClarvidaReport":     {Required: []string{"reportType"}},
	"explainBoolean":             {Required: []string{"booleanString"}},
}

// Validate reports the first missing field.
func (s GenerationSpec) Validate(fields map[string]any) error {
	for _, name := range s.Required {
		if !present(fields[name]) {
			return invalid("%s is required", name)
		}
	}
	if len(s.AnyOf) == 0 {
		return nil
	}
	for _, name := range s.AnyOf {
		if present(fields[name]) {
			return nil
		}
	}
	return invalid("one of %s is required", strings.Join(s.AnyOf, ", "))
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(val) != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

type GenerationResult struct {
	Text  string
	Data  map[string]any
	Model string
}

type GenerationUsecase interface {
	Generate(ctx context.Context, userID, name string, fields map[string]any) (GenerationResult, error)
}

type Generation struct {
	catalog *prompts.Catalog
	llm     llm.Generator
	audit   *Recorder
	logger  *zap.Logger
}

func NewGenerationUsecase(catalog *prompts.Catalog, gen llm.Generator, audit *Recorder, log *zap.Logger) *Generation {
	return &Generation{catalog: catalog, llm: gen, audit: audit, logger: logger.OrNop(log)}
}

func (u *Generation) Generate(ctx context.Context, userID, name string, fields map[string]any) (GenerationResult, error) {
	spec, ok := Generations[name]
	if !ok {
		return GenerationResult{}, fmt.Errorf("%w: generation %q", ErrNotFound, name)
	}
	if err := spec.Validate(fields); err != nil {
		return GenerationResult{}, err
	}

	rendered, err := u.catalog.Render(name, fields)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	resp, err := u.llm.Generate(ctx, llm.Request{
		System: rendered.System,
		Prompt: rendered.Text,
		JSON:   rendered.JSON,
	})
	if err != nil {
		return GenerationResult{}, err
	}

	out := GenerationResult{Text: strings.TrimSpace(resp.Text), Model: resp.Model}
	if rendered.JSON {
		obj, err := jsonclean.Object(resp.Text)
		if err != nil {
			u.logger.Warn("model returned invalid json",
				zap.String("prompt", name),
				zap.String("raw", logger.TruncateForLog(resp.Text, 300)),
			)
			return GenerationResult{}, &ModelOutputError{Prompt: name, Raw: resp.Text, Err: err}
		}
		out.Data = obj
	}

	var logged any = out.Text
	if out.Data != nil {
		logged = out.Data
	}
	u.audit.Record(ctx, store.CollectionAnalysisLogs, Entry{
		UserID:   userID,
		Kind:     name,
		Request:  fields,
		Response: map[string]any{"output": logged, "model": out.Model},
	})
	return out, nil
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
