package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/retry"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini wraps the GenAI client. Each call is retried with exponential
// backoff on 429 and 5xx answers.
type Gemini struct {
	client *genai.Client
	models modelsAPI

	model   string
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	MaxRetries int
}

func NewGemini(ctx context.Context, cfg GeminiConfig, log *zap.Logger) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	g := newGemini(client.Models, cfg, log)
	g.client = client
	return g, nil
}

func newGemini(models modelsAPI, cfg GeminiConfig, log *zap.Logger) *Gemini {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 3
	}
	return &Gemini{
		models:  models,
		model:   model,
		retries: retries,
		backoff: time.Second,
		logger:  logger.OrNop(log).Named("llm"),
	}
}

func (g *Gemini) DefaultModel() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	if g == nil || g.models == nil {
		return Response{}, errors.New("gemini generator is not initialized")
	}
	contents, cfg, model, err := g.build(req)
	if err != nil {
		return Response{}, err
	}

	var text string
	err = retry.Do(ctx, g.policy(model), func(ctx context.Context) error {
		resp, err := g.models.GenerateContent(ctx, model, contents, cfg)
		if err != nil {
			return err
		}
		text = responseText(resp)
		if text == "" {
			return ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("generate content: %w", err)
	}

	g.logger.Debug("generated",
		zap.String("model", model),
		zap.String("prompt", logger.TruncateForLog(req.Prompt, 200)),
		zap.Int("chars", len(text)),
	)
	return Response{Text: text, Model: model}, nil
}

func (g *Gemini) Stream(ctx context.Context, req Request, onChunk func(string) error) (Response, error) {
	if g == nil || g.client == nil {
		// Without a streaming client, deliver the whole answer as one chunk.
		resp, err := g.Generate(ctx, req)
		if err != nil {
			return Response{}, err
		}
		if onChunk != nil {
			if err := onChunk(resp.Text); err != nil {
				return Response{}, err
			}
		}
		return resp, nil
	}

	contents, cfg, model, err := g.build(req)
	if err != nil {
		return Response{}, err
	}

	var b strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return Response{}, fmt.Errorf("stream content: %w", err)
		}
		chunk := partsText(resp)
		if chunk == "" {
			continue
		}
		b.WriteString(chunk)
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return Response{}, err
			}
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return Response{}, ErrEmptyResponse
	}
	return Response{Text: text, Model: model}, nil
}

func (g *Gemini) build(req Request) ([]*genai.Content, *genai.GenerateContentConfig, string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, nil, "", ErrEmptyPrompt
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = g.model
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel || m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{}
	if s := strings.TrimSpace(req.System); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		cfg.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	return contents, cfg, model, nil
}

func (g *Gemini) policy(model string) retry.Policy {
	p := retry.Default(g.retries)
	p.Initial = g.backoff
	p.Retryable = retryable
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		g.logger.Warn("llm call failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return p
}

func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return true
}

// StatusCode extracts the HTTP status of a model API failure, or 0.
func StatusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func responseText(resp *genai.GenerateContentResponse) string {
	return strings.TrimSpace(partsText(resp))
}

func partsText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
		}
		// Only the first candidate is used.
		break
	}
	return b.String()
}
