package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"apply-codes/internal/infrastructure/vendor"
	"apply-codes/internal/logger"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const VendorPerplexity = "perplexity"

var focusInstructions = map[string]string{
	"":            "You are a research assistant for recruiters. Answer concisely and cite sources.",
	"general":     "You are a research assistant for recruiters. Answer concisely and cite sources.",
	"market":      "You research hiring markets: salary ranges, demand and competing employers. Cite sources.",
	"company":     "You research companies for recruiters: size, funding, tech stack, culture and recent news. Cite sources.",
	"candidate":   "You research public professional information about candidates. Only use public sources and cite them.",
	"technical":   "You explain technologies and skills so a recruiter can screen for them. Cite sources.",
	"competitors": "You map competing employers that hire similar talent. Cite sources.",
}

// Answer is a cited research answer.
type Answer struct {
	Answer            string   `json:"answer"`
	Sources           []Source `json:"sources"`
	FollowupQuestions []string `json:"followupQuestions"`
	Model             string   `json:"model"`
}

type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Perplexity speaks the OpenAI chat completions dialect at Perplexity's
// base URL.
type Perplexity struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

func NewPerplexity(apiKey, baseURL, model string, log *zap.Logger, opts ...option.RequestOption) *Perplexity {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if model == "" {
		model = "sonar"
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithMaxRetries(2),
	}
	return &Perplexity{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
		logger: logger.OrNop(log).With(zap.String("vendor", VendorPerplexity)),
	}
}

// perplexityExtras are the response fields outside the OpenAI schema.
type perplexityExtras struct {
	Citations     []string `json:"citations"`
	SearchResults []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"search_results"`
	RelatedQuestions []string `json:"related_questions"`
}

func (p *Perplexity) Ask(ctx context.Context, query, focus string) (Answer, error) {
	if p == nil {
		return Answer{}, vendor.NotConfigured(VendorPerplexity)
	}
	system, ok := focusInstructions[strings.ToLower(strings.TrimSpace(focus))]
	if !ok {
		system = focusInstructions[""]
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(query),
		},
	}
	completion, err := p.client.Chat.Completions.New(ctx, params, option.WithJSONSet("return_related_questions", true))
	if err != nil {
		return Answer{}, toAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return Answer{}, &vendor.APIError{Vendor: VendorPerplexity, StatusCode: http.StatusBadGateway, Message: "no choices returned"}
	}

	out := Answer{
		Answer:            strings.TrimSpace(completion.Choices[0].Message.Content),
		Sources:           []Source{},
		FollowupQuestions: []string{},
		Model:             completion.Model,
	}

	var extras perplexityExtras
	if err := json.Unmarshal([]byte(completion.RawJSON()), &extras); err != nil {
		p.logger.Debug("perplexity extras not decoded", zap.Error(err))
	}
	titles := make(map[string]string, len(extras.SearchResults))
	for _, r := range extras.SearchResults {
		titles[r.URL] = r.Title
	}
	for _, u := range extras.Citations {
		out.Sources = append(out.Sources, Source{URL: u, Title: titles[u]})
	}
	if len(out.Sources) == 0 {
		for _, r := range extras.SearchResults {
			out.Sources = append(out.Sources, Source{URL: r.URL, Title: r.Title})
		}
	}
	if extras.RelatedQuestions != nil {
		out.FollowupQuestions = extras.RelatedQuestions
	}
	return out, nil
}

// toAPIError converts SDK errors so handlers map them like any vendor error.
func toAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return &vendor.APIError{Vendor: VendorPerplexity, StatusCode: apiErr.StatusCode, Message: msg}
	}
	return fmt.Errorf("%s: %w", VendorPerplexity, err)
}
