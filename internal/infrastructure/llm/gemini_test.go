package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	results []fakeResult
	calls   []fakeCall
}

type fakeResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: config})
	if len(f.results) == 0 {
		return nil, errors.New("unexpected call")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func newTestGemini(models *fakeModels, retries int) *Gemini {
	g := newGemini(models, GeminiConfig{Model: "gemini-2.0-flash", MaxRetries: retries}, nil)
	g.backoff = time.Millisecond
	return g
}

func TestGemini_RetriesTransientErrors(t *testing.T) {
	models := &fakeModels{results: []fakeResult{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}},
		{resp: textResponse("retry ", "ok")},
	}}
	g := newTestGemini(models, 3)

	resp, err := g.Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "retry ok", resp.Text)
	assert.Equal(t, "gemini-2.0-flash", resp.Model)
	assert.Len(t, models.calls, 3)
}

func TestGemini_DoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{results: []fakeResult{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
	}}
	g := newTestGemini(models, 3)

	_, err := g.Generate(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Len(t, models.calls, 1)
}

func TestGemini_BuildsContents(t *testing.T) {
	models := &fakeModels{results: []fakeResult{{resp: textResponse(`{"a":1}`)}}}
	g := newTestGemini(models, 1)

	_, err := g.Generate(context.Background(), Request{
		Model:  "gemini-2.5-pro",
		System: "be brief",
		Prompt: "question",
		JSON:   true,
		History: []Message{
			{Role: RoleUser, Text: "hi"},
			{Role: "assistant", Text: "hello"},
			{Role: RoleUser, Text: "  "},
		},
	})
	require.NoError(t, err)
	require.Len(t, models.calls, 1)

	call := models.calls[0]
	assert.Equal(t, "gemini-2.5-pro", call.model)
	require.Len(t, call.contents, 3)
	assert.Equal(t, "model", call.contents[1].Role)
	assert.Equal(t, "question", call.contents[2].Parts[0].Text)
	assert.Equal(t, "application/json", call.config.ResponseMIMEType)
	assert.Equal(t, "be brief", call.config.SystemInstruction.Parts[0].Text)
}

func TestGemini_EmptyPromptAndResponse(t *testing.T) {
	g := newTestGemini(&fakeModels{}, 1)
	_, err := g.Generate(context.Background(), Request{Prompt: "  "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	g = newTestGemini(&fakeModels{results: []fakeResult{{resp: textResponse("")}}}, 1)
	_, err = g.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestScripted(t *testing.T) {
	s := NewScripted("m", "first").Fail(errors.New("down"))

	resp, err := s.Generate(context.Background(), Request{Prompt: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Text)

	_, err = s.Generate(context.Background(), Request{Prompt: "p2"})
	require.Error(t, err)

	var chunks []string
	resp, err = s.Stream(context.Background(), Request{Prompt: "echo me back"}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "echo me back", resp.Text)
	assert.Equal(t, []string{"echo ", "me ", "back"}, chunks)
	assert.Equal(t, "echo me back", s.Last().Prompt)
}
