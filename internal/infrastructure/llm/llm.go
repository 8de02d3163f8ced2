// Package llm talks to the hosted language model.
package llm

import (
	"context"
	"errors"
)

var (
	ErrEmptyPrompt   = errors.New("prompt must not be empty")
	ErrEmptyResponse = errors.New("model returned an empty response")
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Message struct {
	Role string `json:"role"`
	Text string `json:"content"`
}

type Request struct {
	Model   string
	System  string
	Prompt  string
	History []Message
	// JSON asks the model for an application/json answer.
	JSON        bool
	Temperature *float32
	MaxTokens   int32
}

type Response struct {
	Text  string
	Model string
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	// Stream calls onChunk for every text delta and returns the full text.
	Stream(ctx context.Context, req Request, onChunk func(string) error) (Response, error)
	DefaultModel() string
}
