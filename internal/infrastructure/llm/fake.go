package llm

import (
	"context"
	"strings"
	"sync"
)

// Scripted is an in-process Generator that answers from a fixed script.
// It backs tests and the offline dev mode when no model key is configured.
type Scripted struct {
	mu      sync.Mutex
	replies []Response
	errs    []error
	// Fallback answers once the script is exhausted; nil echoes the prompt.
	Fallback func(Request) (Response, error)

	Requests []Request
	Model    string
}

func NewScripted(model string, replies ...string) *Scripted {
	s := &Scripted{Model: model}
	for _, r := range replies {
		s.replies = append(s.replies, Response{Text: r, Model: model})
		s.errs = append(s.errs, nil)
	}
	return s
}

// Fail queues an error as the next answer.
func (s *Scripted) Fail(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, Response{})
	s.errs = append(s.errs, err)
	return s
}

func (s *Scripted) DefaultModel() string { return s.Model }

func (s *Scripted) Generate(_ context.Context, req Request) (Response, error) {
	s.mu.Lock()
	s.Requests = append(s.Requests, req)
	if len(s.replies) > 0 {
		resp, err := s.replies[0], s.errs[0]
		s.replies, s.errs = s.replies[1:], s.errs[1:]
		s.mu.Unlock()
		if err != nil {
			return Response{}, err
		}
		if req.Model != "" {
			resp.Model = req.Model
		}
		return resp, nil
	}
	fallback := s.Fallback
	s.mu.Unlock()

	if fallback != nil {
		return fallback(req)
	}
	model := req.Model
	if model == "" {
		model = s.Model
	}
	return Response{Text: strings.TrimSpace(req.Prompt), Model: model}, nil
}

func (s *Scripted) Stream(ctx context.Context, req Request, onChunk func(string) error) (Response, error) {
	resp, err := s.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if onChunk != nil {
		for _, word := range strings.SplitAfter(resp.Text, " ") {
			if err := onChunk(word); err != nil {
				return Response{}, err
			}
		}
	}
	return resp, nil
}

// Last returns the most recent request, or a zero Request.
func (s *Scripted) Last() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Requests) == 0 {
		return Request{}
	}
	return s.Requests[len(s.Requests)-1]
}
