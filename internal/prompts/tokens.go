package prompts

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const encodingName = "cl100k_base"

// Tokenizer is the subset of a BPE encoding the budget needs.
type Tokenizer interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Budget trims text to a token budget. Without a tokenizer it
// approximates four characters per token.
type Budget struct {
	max int

	once   sync.Once
	tk     Tokenizer
	loader func() (Tokenizer, error)
	logger *zap.Logger
}

func NewBudget(maxTokens int, logger *zap.Logger) *Budget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Budget{
		max:    maxTokens,
		logger: logger,
		loader: func() (Tokenizer, error) {
			return tiktoken.GetEncoding(encodingName)
		},
	}
}

// NewBudgetWithTokenizer uses tk directly; a nil tk forces the approximation.
func NewBudgetWithTokenizer(maxTokens int, tk Tokenizer) *Budget {
	return &Budget{
		max:    maxTokens,
		logger: zap.NewNop(),
		loader: func() (Tokenizer, error) { return tk, nil },
	}
}

func (b *Budget) tokenizer() Tokenizer {
	b.once.Do(func() {
		tk, err := b.loader()
		if err != nil {
			b.logger.Warn("tokenizer unavailable, approximating token counts", zap.String("encoding", encodingName), zap.Error(err))
			return
		}
		b.tk = tk
	})
	return b.tk
}

func (b *Budget) Max() int {
	if b == nil {
		return 0
	}
	return b.max
}

func (b *Budget) Count(text string) int {
	if tk := b.tokenizer(); tk != nil {
		return len(tk.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}

// Trim returns text cut to at most limit tokens (the budget max when limit <= 0).
func (b *Budget) Trim(text string, limit int) string {
	if b == nil {
		return text
	}
	if limit <= 0 {
		limit = b.max
	}
	if limit <= 0 {
		return text
	}

	if tk := b.tokenizer(); tk != nil {
		toks := tk.Encode(text, nil, nil)
		if len(toks) <= limit {
			return text
		}
		return tk.Decode(toks[:limit])
	}

	runes := []rune(text)
	if len(runes) <= limit*4 {
		return text
	}
	return string(runes[:limit*4])
}
