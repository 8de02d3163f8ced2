// Package chat routes assistant queries to a model and describes the tools
// the assistant can reach.
package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type Complexity string

const (
	Simple   Complexity = "simple"
	Moderate Complexity = "moderate"
	Complex  Complexity = "complex"
)

var complexIndicators = []string{
	"analyze", "compare", "evaluate", "recommend", "strategy",
	"plan", "multiple", "all", "comprehensive", "detailed",
	"optimize", "assess", "review", "create a report",
	"step by step", "end to end", "full", "complete",
}

var simpleIndicators = []string{
	"what is", "how do", "can you", "show me", "find",
	"search", "get", "who is", "where is", "when",
	"list", "tell me", "explain briefly",
}

var multiStepPatterns = []*regexp.Regexp{
	regexp.MustCompile(`and\s+then`),
	regexp.MustCompile(`after\s+that`),
	regexp.MustCompile(`also\s+(?:search|find|analyze|send|create)`),
	regexp.MustCompile(`(?:first|second|third|finally)`),
	regexp.MustCompile(`multiple\s+(?:candidates|sources|steps)`),
}

const (
	complexThreshold = 4
	longHistory      = 5
	longMessage      = 300
)

// Classify scores a message by substring indicators. Matching is plain
// substring search, so "all" also hits "small"; the weights absorb that.
func Classify(message string, historyLen int) Complexity {
	lower := strings.ToLower(message)

	score := 0
	for _, ind := range complexIndicators {
		if strings.Contains(lower, ind) {
			score += 2
		}
	}
	for _, ind := range simpleIndicators {
		if strings.Contains(lower, ind) {
			score--
		}
	}
	multi := 0
	for _, re := range multiStepPatterns {
		if re.MatchString(lower) {
			multi++
		}
	}
	score += multi * 2
	if historyLen > longHistory {
		score++
	}
	if utf8.RuneCountInString(message) > longMessage {
		score++
	}

	switch {
	case score >= complexThreshold:
		return Complex
	case score <= -1 && multi == 0:
		return Simple
	default:
		return Moderate
	}
}

func (c Complexity) Description() string {
	switch c {
	case Simple:
		return "Simple query - direct question or single tool use"
	case Complex:
		return "Complex query - multi-step reasoning or analysis required"
	default:
		return "Moderate query - may involve 2-3 tools"
	}
}

// Models picks a model per complexity.
type Models struct {
	Default string
	Complex string
}

func (m Models) For(c Complexity) string {
	if c == Complex && m.Complex != "" {
		return m.Complex
	}
	return m.Default
}
