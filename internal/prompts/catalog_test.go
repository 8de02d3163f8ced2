package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalogue(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)

	for _, name := range []string{
		"generateContent", "generateJobDescription", "enhanceJobDescription", "summarizeJob",
		"createLinkedinPost", "generateEmailTemplates", "generateInterviewQuestions",
		"prepareInterview", "analyzeCompensation", "extractNlpTerms", "analyzeCandidate",
		"analyzeResume", "generateLinkedinAnalysis", "generateClarvidaReport", "explainBoolean",
		"booleanSearch", "extractText", "chatSystem",
	} {
		_, ok := c.Get(name)
		assert.True(t, ok, name)
	}
}

func TestRender_OptionalFields(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)

	r, err := c.Render("generateInterviewQuestions", map[string]any{
		"jobTitle":   "Staff Go Engineer",
		"focusAreas": []any{"concurrency", "distributed systems"},
	})
	require.NoError(t, err)
	assert.True(t, r.JSON)
	assert.Contains(t, r.Text, "10 interview questions for a Staff Go Engineer")
	assert.Contains(t, r.Text, "concurrency, distributed systems")
	assert.NotContains(t, r.Text, "<no value>")
	assert.NotContains(t, r.Text, "Difficulty")
	assert.NotEmpty(t, r.System)
}

func TestRender_Unknown(t *testing.T) {
	c, err := Load(nil)
	require.NoError(t, err)
	_, err = c.Render("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownPrompt)
}

func TestRender_TrimsToBudget(t *testing.T) {
	c, err := Load(NewBudgetWithTokenizer(50, nil))
	require.NoError(t, err)

	r, err := c.Render("summarizeJob", map[string]any{"content": strings.Repeat("kubernetes ", 500)})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(r.Text)), 200)
}

func TestParse_RejectsBadOutput(t *testing.T) {
	_, err := Parse([]byte("x:\n  output: xml\n  template: hi\n"), nil)
	require.Error(t, err)
}

type wordTokenizer struct{}

func (wordTokenizer) Encode(text string, _, _ []string) []int {
	out := make([]int, len(strings.Fields(text)))
	return out
}

func (wordTokenizer) Decode(tokens []int) string {
	return strings.TrimSpace(strings.Repeat("w ", len(tokens)))
}

func TestBudget_WithTokenizer(t *testing.T) {
	b := NewBudgetWithTokenizer(3, wordTokenizer{})
	assert.Equal(t, 4, b.Count("a b c d"))
	assert.Equal(t, "w w w", b.Trim("a b c d", 0))
	assert.Equal(t, "a b", b.Trim("a b", 0))
}
