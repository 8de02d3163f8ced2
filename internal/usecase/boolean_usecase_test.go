package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"apply-codes/internal/boolean"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessJobRequirements_FallbackWhenModelUnusable(t *testing.T) {
	gen := llm.NewScripted("flash", "I'm sorry, I can't help with that.")
	s := store.NewMemory()
	uc := NewBooleanUsecase(loadCatalog(t), gen, s, NewRecorder(s, nil), nil)

	res, err := uc.ProcessJobRequirements(context.Background(), "u1", ProcessRequirementsInput{Content: "Senior Go Engineer, Kubernetes"})
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, res.Source)
	assert.NotEmpty(t, res.SearchString)
	assert.True(t, boolean.Valid(res.SearchString))
	assert.Contains(t, strings.ToLower(res.SearchString), "kubernetes")
	assert.Equal(t, "Senior Go Engineer", res.Requirements.Title)
	assert.Equal(t, []string{"Kubernetes"}, res.Requirements.Skills)
	assert.NotNil(t, res.ContextUsed)
	assert.EqualValues(t, 1, countDocs(t, s, store.CollectionSearchLogs, map[string]any{"kind": "processJobRequirements"}))
}

func TestProcessJobRequirements_FallbackWhenModelFails(t *testing.T) {
	gen := llm.NewScripted("flash").Fail(errors.New("quota"))
	uc := NewBooleanUsecase(loadCatalog(t), gen, store.NewMemory(), nil, nil)

	res, err := uc.ProcessJobRequirements(context.Background(), "u1", ProcessRequirementsInput{Content: "Senior Go Engineer, Kubernetes"})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.True(t, boolean.Valid(res.SearchString))
}

func TestProcessJobRequirements_UsesModelAnswer(t *testing.T) {
	gen := llm.NewScripted("flash", "```json\n"+`{"searchString":"(\"Go Engineer\" OR Golang) AND kubernetes","requirements":{"title":"Go Engineer","skills":["Kubernetes"]}}`+"\n```")
	uc := NewBooleanUsecase(loadCatalog(t), gen, store.NewMemory(), nil, nil)

	res, err := uc.ProcessJobRequirements(context.Background(), "u1", ProcessRequirementsInput{
		Content:      "Go Engineer, Kubernetes",
		ContextItems: []boolean.ContextItem{{Type: "location", Content: "Berlin"}},
	})
	require.NoError(t, err)
	assert.Equal(t, SourceLLM, res.Source)
	assert.Contains(t, res.SearchString, " AND ")
	assert.Equal(t, "Go Engineer", res.Requirements.Title)
	assert.Equal(t, "Berlin", res.Requirements.Location)
	assert.Equal(t, []string{"location"}, res.ContextUsed)
	assert.True(t, gen.Last().JSON)
}

func TestProcessJobRequirements_RequiresContent(t *testing.T) {
	uc := NewBooleanUsecase(loadCatalog(t), llm.NewScripted("flash"), store.NewMemory(), nil, nil)
	_, err := uc.ProcessJobRequirements(context.Background(), "u1", ProcessRequirementsInput{Content: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessJobRequirements_Project(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, store.CollectionProjects, "theirs", map[string]any{"owner_id": "someone-else"}))
	uc := NewBooleanUsecase(loadCatalog(t), llm.NewScripted("flash"), s, nil, nil)

	_, err := uc.ProcessJobRequirements(ctx, "u1", ProcessRequirementsInput{Content: "Go Engineer, Kubernetes", ProjectID: "theirs"})
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := uc.ProcessJobRequirements(ctx, "u1", ProcessRequirementsInput{Content: "Go Engineer, Kubernetes", ProjectID: "mine"})
	require.NoError(t, err)
	doc, err := s.Get(ctx, store.CollectionProjects, "mine")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.String("owner_id"))
	assert.Equal(t, res.SearchString, doc.String("searchString"))
}

func TestGenerateBooleanSearch(t *testing.T) {
	gen := llm.NewScripted("flash", `{"searchString":"golang AND (berlin OR remote)","explanation":"Go devs near Berlin"}`)
	uc := NewBooleanUsecase(loadCatalog(t), gen, store.NewMemory(), nil, nil)

	res, err := uc.GenerateBooleanSearch(context.Background(), "u1", BooleanSearchInput{Description: "Go developer in Berlin"})
	require.NoError(t, err)
	assert.Equal(t, SourceLLM, res.Source)
	assert.Equal(t, "golang AND (berlin OR remote)", res.SearchString)
	assert.Equal(t, "Go devs near Berlin", res.Explanation)

	_, err = uc.GenerateBooleanSearch(context.Background(), "u1", BooleanSearchInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessJobRequirements_RejectsContentWithoutTerms(t *testing.T) {
	gen := llm.NewScripted("flash")
	gen.Fallback = func(llm.Request) (llm.Response, error) { return llm.Response{}, errors.New("quota") }
	s := store.NewMemory()
	uc := NewBooleanUsecase(loadCatalog(t), gen, s, NewRecorder(s, nil), nil)

	_, err := uc.ProcessJobRequirements(context.Background(), "u1", ProcessRequirementsInput{Content: "!!! ???"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.EqualValues(t, 0, countDocs(t, s, store.CollectionSearchLogs, map[string]any{"kind": "processJobRequirements"}))

	_, err = uc.GenerateBooleanSearch(context.Background(), "u1", BooleanSearchInput{Description: "--- ..."})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessJobRequirementsV2_AddsAnalysis(t *testing.T) {
	gen := llm.NewScripted("flash")
	gen.Fallback = func(llm.Request) (llm.Response, error) { return llm.Response{}, errors.New("quota") }
	uc := NewBooleanUsecase(loadCatalog(t), gen, store.NewMemory(), nil, nil)

	res, err := uc.ProcessJobRequirementsV2(context.Background(), "u1", ProcessRequirementsV2Input{
		Content:     "Staff Rust Engineer with Kafka and AWS, remote",
		CompanyName: "Figma",
		Industry:    "Design Tech",
	})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.True(t, boolean.Valid(res.SearchString))
	assert.Equal(t, "staff", res.Seniority)
	assert.Equal(t, []string{"Kafka"}, res.SkillsTaxonomy[boolean.CategoryData])
	assert.Equal(t, []string{"AWS"}, res.SkillsTaxonomy[boolean.CategoryCloud])
	assert.Equal(t, "Figma", res.CompanyName)
	assert.Contains(t, res.ContextUsed, "note")
	assert.NotEmpty(t, res.SearchStrategy)

	_, err = uc.ProcessJobRequirementsV2(context.Background(), "u1", ProcessRequirementsV2Input{CompanyName: "Figma"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
