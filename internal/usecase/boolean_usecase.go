package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"apply-codes/internal/boolean"
	"apply-codes/internal/infrastructure/llm"
	"apply-codes/internal/logger"
	"apply-codes/internal/pkg/jsonclean"
	"apply-codes/internal/prompts"
	"apply-codes/internal/store"

	"go.uber.org/zap"
)

const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

type ProcessRequirementsInput struct {
	Content      string
	SearchType   string
	ContextItems []boolean.ContextItem
	ProjectID    string
}

type ProcessRequirementsResult struct {
	SearchString string               `json:"searchString"`
	Requirements boolean.Requirements `json:"requirements"`
	ContextUsed  []string             `json:"contextUsed"`
	Source       string               `json:"source"`
}

type BooleanSearchInput struct {
	Description  string
	JobTitle     string
	ContextItems []boolean.ContextItem
}

type BooleanSearchResult struct {
	SearchString string   `json:"searchString"`
	Explanation  string   `json:"explanation"`
	ContextUsed  []string `json:"contextUsed"`
	Source       string   `json:"source"`
}

type ProcessRequirementsV2Input struct {
	Content      string
	CompanyName  string
	Industry     string
	ContextItems []boolean.ContextItem
	ProjectID    string
}

type ProcessRequirementsV2Result struct {
	ProcessRequirementsResult
	boolean.Analysis
	CompanyName string `json:"companyName,omitempty"`
	Industry    string `json:"industry,omitempty"`
}

type BooleanUsecase interface {
	ProcessJobRequirements(ctx context.Context, userID string, in ProcessRequirementsInput) (ProcessRequirementsResult, error)
	ProcessJobRequirementsV2(ctx context.Context, userID string, in ProcessRequirementsV2Input) (ProcessRequirementsV2Result, error)
	GenerateBooleanSearch(ctx context.Context, userID string, in BooleanSearchInput) (BooleanSearchResult, error)
}

type Boolean struct {
	catalog *prompts.Catalog
	llm     llm.Generator
	store   store.Store
	audit   *Recorder
	budget  int
	logger  *zap.Logger
	now     func() time.Time
}

func NewBooleanUsecase(catalog *prompts.Catalog, gen llm.Generator, s store.Store, audit *Recorder, log *zap.Logger) *Boolean {
	return &Boolean{
		catalog: catalog,
		llm:     gen,
		store:   s,
		audit:   audit,
		budget:  boolean.DefaultContextBudget,
		logger:  logger.OrNop(log),
		now:     time.Now,
	}
}

// booleanAnswer is what the booleanSearch prompt asks the model for.
type booleanAnswer struct {
	SearchString string
	Explanation  string
	Requirements boolean.Requirements
}

func (u *Boolean) ProcessJobRequirements(ctx context.Context, userID string, in ProcessRequirementsInput) (ProcessRequirementsResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return ProcessRequirementsResult{}, invalid("content is required")
	}

	if in.ProjectID != "" {
		if err := u.checkProject(ctx, userID, in.ProjectID); err != nil {
			return ProcessRequirementsResult{}, err
		}
	}

	merged, used := boolean.MergeContext(in.ContextItems, u.budget)
	parsed := boolean.ParseRequirements(content, in.ContextItems)

	res := ProcessRequirementsResult{ContextUsed: nonNil(used)}
	answer, ok := u.ask(ctx, "", content, merged)
	if ok {
		res.SearchString = answer.SearchString
		res.Requirements = fillRequirements(answer.Requirements, parsed)
		res.Source = SourceLLM
	} else {
		q, req := boolean.FromText(content, in.ContextItems)
		if !boolean.Valid(q) {
			return ProcessRequirementsResult{}, invalid("content has no searchable terms")
		}
		res.SearchString = q
		res.Requirements = req
		res.Source = SourceFallback
	}
	res.Requirements.Skills = nonNil(res.Requirements.Skills)

	if in.ProjectID != "" {
		u.saveProject(ctx, userID, in.ProjectID, content, res.SearchString)
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{
		UserID:   userID,
		Kind:     "processJobRequirements",
		Request:  map[string]any{"content": content, "searchType": in.SearchType, "contextUsed": res.ContextUsed, "projectId": in.ProjectID},
		Response: res,
	})
	return res, nil
}

// ProcessJobRequirementsV2 runs ProcessJobRequirements and adds the skills
// taxonomy, seniority signals and a sourcing strategy.
func (u *Boolean) ProcessJobRequirementsV2(ctx context.Context, userID string, in ProcessRequirementsV2Input) (ProcessRequirementsV2Result, error) {
	company, industry := strings.TrimSpace(in.CompanyName), strings.TrimSpace(in.Industry)
	items := in.ContextItems
	if company != "" {
		items = append(append([]boolean.ContextItem(nil), items...), boolean.ContextItem{Type: boolean.TypeNote, Title: "Hiring company", Content: company})
	}
	base, err := u.ProcessJobRequirements(ctx, userID, ProcessRequirementsInput{
		Content:      in.Content,
		SearchType:   "v2",
		ContextItems: items,
		ProjectID:    in.ProjectID,
	})
	if err != nil {
		return ProcessRequirementsV2Result{}, err
	}
	return ProcessRequirementsV2Result{
		ProcessRequirementsResult: base,
		Analysis:                  boolean.Analyze(base.Requirements, in.Content, company, industry),
		CompanyName:               company,
		Industry:                  industry,
	}, nil
}

func (u *Boolean) GenerateBooleanSearch(ctx context.Context, userID string, in BooleanSearchInput) (BooleanSearchResult, error) {
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return BooleanSearchResult{}, invalid("description is required")
	}
	title := strings.TrimSpace(in.JobTitle)

	merged, used := boolean.MergeContext(in.ContextItems, u.budget)
	res := BooleanSearchResult{ContextUsed: nonNil(used)}

	answer, ok := u.ask(ctx, title, desc, merged)
	if ok {
		res.SearchString = answer.SearchString
		res.Explanation = answer.Explanation
		res.Source = SourceLLM
	} else {
		text := desc
		if title != "" {
			text = title + ", " + desc
		}
		q, _ := boolean.FromText(text, in.ContextItems)
		if !boolean.Valid(q) {
			return BooleanSearchResult{}, invalid("description has no searchable terms")
		}
		res.SearchString = q
		res.Explanation = "Built from the job title, skills and location found in the description."
		res.Source = SourceFallback
	}

	u.audit.Record(ctx, store.CollectionSearchLogs, Entry{
		UserID:   userID,
		Kind:     "generateBooleanSearch",
		Request:  map[string]any{"description": desc, "jobTitle": title, "contextUsed": res.ContextUsed},
		Response: res,
	})
	return res, nil
}

// ask runs the booleanSearch prompt. ok is false whenever the model fails or
// its string does not survive sanitising; callers then use the fallback.
func (u *Boolean) ask(ctx context.Context, title, description, extra string) (booleanAnswer, bool) {
	if u.llm == nil || u.catalog == nil {
		return booleanAnswer{}, false
	}
	rendered, err := u.catalog.Render("booleanSearch", map[string]any{
		"jobTitle":    title,
		"description": description,
		"context":     extra,
	})
	if err != nil {
		u.logger.Error("render boolean prompt", zap.Error(err))
		return booleanAnswer{}, false
	}

	resp, err := u.llm.Generate(ctx, llm.Request{System: rendered.System, Prompt: rendered.Text, JSON: true})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			u.logger.Warn("boolean generation failed, using fallback", zap.Error(err))
		}
		return booleanAnswer{}, false
	}

	var answer booleanAnswer
	if obj, err := jsonclean.Object(resp.Text); err == nil {
		answer.SearchString = jsonclean.CoerceString(obj["searchString"])
		answer.Explanation = jsonclean.CoerceString(obj["explanation"])
		if req, ok := obj["requirements"].(map[string]any); ok {
			answer.Requirements = boolean.Requirements{
				Title:      jsonclean.CoerceString(req["title"]),
				Skills:     jsonclean.CoerceStrings(req["skills"]),
				Experience: jsonclean.CoerceString(req["experience"]),
				Location:   jsonclean.CoerceString(req["location"]),
			}
		}
	} else {
		// some answers are the bare string
		answer.SearchString = resp.Text
	}

	answer.SearchString = boolean.Sanitize(answer.SearchString)
	if !boolean.Valid(answer.SearchString) {
		u.logger.Info("model boolean rejected, using fallback",
			zap.String("raw", logger.TruncateForLog(resp.Text, 200)),
		)
		return booleanAnswer{}, false
	}
	return answer, true
}

func fillRequirements(got, parsed boolean.Requirements) boolean.Requirements {
	if strings.TrimSpace(got.Title) == "" {
		got.Title = parsed.Title
	}
	if len(got.Skills) == 0 {
		got.Skills = parsed.Skills
	}
	if strings.TrimSpace(got.Experience) == "" {
		got.Experience = parsed.Experience
	}
	if strings.TrimSpace(got.Location) == "" {
		got.Location = parsed.Location
	}
	return got
}

// checkProject refuses projects owned by someone else. Unknown ids are
// claimed by the caller on save.
func (u *Boolean) checkProject(ctx context.Context, userID, projectID string) error {
	doc, err := u.store.Get(ctx, store.CollectionProjects, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		u.logger.Warn("project lookup failed", zap.String("project_id", projectID), zap.Error(err))
		return nil
	}
	if owner := projectOwner(doc); owner != "" && owner != userID {
		return ErrForbidden
	}
	return nil
}

func (u *Boolean) saveProject(ctx context.Context, userID, projectID, description, searchString string) {
	err := u.store.Merge(ctx, store.CollectionProjects, projectID, map[string]any{
		"description":  description,
		"searchString": searchString,
		"owner_id":     userID,
		"updated_at":   u.now().UTC(),
	})
	if err != nil {
		u.logger.Warn("project update failed", zap.String("project_id", projectID), zap.Error(err))
	}
}

// projectOwner reads owner_id, falling back to the user_id field older
// project documents carry.
func projectOwner(doc store.Document) string {
	if owner := doc.String("owner_id"); owner != "" {
		return owner
	}
	return doc.String("user_id")
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
