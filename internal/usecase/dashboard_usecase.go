package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"apply-codes/internal/domain/email"
	"apply-codes/internal/logger"
	"apply-codes/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MetricPipeline      = "pipeline"
	MetricSourcing      = "sourcing"
	MetricResponseRates = "response_rates"
	MetricAll           = "all"
)

const legacyProjectScan = 1000

var dateRanges = map[string]time.Duration{
	"last_7_days":  7 * 24 * time.Hour,
	"last_30_days": 30 * 24 * time.Hour,
	"last_90_days": 90 * 24 * time.Hour,
	"ytd":          0,
	"all_time":     0,
}

type DashboardInput struct {
	MetricType string
	DateRange  string
	ProjectID  string
}

type DashboardResult struct {
	MetricType  string         `json:"metricType"`
	DateRange   string         `json:"dateRange"`
	Metrics     map[string]any `json:"metrics"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

type DashboardUsecase interface {
	Metrics(ctx context.Context, userID string, in DashboardInput) (DashboardResult, error)
}

type Dashboard struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewDashboardUsecase(s store.Store, log *zap.Logger) *Dashboard {
	return &Dashboard{store: s, logger: logger.OrNop(log), now: time.Now}
}

// counter is one named count the dashboard runs.
type counter struct {
	name       string
	collection string
	where      map[string]any
}

func (u *Dashboard) Metrics(ctx context.Context, userID string, in DashboardInput) (DashboardResult, error) {
	metric := strings.TrimSpace(in.MetricType)
	if metric == "" {
		metric = MetricAll
	}
	switch metric {
	case MetricPipeline, MetricSourcing, MetricResponseRates, MetricAll:
	default:
		return DashboardResult{}, invalid("metricType must be one of pipeline, sourcing, response_rates, all")
	}
	dateRange := strings.TrimSpace(in.DateRange)
	if dateRange == "" {
		dateRange = "last_30_days"
	}
	if _, ok := dateRanges[dateRange]; !ok {
		return DashboardResult{}, invalid("dateRange must be one of last_7_days, last_30_days, last_90_days, ytd, all_time")
	}

	now := u.now().UTC()
	since := rangeStart(dateRange, now)
	owner := map[string]any{"user_id": userID}

	var counters []counter
	if metric == MetricPipeline || metric == MetricAll {
		counters = append(counters,
			counter{"projects", store.CollectionProjects, map[string]any{"owner_id": userID}},
			counter{"candidateAnalyses", store.CollectionAnalysisLogs, with(owner, "kind", "analyzeCandidate")},
			counter{"resumesAnalyzed", store.CollectionAnalysisLogs, with(owner, "kind", "analyzeResume")},
			counter{"interviewsScheduled", store.CollectionMeetings, owner},
		)
	}
	if metric == MetricSourcing || metric == MetricAll {
		requirements := with(owner, "kind", "processJobRequirements")
		if id := strings.TrimSpace(in.ProjectID); id != "" {
			requirements["request"] = map[string]any{"projectId": id}
		}
		counters = append(counters,
			counter{"searches", store.CollectionSearchLogs, owner},
			counter{"booleanSearches", store.CollectionSearchLogs, with(owner, "kind", "generateBooleanSearch")},
			counter{"requirementsProcessed", store.CollectionSearchLogs, requirements},
			counter{"profilesEnriched", store.CollectionSearchLogs, with(owner, "kind", "enrichProfile")},
			counter{"webSearches", store.CollectionSearchLogs, with(owner, "kind", "googleSearch")},
		)
	}
	if metric == MetricResponseRates || metric == MetricAll {
		counters = append(counters, counter{"emailsTotal", store.CollectionEmailLogs, owner})
		for _, s := range []email.Status{email.StatusSent, email.StatusDelivered, email.StatusOpened, email.StatusClicked, email.StatusBounced, email.StatusFailed, email.StatusUnsubscribed} {
			counters = append(counters, counter{"emails_" + string(s), store.CollectionEmailLogs, with(owner, "status", string(s))})
		}
		counters = append(counters, counter{"campaigns", store.CollectionCampaigns, owner})
	}

	counts := make(map[string]int64, len(counters))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, c := range counters {
		g.Go(func() error {
			n, err := u.store.Count(gctx, c.collection, store.Query{Where: c.where, Since: since})
			if err != nil {
				return fmt.Errorf("count %s: %w", c.name, err)
			}
			mu.Lock()
			counts[c.name] = n
			mu.Unlock()
			return nil
		})
	}
	if metric == MetricPipeline || metric == MetricAll {
		g.Go(func() error {
			n, err := u.legacyProjects(gctx, userID, since)
			if err != nil {
				return fmt.Errorf("count legacy projects: %w", err)
			}
			mu.Lock()
			counts["legacyProjects"] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		u.logger.Error("dashboard counts failed", zap.Error(err))
		return DashboardResult{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	counts["projects"] += counts["legacyProjects"]

	metrics := map[string]any{}
	if metric == MetricPipeline || metric == MetricAll {
		metrics[MetricPipeline] = pick(counts, "projects", "candidateAnalyses", "resumesAnalyzed", "interviewsScheduled")
	}
	if metric == MetricSourcing || metric == MetricAll {
		metrics[MetricSourcing] = pick(counts, "searches", "booleanSearches", "requirementsProcessed", "profilesEnriched", "webSearches")
	}
	if metric == MetricResponseRates || metric == MetricAll {
		metrics[MetricResponseRates] = responseRates(counts)
	}

	if in.ProjectID != "" {
		metrics["projectId"] = in.ProjectID
	}
	return DashboardResult{MetricType: metric, DateRange: dateRange, Metrics: metrics, GeneratedAt: now}, nil
}

// legacyProjects counts project documents that name their owner only in
// user_id. Documents carrying owner_id are already counted.
func (u *Dashboard) legacyProjects(ctx context.Context, userID string, since time.Time) (int64, error) {
	docs, err := u.store.Find(ctx, store.CollectionProjects, store.Query{
		Where: map[string]any{"user_id": userID},
		Since: since,
		Limit: legacyProjectScan,
	})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, d := range docs {
		if d.String("owner_id") == "" {
			n++
		}
	}
	return n, nil
}

func rangeStart(dateRange string, now time.Time) time.Time {
	switch dateRange {
	case "all_time":
		return time.Time{}
	case "ytd":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return now.Add(-dateRanges[dateRange])
	}
}

func with(base map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[key] = value
	return out
}

func pick(counts map[string]int64, names ...string) map[string]int64 {
	out := make(map[string]int64, len(names))
	for _, n := range names {
		out[n] = counts[n]
	}
	return out
}

// responseRates treats a log's status as its furthest stage: a clicked
// email was also delivered and opened.
func responseRates(counts map[string]int64) map[string]any {
	delivered := counts["emails_delivered"] + counts["emails_opened"] + counts["emails_clicked"]
	opened := counts["emails_opened"] + counts["emails_clicked"]
	clicked := counts["emails_clicked"]
	attempted := counts["emailsTotal"] - counts["emails_failed"]
	return map[string]any{
		"emailsSent":      counts["emailsTotal"],
		"delivered":       delivered,
		"opened":          opened,
		"clicked":         clicked,
		"bounced":         counts["emails_bounced"],
		"failed":          counts["emails_failed"],
		"unsubscribed":    counts["emails_unsubscribed"],
		"campaigns":       counts["campaigns"],
		"deliveryRate":    rate(delivered, attempted),
		"openRate":        rate(opened, delivered),
		"clickRate":       rate(clicked, delivered),
		"bounceRate":      rate(counts["emails_bounced"], attempted),
		"unsubscribeRate": rate(counts["emails_unsubscribed"], delivered),
	}
}

// rate is a percentage with one decimal.
func rate(n, of int64) float64 {
	if of <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(of)*1000) / 10
}
