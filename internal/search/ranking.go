package search

import (
	"net/url"
	"sort"
	"strings"
)

// Result is one web search hit as returned to the frontend.
type Result struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink,omitempty"`
}

type ResultScore struct {
	Link          string
	Relevance     float64
	SourceQuality float64
	DataQuality   float64
	FinalScore    float64
}

// SourceWeights rates hosts by how useful a hit is for sourcing candidates.
var SourceWeights = map[string]float64{
	"linkedin.com":      4,
	"github.com":        3,
	"stackoverflow.com": 2,
	"gitlab.com":        2,
	"medium.com":        1,
	"unknown":           1,
}

func ComputeRelevance(r Result, queryVariants []string) float64 {
	if len(queryVariants) == 0 {
		return 0
	}

	title := strings.ToLower(r.Title)
	snippet := strings.ToLower(r.Snippet)

	score := 0.0
	for _, v := range queryVariants {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if title != "" && strings.Contains(title, v) {
			score += 3
		}
		if snippet != "" && strings.Contains(snippet, v) {
			score += 1
		}
		if score >= 10 {
			return 10
		}
	}
	return score
}

// ComputeSourceQuality weights a hit by host; LinkedIn profile pages
// score above other LinkedIn pages.
func ComputeSourceQuality(link string) float64 {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return SourceWeights["unknown"]
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for domain, w := range SourceWeights {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			if domain == "linkedin.com" && strings.HasPrefix(u.Path, "/in/") {
				return w + 1
			}
			return w
		}
	}
	return SourceWeights["unknown"]
}

func ComputeDataQuality(r Result) float64 {
	score := 0.0
	if strings.TrimSpace(r.Title) != "" {
		score += 1
	}
	if strings.TrimSpace(r.Link) != "" {
		score += 1
	}
	if len(strings.TrimSpace(r.Snippet)) > 80 {
		score += 1
	}
	return score
}

func ScoreResult(r Result, queryVariants []string) ResultScore {
	rel := ComputeRelevance(r, queryVariants)
	src := ComputeSourceQuality(r.Link)
	qual := ComputeDataQuality(r)

	return ResultScore{
		Link:          r.Link,
		Relevance:     rel,
		SourceQuality: src,
		DataQuality:   qual,
		FinalScore:    (rel * 2.0) + (src * 1.0) + (qual * 0.5),
	}
}

// RankResults orders results by score, keeping the vendor order for ties.
// Without any relevance signal the input is returned unchanged.
func RankResults(results []Result, queryVariants []string) []Result {
	if len(results) == 0 {
		return results
	}

	maxRel := 0.0
	scored := make([]struct {
		idx   int
		score float64
	}, len(results))

	for i := range results {
		s := ScoreResult(results[i], queryVariants)
		scored[i].idx = i
		scored[i].score = s.FinalScore
		if s.Relevance > maxRel {
			maxRel = s.Relevance
		}
	}

	if maxRel == 0 {
		return results
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	out := make([]Result, 0, len(results))
	for _, it := range scored {
		out = append(out, results[it.idx])
	}
	return out
}
