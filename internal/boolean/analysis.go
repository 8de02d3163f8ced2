package boolean

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"apply-codes/internal/search"
)

// Skill categories used by the taxonomy.
const (
	CategoryLanguages  = "languages"
	CategoryFrameworks = "frameworks"
	CategoryCloud      = "cloud"
	CategoryData       = "data"
	CategoryML         = "ml"
	CategoryOther      = "other"
)

var skillCategories = map[string]string{
	"go": CategoryLanguages, "golang": CategoryLanguages, "python": CategoryLanguages,
	"java": CategoryLanguages, "javascript": CategoryLanguages, "js": CategoryLanguages,
	"typescript": CategoryLanguages, "ts": CategoryLanguages, "rust": CategoryLanguages,
	"c++": CategoryLanguages, "c#": CategoryLanguages, "ruby": CategoryLanguages,
	"php": CategoryLanguages, "kotlin": CategoryLanguages, "swift": CategoryLanguages,
	"scala": CategoryLanguages, "elixir": CategoryLanguages,

	"react": CategoryFrameworks, "angular": CategoryFrameworks, "vue": CategoryFrameworks,
	"django": CategoryFrameworks, "flask": CategoryFrameworks, "spring": CategoryFrameworks,
	"rails": CategoryFrameworks, "node.js": CategoryFrameworks, "node": CategoryFrameworks,
	".net": CategoryFrameworks, "next.js": CategoryFrameworks, "fastapi": CategoryFrameworks,
	"tokio": CategoryFrameworks,

	"aws": CategoryCloud, "gcp": CategoryCloud, "azure": CategoryCloud,
	"kubernetes": CategoryCloud, "k8s": CategoryCloud, "docker": CategoryCloud,
	"terraform": CategoryCloud, "helm": CategoryCloud, "linux": CategoryCloud,

	"sql": CategoryData, "postgresql": CategoryData, "postgres": CategoryData,
	"mysql": CategoryData, "mongodb": CategoryData, "redis": CategoryData,
	"kafka": CategoryData, "spark": CategoryData, "snowflake": CategoryData,
	"airflow": CategoryData, "dbt": CategoryData, "bigquery": CategoryData,

	"machine learning": CategoryML, "ml": CategoryML, "pytorch": CategoryML,
	"tensorflow": CategoryML, "llm": CategoryML, "nlp": CategoryML,
	"computer vision": CategoryML, "deep learning": CategoryML,
}

// seniorityLevels is checked in order; the first level with a hit wins.
var seniorityLevels = []struct {
	level string
	re    *regexp.Regexp
}{
	{"executive", regexp.MustCompile(`(?i)\b(director|head of|vp|vice president|cto|chief)\b`)},
	{"staff", regexp.MustCompile(`(?i)\b(principal|staff|distinguished)\b`)},
	{"lead", regexp.MustCompile(`(?i)\b(lead|team lead|tech lead|manager)\b`)},
	{"senior", regexp.MustCompile(`(?i)\b(senior|sr\.?)\b`)},
	{"mid", regexp.MustCompile(`(?i)\b(mid|intermediate)\b`)},
	{"junior", regexp.MustCompile(`(?i)\b(junior|jr\.?|entry[- ]level|graduate)\b`)},
	{"intern", regexp.MustCompile(`(?i)\b(intern|internship|trainee)\b`)},
}

var yearsRe = regexp.MustCompile(`\d{1,2}`)

type Components struct {
	Titles   []string   `json:"titles"`
	Skills   [][]string `json:"skills"`
	Location string     `json:"location,omitempty"`
	Exclude  []string   `json:"exclude"`
}

// Analysis is the structured read of a posting that goes beyond the
// requirements themselves.
type Analysis struct {
	SkillsTaxonomy      map[string][]string `json:"skillsTaxonomy"`
	Seniority           string              `json:"seniority"`
	SeniorityIndicators []string            `json:"seniorityIndicators"`
	SearchStrategy      []string            `json:"searchStrategy"`
	BooleanComponents   Components          `json:"booleanComponents"`
}

// Analyze classifies skills, reads the seniority signals in text and
// suggests how to source for req. company and industry only shape the
// strategy notes.
func Analyze(req Requirements, text, company, industry string) Analysis {
	a := Analysis{
		SkillsTaxonomy:      map[string][]string{},
		SeniorityIndicators: []string{},
	}
	for _, s := range req.Skills {
		cat := CategorizeSkill(s)
		a.SkillsTaxonomy[cat] = append(a.SkillsTaxonomy[cat], s)
	}

	a.Seniority, a.SeniorityIndicators = seniority(req.Title+"\n"+text, req.Experience)
	a.BooleanComponents = components(req)
	a.SearchStrategy = strategy(req, a, company, industry)
	return a
}

// CategorizeSkill maps a skill to one of the taxonomy categories.
func CategorizeSkill(skill string) string {
	if cat, ok := skillCategories[search.NormalizeQuery(skill)]; ok {
		return cat
	}
	return CategoryOther
}

func seniority(text, experience string) (string, []string) {
	level := ""
	indicators := []string{}
	for _, l := range seniorityLevels {
		for _, m := range l.re.FindAllString(text, -1) {
			indicators = appendUnique(indicators, strings.ToLower(m))
			if level == "" {
				level = l.level
			}
		}
	}
	if experience != "" {
		indicators = appendUnique(indicators, experience)
	}
	if level != "" {
		return level, indicators
	}

	years := 0
	if m := yearsRe.FindString(experience); m != "" {
		years, _ = strconv.Atoi(m)
	}
	switch {
	case experience == "":
		return "unspecified", indicators
	case years < 2:
		return "junior", indicators
	case years < 5:
		return "mid", indicators
	default:
		return "senior", indicators
	}
}

func components(req Requirements) Components {
	c := Components{Titles: []string{}, Skills: [][]string{}, Exclude: nonNilList(req.Exclude)}
	if t := strings.TrimSpace(req.Title); t != "" {
		c.Titles = search.ProcessQuery(t).Variants
		if len(c.Titles) > maxTitleVariants {
			c.Titles = c.Titles[:maxTitleVariants]
		}
	}
	for _, s := range req.Skills {
		if alts := search.Alternatives(s); len(alts) > 0 {
			c.Skills = append(c.Skills, alts)
		}
	}
	c.Location = strings.TrimSpace(req.Location)
	return c
}

func strategy(req Requirements, a Analysis, company, industry string) []string {
	var out []string
	if len(a.BooleanComponents.Titles) > 0 {
		out = append(out, "OR the title variants: "+strings.Join(a.BooleanComponents.Titles, ", ")+".")
	} else {
		out = append(out, "No job title was found; add one before searching profiles.")
	}

	cats := make([]string, 0, len(a.SkillsTaxonomy))
	for c := range a.SkillsTaxonomy {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	switch {
	case len(req.Skills) == 0:
		out = append(out, "No skills were found; search on title and location first.")
	case len(req.Skills) > 3:
		out = append(out, "Require the first three skills and keep the rest for ranking ("+strings.Join(cats, ", ")+").")
	default:
		out = append(out, "Require every listed skill with its synonyms.")
	}

	switch loc := strings.TrimSpace(req.Location); {
	case loc == "":
		out = append(out, "No location given; add one or expect a broad result set.")
	case strings.EqualFold(loc, "remote"):
		out = append(out, "Remote role: widen to the time zones the team can work with.")
	default:
		out = append(out, "Filter on "+loc+" and nearby cities.")
	}

	if company = strings.TrimSpace(company); company != "" {
		line := "Exclude current " + company + " employees"
		if industry = strings.TrimSpace(industry); industry != "" {
			line += " and target peers in " + industry
		}
		out = append(out, line+".")
	} else if industry = strings.TrimSpace(industry); industry != "" {
		out = append(out, "Target companies in "+industry+".")
	}
	return out
}

func nonNilList(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
