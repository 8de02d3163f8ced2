package boolean

import (
	"regexp"
	"strings"
)

// Requirements is what a free-text role description boils down to.
type Requirements struct {
	Title      string   `json:"title"`
	Skills     []string `json:"skills"`
	Experience string   `json:"experience"`
	Location   string   `json:"location"`
	Exclude    []string `json:"-"`
}

var (
	experienceRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:\+|-\s*\d{1,2}|to\s+\d{1,2})?\s*\+?\s*(?:years?|yrs?)\b`)
	fillerRe     = regexp.MustCompile(`(?i)^(?:we(?:'re| are)?\s+)?(?:hiring|looking for|seeking|searching for|need|find(?: me)?)\s+(?:an?\s+|the\s+)?`)
	locationRe   = regexp.MustCompile(`(?:^|[\s,(])(?i:based in|located in|in|à|basé à|bei)\s+(\p{Lu}[\p{L}.'-]*(?:\s+\p{Lu}[\p{L}.'-]*)*(?:,\s*\p{Lu}[\p{L}.'-]*)?)`)
	remoteRe     = regexp.MustCompile(`(?i)\b(?:fully\s+)?remote\b`)
	titleCutRe   = regexp.MustCompile(`(?i)\s+(with|having|who|that|based|located|in|at|for|à|avec|bei|mit)\s+`)
	tailCutRe    = regexp.MustCompile(`(?i)\s+(?:in|at|for|based|located|who|that|à|bei)\s+`)
	andSplitRe   = regexp.MustCompile(`(?i)\s+(?:and|&)\s+|\s*/\s*`)
)

var titleKeywords = []string{
	"engineer", "developer", "programmer", "architect", "manager", "designer",
	"scientist", "analyst", "recruiter", "lead", "director", "administrator",
	"consultant", "specialist", "devops", "sre", "head of", "vp", "cto",
	"officer", "coordinator", "executive", "accountant", "nurse", "sales",
	"développeur", "developpeur", "ingénieur", "ingenieur", "desarrollador",
	"ingeniero", "entwickler", "sviluppatore", "chef de projet",
}

// ParseRequirements extracts title, skills, experience and location from
// text. Structured context items (location, skills, experience,
// excludeCompanies) take precedence over what is found in the text.
func ParseRequirements(text string, items []ContextItem) Requirements {
	var req Requirements
	text = strings.TrimSpace(text)

	if m := experienceRe.FindString(text); m != "" {
		req.Experience = strings.Join(strings.Fields(m), " ")
	}
	req.Location = findLocation(text)

	for _, seg := range splitList(text) {
		seg = fillerRe.ReplaceAllString(strings.TrimRight(seg, ".!"), "")
		if seg == "" {
			continue
		}
		if req.Title == "" && hasTitleKeyword(seg) {
			title, tail := cutTitle(seg)
			req.Title = title
			for _, s := range andSplitRe.Split(tail, -1) {
				req.addSkill(s)
			}
			continue
		}
		if experienceRe.MatchString(seg) || overlaps(seg, req.Location) {
			continue
		}
		for _, s := range andSplitRe.Split(seg, -1) {
			req.addSkill(s)
		}
	}

	for _, it := range items {
		switch it.Kind() {
		case TypeLocation:
			if v := it.Text(); v != "" {
				req.Location = v
			}
		case TypeSkills:
			for _, s := range it.List() {
				req.addSkill(s)
			}
		case TypeExperience:
			if v := it.Text(); v != "" {
				if m := experienceRe.FindString(v); m != "" {
					v = m
				}
				req.Experience = v
			}
		case TypeExcludeCompanies:
			req.Exclude = appendUnique(req.Exclude, it.List()...)
		}
	}

	if req.Skills == nil {
		req.Skills = []string{}
	}
	return req
}

func hasTitleKeyword(seg string) bool {
	lower := " " + strings.ToLower(seg) + " "
	for _, kw := range titleKeywords {
		if strings.Contains(lower, " "+kw+" ") || strings.Contains(lower, " "+kw+"s ") {
			return true
		}
	}
	return false
}

// words after which "in X" names a skill area rather than a place
var notLocationBefore = map[string]bool{
	"experience": true, "experienced": true, "skilled": true, "expert": true,
	"expertise": true, "proficient": true, "proficiency": true, "knowledge": true,
	"background": true, "degree": true, "skills": true, "fluent": true,
}

func findLocation(text string) string {
	for _, m := range locationRe.FindAllStringSubmatchIndex(text, -1) {
		before := strings.Fields(strings.ToLower(text[:m[0]]))
		if len(before) > 0 && notLocationBefore[strings.Trim(before[len(before)-1], ",.")] {
			continue
		}
		return strings.TrimSpace(text[m[2]:m[3]])
	}
	if remoteRe.MatchString(text) {
		return "Remote"
	}
	return ""
}

// cutTitle splits "Senior Go Engineer with Kubernetes and AWS in Berlin"
// into the title and the skills named after "with".
func cutTitle(seg string) (string, string) {
	title, tail := seg, ""
	if m := titleCutRe.FindStringSubmatchIndex(seg); m != nil {
		title = seg[:m[0]]
		switch strings.ToLower(seg[m[2]:m[3]]) {
		case "with", "having", "avec", "mit":
			tail = seg[m[1]:]
			if loc := tailCutRe.FindStringIndex(tail); loc != nil {
				tail = tail[:loc[0]]
			}
		}
	}
	words := strings.Fields(title)
	if len(words) > 6 {
		words = words[len(words)-6:]
	}
	return strings.Join(words, " "), tail
}

// addSkill keeps short segments only; long ones are prose, not skills.
func (r *Requirements) addSkill(s string) {
	s = strings.Trim(strings.TrimSpace(s), ".:!()\"'")
	if s == "" || len(strings.Fields(s)) > 3 || experienceRe.MatchString(s) || remoteRe.MatchString(s) {
		return
	}
	if overlaps(s, r.Location) {
		return
	}
	r.Skills = appendUnique(r.Skills, s)
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		dup := false
		for _, have := range dst {
			if strings.EqualFold(have, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, b = strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(a, b) || strings.Contains(b, a)
}
