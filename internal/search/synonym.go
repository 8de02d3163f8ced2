package search

// Synonyms maps a normalized recruiting term to equivalent terms a sourcer
// would OR together. Keys and values are lower-case.
var Synonyms = map[string][]string{
	"engineer":           {"developer", "programmer"},
	"developer":          {"engineer", "programmer"},
	"software engineer":  {"software developer", "swe"},
	"software developer": {"software engineer", "swe"},
	"go":                 {"golang"},
	"golang":             {"go"},
	"k8s":                {"kubernetes"},
	"kubernetes":         {"k8s"},
	"js":                 {"javascript"},
	"javascript":         {"js", "ecmascript"},
	"ts":                 {"typescript"},
	"typescript":         {"ts"},
	"react":              {"reactjs", "react.js"},
	"node":               {"nodejs", "node.js"},
	"nodejs":             {"node.js", "node"},
	"frontend":           {"front end", "front-end", "ui engineer"},
	"front end":          {"frontend", "front-end"},
	"backend":            {"back end", "back-end", "server side"},
	"back end":           {"backend", "back-end"},
	"full stack":         {"fullstack", "full-stack"},
	"fullstack":          {"full stack", "full-stack"},
	"devops":             {"sre", "site reliability", "platform engineer"},
	"sre":                {"site reliability", "devops"},
	"ml":                 {"machine learning"},
	"machine learning":   {"ml", "ai"},
	"aws":                {"amazon web services"},
	"gcp":                {"google cloud"},
	"postgres":           {"postgresql"},
	"postgresql":         {"postgres"},
	"qa":                 {"quality assurance", "test engineer"},
	"pm":                 {"product manager"},
	"product manager":    {"product owner", "pm"},
	"recruiter":          {"talent acquisition", "sourcer"},
	"designer":           {"ux designer", "ui designer", "product designer"},
	"data scientist":     {"data science", "ml engineer"},
	"c#":                 {"csharp", ".net"},
	"c++":                {"cpp"},
}

// GetSynonyms returns a copy of the synonym list for an exact term.
func GetSynonyms(term string) []string {
	if term == "" {
		return []string{}
	}
	if v, ok := Synonyms[term]; ok {
		out := make([]string, 0, len(v))
		out = append(out, v...)
		return out
	}
	return []string{}
}
