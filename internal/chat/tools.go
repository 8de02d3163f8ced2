package chat

import "sort"

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

type Tool struct {
	Name                 string `json:"name"`
	Route                string `json:"route"`
	Description          string `json:"description"`
	Category             string `json:"category"`
	RiskLevel            string `json:"risk_level"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
}

var tools = []Tool{
	{"generate_boolean_search", "/generateBooleanSearch", "Build a Boolean sourcing string from a job description", "search", RiskLow, false},
	{"process_job_requirements", "/processJobRequirements", "Extract requirements and a Boolean string from a job posting", "search", RiskLow, false},
	{"process_job_requirements_v2", "/processJobRequirementsV2", "Extract requirements with a skills taxonomy, seniority and sourcing strategy", "search", RiskLow, false},
	{"explain_boolean_search", "/explainBoolean", "Explain a Boolean search string in plain language", "search", RiskLow, false},
	{"perplexity_search", "/perplexitySearch", "Research a question on the web with cited sources", "search", RiskLow, false},
	{"google_search", "/googleSearch", "Run a web search for profiles and pages", "search", RiskLow, false},
	{"linkedin_search", "/linkedinSearch", "Find public LinkedIn profiles by keywords, title, company and location", "search", RiskLow, false},
	{"search_contacts", "/searchContacts", "Search people by query or filters", "search", RiskLow, false},
	{"get_contact_info", "/getContactInfo", "Look up contact details for a person", "search", RiskMedium, false},
	{"search_location", "/locationSearch", "Resolve a place name to coordinates", "search", RiskLow, false},

	{"enrich_profile", "/enrichProfile", "Enrich a person from email, LinkedIn URL or name and company", "profile", RiskMedium, false},
	{"pdl_search", "/pdlSearch", "Search the People Data Labs person index", "profile", RiskLow, false},
	{"clearbit_enrichment", "/clearbitEnrichment", "Enrich a person or company with Clearbit", "profile", RiskLow, false},
	{"hunter_io_search", "/hunterIoSearch", "Find email addresses for a domain", "profile", RiskMedium, false},
	{"github_profile", "/githubProfile", "Fetch a GitHub profile with repositories and languages", "profile", RiskLow, false},
	{"analyze_candidate", "/analyzeCandidate", "Evaluate a candidate against job requirements", "profile", RiskLow, false},

	{"generate_content", "/generateContent", "Write recruiting copy from a prompt", "content", RiskLow, false},
	{"generate_job_description", "/generateJobDescription", "Draft a job description", "content", RiskLow, false},
	{"enhance_job_description", "/enhanceJobDescription", "Improve an existing job description", "content", RiskLow, false},
	{"summarize_job", "/summarizeJob", "Summarise a job posting", "content", RiskLow, false},
	{"create_linkedin_post", "/createLinkedinPost", "Write a LinkedIn post", "content", RiskLow, false},
	{"extract_nlp_terms", "/extractNlpTerms", "Extract skills, titles and companies from text", "content", RiskLow, false},
	{"generate_linkedin_analysis", "/generateLinkedinAnalysis", "Analyse a LinkedIn profile for sourcing", "content", RiskLow, false},

	{"analyze_resume", "/analyzeResume", "Parse and score a resume", "documents", RiskLow, false},
	{"firecrawl_url", "/firecrawlUrl", "Scrape a web page into text", "documents", RiskLow, false},
	{"parse_document", "/parseDocument", "Split a document into sections, tables and plain text", "documents", RiskLow, false},
	{"process_text_extraction", "/processTextExtraction", "Extract full text, tables, a summary or key points from a document", "documents", RiskLow, false},

	{"generate_email_templates", "/generateEmailTemplates", "Draft outreach email templates", "email", RiskLow, false},
	{"send_email", "/sendEmail", "Send a single email", "email", RiskHigh, true},
	{"send_outreach_email", "/sendOutreachEmail", "Send a templated outreach email to a candidate", "email", RiskHigh, true},
	{"send_campaign_email", "/sendCampaignEmail", "Send an email campaign to a recipient list", "email", RiskHigh, true},

	{"generate_interview_questions", "/generateInterviewQuestions", "Generate interview questions for a role", "interview", RiskLow, false},
	{"prepare_interview", "/prepareInterview", "Prepare an interview brief", "interview", RiskLow, false},
	{"create_daily_room", "/createDailyRoom", "Create a video interview room", "meeting", RiskMedium, false},
	{"schedule_interview", "/scheduleInterview", "Schedule an interview and email the invitation", "interview", RiskHigh, true},

	{"analyze_compensation", "/analyzeCompensation", "Estimate a compensation range", "analytics", RiskLow, false},
	{"generate_dashboard_metrics", "/generateDashboardMetrics", "Compute pipeline and outreach metrics", "analytics", RiskLow, false},
	{"generate_clarvida_report", "/generateClarvidaReport", "Produce a structured hiring report", "analytics", RiskLow, false},
}

// Tools returns the catalogue sorted by category then name.
func Tools() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Lookup finds a tool by name.
func Lookup(name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

type CapabilityGroup struct {
	Category string   `json:"category"`
	Tools    []string `json:"tools"`
}

type Capabilities struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Capabilities []CapabilityGroup `json:"capabilities"`
	Models       map[string]string `json:"models"`
	ToolCount    int               `json:"tool_count"`
}

func Describe(m Models) Capabilities {
	return Capabilities{
		Name:        "Apply-Codes AI Assistant",
		Description: "Recruiting assistant for sourcing, outreach, interviews and analytics",
		Capabilities: []CapabilityGroup{
			{"Candidate Sourcing", []string{"Boolean search generation", "Web search", "LinkedIn search", "Profile enrichment", "Contact finding"}},
			{"Job Analysis", []string{"Requirements extraction", "Job description enhancement", "Compensation analysis", "NLP term extraction"}},
			{"Outreach", []string{"Email template generation", "Personalized outreach", "Campaign management", "LinkedIn posts"}},
			{"Interview", []string{"Question generation", "Scheduling", "Video rooms", "Preparation guides"}},
			{"Documents", []string{"Resume analysis", "Document parsing", "Text extraction", "Web scraping"}},
			{"Analytics", []string{"Dashboard metrics", "Assessment reports", "Market research"}},
		},
		Models:    map[string]string{"simple": m.For(Simple), "complex": m.For(Complex)},
		ToolCount: len(tools),
	}
}
