package models

// AnalysisRequest is the payload sent to the AI analysis backend.
type AnalysisRequest struct {
	Message      string            `json:"message"`
	AnalysisType string            `json:"analysisType"`
	Context      map[string]string `json:"context,omitempty"`
}

// Analysis type names accepted by the backend.
const (
	AnalysisSEO         = "seo_analysis"
	AnalysisContent     = "content_generation"
	AnalysisAttribution = "attribution_report"
)

// UsageTypeForAnalysis maps an analysis type to the metered feature it spends.
func UsageTypeForAnalysis(analysisType string) (UsageType, bool) {
	switch analysisType {
	case AnalysisSEO:
		return UsageKeywordsAnalyzed, true
	case AnalysisContent:
		return UsageContentGenerated, true
	case AnalysisAttribution:
		return UsageAttributionQueries, true
	}
	return "", false
}

// SEOAnalysis is the structured result embedded in a seo_analysis response.
type SEOAnalysis struct {
	Opportunities   []string `json:"opportunities"`
	TechnicalIssues []string `json:"technicalIssues"`
	ContentGaps     []string `json:"contentGaps"`
	QuickWins       []string `json:"quickWins"`
	Summary         string   `json:"summary"`
}

// AnalysisResult carries the raw backend text plus whatever structured data
// could be extracted from it. Fields holds the decoded embedded JSON object;
// SEO is populated only for seo_analysis responses.
type AnalysisResult struct {
	Text   string                 `json:"text"`
	Fields map[string]interface{} `json:"fields,omitempty"`
	SEO    *SEOAnalysis           `json:"seo,omitempty"`
}
