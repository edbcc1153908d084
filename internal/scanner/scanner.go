// Package scanner implements the keyword lexicon used to triage customer
// communications before any paid analysis runs.
package scanner

import "strings"

// Severity is an ordinal risk level: low < medium < high < critical
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordinal position of the severity; unknown values rank as low
func (s Severity) Rank() int {
	return severityRank[s]
}

// Max returns the more severe of s and other
func (s Severity) Max(other Severity) Severity {
	if other.Rank() > s.Rank() {
		return other
	}
	return s
}

// Match is a single keyword hit
type Match struct {
	Keyword  string   `json:"keyword"`
	Family   Family   `json:"family"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
}

// ScanResult holds every match found in a piece of text plus the aggregate severity
type ScanResult struct {
	ChurnSignals      []string `json:"churn_signals"`
	PositiveSignals   []string `json:"positive_signals"`
	ActionSignals     []string `json:"action_signals"`
	ComplianceSignals []string `json:"compliance_signals"`
	KeywordSeverity   Severity `json:"keyword_severity"`
	Matches           []Match  `json:"matches"`
}

// HasMatches reports whether any keyword matched
func (r ScanResult) HasMatches() bool {
	return len(r.Matches) > 0
}

// Scan matches text case-insensitively against the lexicon. It never fails.
func Scan(text string) ScanResult {
	content := strings.ToLower(text)
	result := ScanResult{
		ChurnSignals:      []string{},
		PositiveSignals:   []string{},
		ActionSignals:     []string{},
		ComplianceSignals: []string{},
		KeywordSeverity:   SeverityLow,
		Matches:           []Match{},
	}

	result.ChurnSignals = scanFamily(content, FamilyChurn, churnLexicon, "", &result)
	// Positive matches are tracked for scoring but never escalate risk.
	result.PositiveSignals = scanFamily(content, FamilyPositive, positiveLexicon, SeverityLow, &result)
	result.ActionSignals = scanFamily(content, FamilyAction, actionLexicon, SeverityMedium, &result)
	result.ComplianceSignals = scanFamily(content, FamilyCompliance, complianceLexicon, SeverityHigh, &result)

	return result
}

// scanFamily records matches for one family. An empty fixed severity means the
// category name is the severity, which is how the churn family is organized.
func scanFamily(content string, family Family, lexicon []category, fixed Severity, result *ScanResult) []string {
	found := []string{}
	for _, cat := range lexicon {
		severity := fixed
		if severity == "" {
			severity = Severity(cat.name)
		}
		for _, keyword := range cat.keywords {
			if !strings.Contains(content, keyword) {
				continue
			}
			result.Matches = append(result.Matches, Match{
				Keyword:  keyword,
				Family:   family,
				Category: cat.name,
				Severity: severity,
			})
			found = append(found, keyword)
			result.KeywordSeverity = result.KeywordSeverity.Max(severity)
		}
	}
	return found
}

// ShouldDeepAnalyze decides whether a communication justifies a call to the
// text analyzer: high or critical severity, three or more churn/positive/action
// matches, or any compliance match.
func ShouldDeepAnalyze(result ScanResult) bool {
	if result.KeywordSeverity == SeverityHigh || result.KeywordSeverity == SeverityCritical {
		return true
	}

	total := len(result.ChurnSignals) + len(result.PositiveSignals) + len(result.ActionSignals)
	if total >= 3 {
		return true
	}

	return len(result.ComplianceSignals) > 0
}
