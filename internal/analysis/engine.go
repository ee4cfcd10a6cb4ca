// Package analysis runs deterministic rule-based scoring over captured
// exchanges. Findings are re-derived on every call, never cached.
package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trafficlens/trafficlens/internal/logging"
	"github.com/trafficlens/trafficlens/internal/models"
	"github.com/trafficlens/trafficlens/internal/store"
)

// securityPenalty is subtracted from the starting score of 100 for each
// security finding. A simple linear penalty, not a weighted model: scores
// stay comparable across exchanges and monotonic in the finding count.
const securityPenalty = 10

// highRiskThreshold marks exchanges worth surfacing in a security sweep.
const highRiskThreshold = 70

// topHostsLimit caps the per-host ranking in session reports.
const topHostsLimit = 10

// Engine evaluates exchanges fetched from the store.
type Engine struct {
	store  *store.Store
	logger *zap.Logger
}

// NewEngine creates an analysis engine over the given store.
func NewEngine(st *store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: st, logger: logger}
}

// AnalyzeExchange fetches one exchange, runs the full rule set over it,
// and marks it analyzed. Returns store.ErrNotFound for a missing id.
func (en *Engine) AnalyzeExchange(ctx context.Context, id int64) (*models.AnalysisResult, error) {
	e, err := en.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := Analyze(e)

	if err := en.store.MarkAnalyzed(ctx, id); err != nil {
		en.logger.Warn("mark analyzed failed", logging.ExchangeID(id), zap.Error(err))
	}
	return result, nil
}

// Analyze runs every rule over one exchange. Pure: no store access, no
// state between calls, deterministic for a given exchange.
func Analyze(e *models.Exchange) *models.AnalysisResult {
	var vulnerabilities []models.Finding
	var recommendations []models.Finding

	for _, r := range securityRules {
		vulnerabilities = append(vulnerabilities, r.apply(e)...)
	}
	for _, r := range performanceRules {
		recommendations = append(recommendations, r.apply(e)...)
	}
	for _, r := range bestPracticeRules {
		recommendations = append(recommendations, r.apply(e)...)
	}

	score := 100 - securityPenalty*len(vulnerabilities)
	if score < 0 {
		score = 0
	}

	return &models.AnalysisResult{
		ExchangeID:      e.ID,
		Score:           score,
		Vulnerabilities: vulnerabilities,
		Recommendations: recommendations,
		Summary:         summarize(e, len(vulnerabilities), len(recommendations)),
		Insights:        insights(e),
	}
}

func summarize(e *models.Exchange, vulnCount, recCount int) string {
	s := fmt.Sprintf("%s request to %s ", e.Method, e.URL)

	if e.ResponseStatus != nil {
		status := *e.ResponseStatus
		switch e.StatusClass() {
		case 2:
			s += fmt.Sprintf("succeeded (%d) ", status)
		case 3:
			s += fmt.Sprintf("redirected (%d) ", status)
		case 4:
			s += fmt.Sprintf("failed with client error (%d) ", status)
		default:
			s += fmt.Sprintf("failed with server error (%d) ", status)
		}
	}

	s += fmt.Sprintf("in %.0fms. ", e.DurationSeconds*1000)

	if vulnCount > 0 {
		s += fmt.Sprintf("Found %d security issues. ", vulnCount)
	} else {
		s += "No security issues detected. "
	}
	if recCount > 0 {
		s += fmt.Sprintf("%d optimization suggestions available.", recCount)
	}
	return s
}

func insights(e *models.Exchange) map[string]any {
	var status any
	if e.ResponseStatus != nil {
		status = *e.ResponseStatus
	}
	return map[string]any{
		"method":             e.Method,
		"status_code":        status,
		"duration_ms":        e.DurationSeconds * 1000,
		"has_auth":           e.RequestHeaders.Has("Authorization"),
		"content_type":       e.RequestHeaders.Get("Content-Type"),
		"request_body_bytes": len(e.RequestBody.Text),
	}
}

// HighRiskExchange is one low-scoring exchange surfaced by a security sweep.
type HighRiskExchange struct {
	ExchangeID int64            `json:"exchange_id"`
	Score      int              `json:"score"`
	Issues     []models.Finding `json:"issues"`
}

// ScanReport aggregates a security sweep over a window of exchanges.
type ScanReport struct {
	Scanned      int                `json:"scanned"`
	Skipped      int                `json:"skipped"`
	TotalIssues  int                `json:"total_issues"`
	UniqueIssues []string           `json:"unique_issues"`
	HighRisk     []HighRiskExchange `json:"high_risk_exchanges"`
}

// SecurityScan analyzes the most recent exchanges and reports every
// security finding plus the exchanges scoring below the risk threshold.
// A failure on one exchange is counted and skipped, never fatal.
func (en *Engine) SecurityScan(ctx context.Context, limit int) (*ScanReport, error) {
	exchanges, err := en.store.List(ctx, store.Filter{}, store.OrderDesc, limit)
	if err != nil {
		return nil, err
	}

	report := &ScanReport{}
	seen := make(map[string]bool)

	for i := range exchanges {
		e := &exchanges[i]
		if e.Method == "" && e.URL == "" {
			report.Skipped++
			en.logger.Warn("skipping unreadable exchange", logging.ExchangeID(e.ID))
			continue
		}
		report.Scanned++

		result := Analyze(e)
		report.TotalIssues += len(result.Vulnerabilities)
		for _, f := range result.Vulnerabilities {
			if !seen[f.Message] {
				seen[f.Message] = true
				report.UniqueIssues = append(report.UniqueIssues, f.Message)
			}
		}
		if result.Score < highRiskThreshold {
			report.HighRisk = append(report.HighRisk, HighRiskExchange{
				ExchangeID: e.ID,
				Score:      result.Score,
				Issues:     result.Vulnerabilities,
			})
		}
	}
	return report, nil
}
