// Package models defines the core entity types shared across components.
package models

import (
	"strings"
	"time"
)

// BodyEncodingBase64 marks a body that could not be decoded as UTF-8 text
// and is stored base64-encoded instead.
const BodyEncodingBase64 = "base64"

// Body is the tagged result of decoding a captured payload. An empty
// Encoding means Text holds the payload as UTF-8 text (possibly with
// invalid sequences replaced); BodyEncodingBase64 means Text holds the
// base64 encoding of raw binary content.
type Body struct {
	Text     string `json:"text"`
	Encoding string `json:"encoding,omitempty"`
}

// IsEmpty reports whether the body carries no content.
func (b Body) IsEmpty() bool { return b.Text == "" }

// Header is one request or response header as received, name case preserved.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered header list. Order and key case are preserved
// exactly as captured.
type Headers []Header

// Get returns the value of the first header matching name
// case-insensitively, or "".
func (h Headers) Get(name string) string {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return hdr.Value
		}
	}
	return ""
}

// Has reports whether a header with the given name is present,
// matched case-insensitively.
func (h Headers) Has(name string) bool {
	for _, hdr := range h {
		if strings.EqualFold(hdr.Name, name) {
			return true
		}
	}
	return false
}

// Exchange is one persisted request/response pair with timing and metadata.
// Captured payload fields are immutable once stored; only Analyzed and
// Notes may change afterwards.
type Exchange struct {
	ID              int64     `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Method          string    `json:"method"`
	URL             string    `json:"url"`
	Host            string    `json:"host"`
	Path            string    `json:"path"`
	Protocol        string    `json:"protocol"`
	RequestHeaders  Headers   `json:"headers"`
	RequestBody     Body      `json:"body"`
	ResponseStatus  *int      `json:"response_status"`
	ResponseHeaders Headers   `json:"response_headers"`
	ResponseBody    Body      `json:"response_body"`
	DurationSeconds float64   `json:"duration"`
	Analyzed        bool      `json:"analyzed"`
	Notes           string    `json:"notes,omitempty"`
}

// StatusClass returns the response status family (2 for 2xx and so on),
// or 0 when no response status was recorded.
func (e *Exchange) StatusClass() int {
	if e.ResponseStatus == nil {
		return 0
	}
	return *e.ResponseStatus / 100
}

// Finding categories.
const (
	CategorySecurity     = "security"
	CategoryPerformance  = "performance"
	CategoryBestPractice = "best-practice"
)

// Finding severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Finding is one analysis observation about an exchange. Findings are
// derived on demand and never persisted.
type Finding struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// AnalysisResult is the full per-exchange analysis output.
type AnalysisResult struct {
	ExchangeID      int64          `json:"exchange_id"`
	Score           int            `json:"security_score"`
	Vulnerabilities []Finding      `json:"vulnerabilities"`
	Recommendations []Finding      `json:"recommendations"`
	Summary         string         `json:"summary"`
	Insights        map[string]any `json:"insights"`
}

// HostCount pairs a host with its exchange count.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// KeyCount pairs a group-by key (host, method) with its exchange count.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// SessionReport is the aggregate analysis of a window of recent exchanges.
type SessionReport struct {
	TotalExchanges  int            `json:"total_exchanges"`
	AvgDurationMS   float64        `json:"avg_response_time_ms"`
	UniqueHosts     int            `json:"unique_hosts"`
	SecurityIssues  int            `json:"security_issues_found"`
	Skipped         int            `json:"skipped"`
	Methods         map[string]int `json:"methods"`
	StatusCodes     map[string]int `json:"status_codes"`
	TopHosts        []HostCount    `json:"top_hosts"`
	Recommendations []string       `json:"recommendations"`
}
