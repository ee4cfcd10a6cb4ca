package analysis

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/trafficlens/trafficlens/internal/capture"
	"github.com/trafficlens/trafficlens/internal/models"
)

// rule is one independently evaluable check over an exchange. Every rule
// runs on every analysis pass; rule order only affects the printed list,
// never the outcome.
type rule struct {
	id    string
	apply func(e *models.Exchange) []models.Finding
}

var sensitiveURLKeywords = []string{"password", "token", "secret", "api_key", "apikey"}

var requiredSecurityHeaders = []struct {
	name string
	note string
}{
	{"Strict-Transport-Security", "missing Strict-Transport-Security header"},
	{"X-Content-Type-Options", "missing X-Content-Type-Options header"},
	{"X-Frame-Options", "missing X-Frame-Options header (clickjacking protection)"},
}

// Keyword heuristics with a deliberately high false-positive tolerance:
// flagging benign traffic is acceptable, missing an injection attempt is not.
var sqlKeywords = []string{"select", "insert", "update", "delete", "drop", "union"}
var xssMarkers = []string{"<script", "javascript:", "onerror=", "onload="}

var securityRules = []rule{
	{id: "sensitive-url", apply: func(e *models.Exchange) []models.Finding {
		lower := strings.ToLower(e.URL)
		for _, kw := range sensitiveURLKeywords {
			if strings.Contains(lower, kw) {
				return security(models.SeverityHigh,
					"sensitive data in URL (use a POST body instead)")
			}
		}
		return nil
	}},
	{id: "security-headers", apply: func(e *models.Exchange) []models.Finding {
		var findings []models.Finding
		for _, h := range requiredSecurityHeaders {
			if !e.ResponseHeaders.Has(h.name) {
				findings = append(findings, models.Finding{
					Category: models.CategorySecurity,
					Severity: models.SeverityMedium,
					Message:  h.note,
				})
			}
		}
		return findings
	}},
	{id: "insecure-transport", apply: func(e *models.Exchange) []models.Finding {
		if e.Protocol == "http" {
			return security(models.SeverityHigh, "insecure HTTP transport (use HTTPS)")
		}
		return nil
	}},
	{id: "basic-auth", apply: func(e *models.Exchange) []models.Finding {
		auth := e.RequestHeaders.Get("Authorization")
		if strings.HasPrefix(auth, "Basic ") {
			return security(models.SeverityMedium,
				"Basic authentication in use (consider OAuth or token auth)")
		}
		return nil
	}},
	{id: "sql-keywords", apply: func(e *models.Exchange) []models.Finding {
		body := textBody(e.RequestBody)
		if body == "" {
			return nil
		}
		lower := strings.ToLower(body)
		for _, kw := range sqlKeywords {
			if strings.Contains(lower, kw) {
				return security(models.SeverityHigh,
					"potential SQL injection pattern in request body")
			}
		}
		return nil
	}},
	{id: "xss-markers", apply: func(e *models.Exchange) []models.Finding {
		body := textBody(e.RequestBody)
		if body == "" {
			return nil
		}
		lower := strings.ToLower(body)
		for _, marker := range xssMarkers {
			if strings.Contains(lower, marker) {
				return security(models.SeverityHigh,
					"potential XSS payload in request body")
			}
		}
		return nil
	}},
}

var performanceRules = []rule{
	{id: "slow-request", apply: func(e *models.Exchange) []models.Finding {
		d := e.DurationSeconds
		switch {
		case d > 5:
			return performance(models.SeverityHigh,
				fmt.Sprintf("very slow request (%.2fs); investigate server performance", d))
		case d > 2:
			return performance(models.SeverityMedium,
				fmt.Sprintf("slow request (%.2fs); consider optimization", d))
		}
		return nil
	}},
	{id: "large-response", apply: func(e *models.Exchange) []models.Finding {
		size := responseBodySize(e)
		if size > capture.MaxBodyBytes {
			return performance(models.SeverityMedium,
				fmt.Sprintf("large response (%d bytes); consider pagination or compression", size))
		}
		return nil
	}},
}

var bestPracticeRules = []rule{
	{id: "cache-headers", apply: func(e *models.Exchange) []models.Finding {
		if e.Method == "GET" &&
			!e.ResponseHeaders.Has("Cache-Control") && !e.ResponseHeaders.Has("ETag") {
			return bestPractice(models.SeverityLow,
				"consider adding cache headers for GET requests")
		}
		return nil
	}},
	{id: "compression", apply: func(e *models.Exchange) []models.Finding {
		if !e.ResponseHeaders.Has("Content-Encoding") {
			return bestPractice(models.SeverityLow,
				"response is not compressed; enable gzip or brotli")
		}
		return nil
	}},
	{id: "api-versioning", apply: func(e *models.Exchange) []models.Finding {
		if strings.Contains(e.Path, "/api/") &&
			!strings.Contains(e.Path, "/v1/") &&
			!strings.Contains(e.Path, "/v2/") &&
			!strings.Contains(e.Path, "/v3/") {
			return bestPractice(models.SeverityLow,
				"API endpoint path has no version segment")
		}
		return nil
	}},
	{id: "permissive-cors", apply: func(e *models.Exchange) []models.Finding {
		if e.ResponseHeaders.Get("Access-Control-Allow-Origin") == "*" {
			return bestPractice(models.SeverityMedium,
				"CORS allows all origins; restrict to specific domains")
		}
		return nil
	}},
}

func security(severity, msg string) []models.Finding {
	return []models.Finding{{Category: models.CategorySecurity, Severity: severity, Message: msg}}
}

func performance(severity, msg string) []models.Finding {
	return []models.Finding{{Category: models.CategoryPerformance, Severity: severity, Message: msg}}
}

func bestPractice(severity, msg string) []models.Finding {
	return []models.Finding{{Category: models.CategoryBestPractice, Severity: severity, Message: msg}}
}

// textBody returns the body text for keyword scanning, or "" when the
// body is binary (base64-tagged content is never keyword-scanned).
func textBody(b models.Body) string {
	if b.Encoding != "" {
		return ""
	}
	return b.Text
}

// responseBodySize returns the raw body length: the original length
// recorded in an oversize placeholder, the decoded length for base64
// bodies, or the stored text length.
func responseBodySize(e *models.Exchange) int {
	var n int
	if _, err := fmt.Sscanf(e.ResponseBody.Text, "[response too large: %d bytes]", &n); err == nil {
		return n
	}
	if e.ResponseBody.Encoding == models.BodyEncodingBase64 {
		return base64.StdEncoding.DecodedLen(len(e.ResponseBody.Text))
	}
	return len(e.ResponseBody.Text)
}
