package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/trafficlens/trafficlens/internal/capture"
	"github.com/trafficlens/trafficlens/internal/models"
)

func intPtr(v int) *int { return &v }

func cleanExchange() *models.Exchange {
	return &models.Exchange{
		ID:       1,
		Method:   "POST",
		URL:      "https://example.com/submit",
		Host:     "example.com",
		Path:     "/submit",
		Protocol: "https",
		ResponseHeaders: models.Headers{
			{Name: "Strict-Transport-Security", Value: "max-age=31536000"},
			{Name: "X-Content-Type-Options", Value: "nosniff"},
			{Name: "X-Frame-Options", Value: "DENY"},
			{Name: "Content-Encoding", Value: "gzip"},
		},
		ResponseStatus:  intPtr(200),
		DurationSeconds: 0.1,
	}
}

func securityMessages(result *models.AnalysisResult) []string {
	var msgs []string
	for _, f := range result.Vulnerabilities {
		msgs = append(msgs, f.Message)
	}
	return msgs
}

func hasMessageContaining(findings []models.Finding, substr string) bool {
	for _, f := range findings {
		if strings.Contains(f.Message, substr) {
			return true
		}
	}
	return false
}

func TestAnalyzeCleanExchange(t *testing.T) {
	result := Analyze(cleanExchange())

	if result.Score != 100 {
		t.Errorf("score = %d, want 100 (issues: %v)", result.Score, securityMessages(result))
	}
	if len(result.Vulnerabilities) != 0 {
		t.Errorf("vulnerabilities = %v, want none", securityMessages(result))
	}
	if !strings.Contains(result.Summary, "No security issues detected") {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestAnalyzeInsecureLoginRequest(t *testing.T) {
	e := &models.Exchange{
		ID:              2,
		Method:          "GET",
		URL:             "http://example.com/login?password=123",
		Host:            "example.com",
		Path:            "/login",
		Protocol:        "http",
		ResponseStatus:  intPtr(200),
		DurationSeconds: 0.05,
	}

	result := Analyze(e)

	// sensitive URL + 3 missing headers + insecure transport
	if len(result.Vulnerabilities) != 5 {
		t.Fatalf("got %d vulnerabilities, want 5: %v", len(result.Vulnerabilities), securityMessages(result))
	}
	if result.Score != 50 {
		t.Errorf("score = %d, want 50", result.Score)
	}
	if !hasMessageContaining(result.Vulnerabilities, "sensitive data in URL") {
		t.Error("missing sensitive-URL finding")
	}
	if !hasMessageContaining(result.Vulnerabilities, "insecure HTTP transport") {
		t.Error("missing insecure-transport finding")
	}
	for _, h := range []string{"Strict-Transport-Security", "X-Content-Type-Options", "X-Frame-Options"} {
		if !hasMessageContaining(result.Vulnerabilities, h) {
			t.Errorf("missing finding for absent %s header", h)
		}
	}
	if !strings.Contains(result.Summary, "Found 5 security issues") {
		t.Errorf("summary = %q", result.Summary)
	}
}

func TestScoreMonotonicInFindings(t *testing.T) {
	e := cleanExchange()
	base := Analyze(e).Score

	e.Protocol = "http"
	withHTTP := Analyze(e).Score
	if withHTTP >= base {
		t.Errorf("adding a finding did not lower the score: %d -> %d", base, withHTTP)
	}

	e.URL = "http://example.com/login?token=abc"
	withToken := Analyze(e).Score
	if withToken >= withHTTP {
		t.Errorf("adding another finding did not lower the score: %d -> %d", withHTTP, withToken)
	}
}

func TestAnalyzeHeavilyFlaggedExchange(t *testing.T) {
	e := &models.Exchange{
		Method:   "GET",
		URL:      "http://example.com/login?password=1&token=2&secret=3&api_key=4",
		Host:     "example.com",
		Path:     "/login",
		Protocol: "http",
		RequestHeaders: models.Headers{
			{Name: "Authorization", Value: "Basic dXNlcjpwYXNz"},
		},
		RequestBody:     models.Body{Text: "select * from users; <script>alert(1)</script>"},
		ResponseStatus:  intPtr(500),
		DurationSeconds: 0.1,
	}

	// 1 sensitive-url + 3 headers + transport + basic-auth + sql + xss = 8 findings
	result := Analyze(e)
	if len(result.Vulnerabilities) != 8 {
		t.Fatalf("got %d vulnerabilities, want 8: %v", len(result.Vulnerabilities), securityMessages(result))
	}
	if result.Score != 20 {
		t.Errorf("score = %d, want 20", result.Score)
	}
}

func TestBasicAuthRule(t *testing.T) {
	e := cleanExchange()
	e.RequestHeaders = models.Headers{{Name: "authorization", Value: "Basic dXNlcjpwYXNz"}}
	result := Analyze(e)
	if !hasMessageContaining(result.Vulnerabilities, "Basic authentication") {
		t.Error("missing basic-auth finding")
	}

	e.RequestHeaders = models.Headers{{Name: "Authorization", Value: "Bearer tok"}}
	result = Analyze(e)
	if hasMessageContaining(result.Vulnerabilities, "Basic authentication") {
		t.Error("Bearer auth flagged as Basic")
	}
}

func TestKeywordRulesSkipBinaryBodies(t *testing.T) {
	e := cleanExchange()
	// base64 of content containing "select": never keyword-scanned
	e.RequestBody = models.Body{Text: "c2VsZWN0ICogZnJvbSB1c2Vycw==", Encoding: models.BodyEncodingBase64}

	result := Analyze(e)
	if hasMessageContaining(result.Vulnerabilities, "SQL injection") {
		t.Error("base64 body was keyword-scanned")
	}
}

func TestSQLKeywordCaseInsensitive(t *testing.T) {
	e := cleanExchange()
	e.RequestBody = models.Body{Text: "UNION ALL SELECT NULL"}
	result := Analyze(e)
	if !hasMessageContaining(result.Vulnerabilities, "SQL injection") {
		t.Error("uppercase SQL keywords not detected")
	}
}

func TestPerformanceRules(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		want     string
	}{
		{"fast", 0.1, ""},
		{"slow", 2.5, "slow request"},
		{"very slow", 6.0, "very slow request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := cleanExchange()
			e.DurationSeconds = tt.duration
			result := Analyze(e)

			matched := hasMessageContaining(result.Recommendations, "slow request")
			if tt.want == "" && matched {
				t.Error("fast request flagged as slow")
			}
			if tt.want != "" && !hasMessageContaining(result.Recommendations, tt.want) {
				t.Errorf("missing %q recommendation", tt.want)
			}
		})
	}
}

func TestLargeResponseRule(t *testing.T) {
	e := cleanExchange()
	e.ResponseBody = models.Body{Text: fmt.Sprintf("[response too large: %d bytes]", 5<<20)}
	result := Analyze(e)
	if !hasMessageContaining(result.Recommendations, "large response") {
		t.Error("oversize placeholder not recognized")
	}

	e.ResponseBody = models.Body{Text: "small"}
	result = Analyze(e)
	if hasMessageContaining(result.Recommendations, "large response") {
		t.Error("small body flagged as large")
	}
}

func TestBestPracticeRules(t *testing.T) {
	e := cleanExchange()
	e.Method = "GET"
	e.Path = "/api/users"
	e.ResponseHeaders = models.Headers{
		{Name: "Strict-Transport-Security", Value: "max-age=31536000"},
		{Name: "X-Content-Type-Options", Value: "nosniff"},
		{Name: "X-Frame-Options", Value: "DENY"},
		{Name: "Access-Control-Allow-Origin", Value: "*"},
	}

	result := Analyze(e)

	for _, want := range []string{"cache headers", "not compressed", "version segment", "CORS"} {
		if !hasMessageContaining(result.Recommendations, want) {
			t.Errorf("missing %q recommendation", want)
		}
	}

	// best-practice findings never cost score
	if result.Score != 100 {
		t.Errorf("score = %d, want 100", result.Score)
	}
}

func TestVersionedAPIPathNotFlagged(t *testing.T) {
	e := cleanExchange()
	e.Path = "/api/v2/users"
	result := Analyze(e)
	if hasMessageContaining(result.Recommendations, "version segment") {
		t.Error("versioned API path flagged")
	}
}

func TestResponseBodySize(t *testing.T) {
	e := cleanExchange()
	e.ResponseBody = models.Body{Text: "abc"}
	if got := responseBodySize(e); got != 3 {
		t.Errorf("size = %d, want 3", got)
	}

	e.ResponseBody = models.Body{Text: "[response too large: 2097152 bytes]"}
	if got := responseBodySize(e); got != 2*capture.MaxBodyBytes {
		t.Errorf("size = %d, want %d", got, 2*capture.MaxBodyBytes)
	}
}

func TestLargeResponseRuleUsesRawLengthForBinary(t *testing.T) {
	// base64 text is a third longer than the raw payload; a sub-cap
	// binary body must not trip the size check on its encoded length.
	raw := make([]byte, capture.MaxBodyBytes-1024)
	e := cleanExchange()
	e.ResponseBody = capture.DecodeBodyCapped(raw)
	if e.ResponseBody.Encoding != models.BodyEncodingBase64 {
		t.Fatalf("encoding = %q, want base64", e.ResponseBody.Encoding)
	}
	if len(e.ResponseBody.Text) <= capture.MaxBodyBytes {
		t.Fatalf("encoded length %d should exceed the cap for this test", len(e.ResponseBody.Text))
	}

	result := Analyze(e)
	for _, f := range result.Recommendations {
		if strings.Contains(f.Message, "large response") {
			t.Errorf("sub-cap binary body flagged as large: %q", f.Message)
		}
	}
}
