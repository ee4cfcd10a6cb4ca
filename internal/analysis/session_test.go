package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/trafficlens/trafficlens/internal/models"
)

func TestAnalyzeSessionEmpty(t *testing.T) {
	en, _ := newTestEngine(t)

	report, err := en.AnalyzeSession(context.Background(), 0)
	if err != nil {
		t.Fatalf("AnalyzeSession failed: %v", err)
	}
	if report.TotalExchanges != 0 {
		t.Errorf("total = %d, want 0", report.TotalExchanges)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("recommendations = %v, want none", report.Recommendations)
	}
}

func TestAnalyzeSession(t *testing.T) {
	en, st := newTestEngine(t)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	exchanges := []*models.Exchange{
		{Method: "GET", URL: "https://a.example.com/", Host: "a.example.com", Path: "/", Protocol: "https",
			ResponseStatus: intPtr(200), DurationSeconds: 0.2},
		{Method: "GET", URL: "https://a.example.com/x", Host: "a.example.com", Path: "/x", Protocol: "https",
			ResponseStatus: intPtr(200), DurationSeconds: 0.4},
		{Method: "POST", URL: "http://b.example.com/form", Host: "b.example.com", Path: "/form", Protocol: "http",
			ResponseStatus: intPtr(500), DurationSeconds: 3.0},
	}
	for i, e := range exchanges {
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		insertExchange(t, st, e)
	}

	report, err := en.AnalyzeSession(context.Background(), 0)
	if err != nil {
		t.Fatalf("AnalyzeSession failed: %v", err)
	}

	if report.TotalExchanges != 3 {
		t.Errorf("total = %d, want 3", report.TotalExchanges)
	}
	if report.UniqueHosts != 2 {
		t.Errorf("unique hosts = %d, want 2", report.UniqueHosts)
	}
	if report.Methods["GET"] != 2 || report.Methods["POST"] != 1 {
		t.Errorf("methods = %v", report.Methods)
	}
	if report.StatusCodes["200"] != 2 || report.StatusCodes["500"] != 1 {
		t.Errorf("status codes = %v", report.StatusCodes)
	}
	if report.SecurityIssues != 1 {
		t.Errorf("security issues = %d, want 1 (the http exchange)", report.SecurityIssues)
	}

	wantAvg := (0.2 + 0.4 + 3.0) / 3 * 1000
	if diff := report.AvgDurationMS - wantAvg; diff > 0.001 || diff < -0.001 {
		t.Errorf("avg duration = %v, want %v", report.AvgDurationMS, wantAvg)
	}

	if len(report.TopHosts) != 2 {
		t.Fatalf("top hosts = %+v", report.TopHosts)
	}
	if report.TopHosts[0].Host != "a.example.com" || report.TopHosts[0].Count != 2 {
		t.Errorf("top host = %+v, want a.example.com x2", report.TopHosts[0])
	}

	// http usage, 1/3 failures (>10%), and one slow exchange
	if len(report.Recommendations) != 3 {
		t.Errorf("recommendations = %v, want 3", report.Recommendations)
	}
}

func TestAnalyzeSessionRespectsLimit(t *testing.T) {
	en, st := newTestEngine(t)
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		insertExchange(t, st, &models.Exchange{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Method:    "GET", URL: "https://example.com/", Host: "example.com",
			Path: "/", Protocol: "https",
			ResponseStatus: intPtr(200), DurationSeconds: 0.1,
		})
	}

	report, err := en.AnalyzeSession(context.Background(), 2)
	if err != nil {
		t.Fatalf("AnalyzeSession failed: %v", err)
	}
	if report.TotalExchanges != 2 {
		t.Errorf("total = %d, want windowed 2", report.TotalExchanges)
	}
}

func TestTopHostsRanking(t *testing.T) {
	counts := map[string]int{"a": 3, "b": 3, "c": 1}
	firstSeen := map[string]int{"b": 0, "a": 1, "c": 2}

	got := topHosts(counts, firstSeen, 2)
	if len(got) != 2 {
		t.Fatalf("got %d hosts, want 2", len(got))
	}
	// ties rank by first appearance
	if got[0].Host != "b" || got[1].Host != "a" {
		t.Errorf("ranking = %+v", got)
	}
}

func TestAnalyzeSessionSkipsUnreadable(t *testing.T) {
	en, st := newTestEngine(t)

	insertExchange(t, st, &models.Exchange{
		Method: "", URL: "", Host: "", Path: "", Protocol: "",
		DurationSeconds: 0,
	})
	insertExchange(t, st, &models.Exchange{
		Method: "GET", URL: "https://example.com/", Host: "example.com",
		Path: "/", Protocol: "https",
		ResponseStatus: intPtr(200), DurationSeconds: 0.1,
	})

	report, err := en.AnalyzeSession(context.Background(), 0)
	if err != nil {
		t.Fatalf("AnalyzeSession failed: %v", err)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if report.TotalExchanges != 1 {
		t.Errorf("total = %d, want 1", report.TotalExchanges)
	}
}
