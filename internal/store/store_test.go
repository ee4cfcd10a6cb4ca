package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/trafficlens/trafficlens/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func intPtr(v int) *int { return &v }

func testExchange(host string, status int) *models.Exchange {
	return &models.Exchange{
		Timestamp: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		Method:    "GET",
		URL:       "https://" + host + "/index.html",
		Host:      host,
		Path:      "/index.html",
		Protocol:  "https",
		RequestHeaders: models.Headers{
			{Name: "Accept", Value: "text/html"},
			{Name: "User-Agent", Value: "test-client/1.0"},
		},
		ResponseStatus: intPtr(status),
		ResponseHeaders: models.Headers{
			{Name: "Content-Type", Value: "text/html"},
		},
		ResponseBody:    models.Body{Text: "<html></html>"},
		DurationSeconds: 0.125,
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestMigrationsApplied(t *testing.T) {
	st := openTestStore(t)

	tables := []string{"schema_migrations", "exchanges"}
	for _, table := range tables {
		var name string
		err := st.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := st.Insert(context.Background(), testExchange("example.com", 200)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	_ = st.Close()

	st, err = Open(dbPath)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	count, err := st.Count(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count after reopen = %d, want 1", count)
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	in := testExchange("example.com", 200)
	in.RequestBody = models.Body{Text: "field=value"}
	in.Notes = "manual capture"

	id, err := st.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Insert returned zero id")
	}

	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Method != "GET" || got.URL != "https://example.com/index.html" {
		t.Errorf("request line mismatch: %s %s", got.Method, got.URL)
	}
	if got.Host != "example.com" || got.Path != "/index.html" || got.Protocol != "https" {
		t.Errorf("url parts mismatch: %s %s %s", got.Host, got.Path, got.Protocol)
	}
	if !got.Timestamp.Equal(in.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, in.Timestamp)
	}
	if got.ResponseStatus == nil || *got.ResponseStatus != 200 {
		t.Errorf("response status = %v, want 200", got.ResponseStatus)
	}
	if got.DurationSeconds != 0.125 {
		t.Errorf("duration = %v, want 0.125", got.DurationSeconds)
	}
	if got.RequestBody.Text != "field=value" || got.RequestBody.Encoding != "" {
		t.Errorf("request body = %+v", got.RequestBody)
	}
	if got.ResponseBody.Text != "<html></html>" {
		t.Errorf("response body = %+v", got.ResponseBody)
	}
	if got.Notes != "manual capture" {
		t.Errorf("notes = %q", got.Notes)
	}
	if got.Analyzed {
		t.Error("new exchange should not be analyzed")
	}
}

func TestHeadersPreserveOrderAndCase(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	in := testExchange("example.com", 200)
	in.ResponseHeaders = models.Headers{
		{Name: "X-Custom-First", Value: "1"},
		{Name: "content-type", Value: "application/json"},
		{Name: "X-Custom-Last", Value: "2"},
	}

	id, err := st.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if len(got.ResponseHeaders) != 3 {
		t.Fatalf("got %d headers, want 3", len(got.ResponseHeaders))
	}
	for i, want := range in.ResponseHeaders {
		if got.ResponseHeaders[i] != want {
			t.Errorf("header %d = %+v, want %+v", i, got.ResponseHeaders[i], want)
		}
	}
	if v := got.ResponseHeaders.Get("Content-Type"); v != "application/json" {
		t.Errorf("case-insensitive Get = %q", v)
	}
}

func TestDecodeHeadersLegacyObjectForm(t *testing.T) {
	raw := `{"X-Zulu":"z","Accept":"text/html","Content-Type":"text/plain"}`

	want := models.Headers{
		{Name: "Accept", Value: "text/html"},
		{Name: "Content-Type", Value: "text/plain"},
		{Name: "X-Zulu", Value: "z"},
	}
	for i := 0; i < 10; i++ {
		got := decodeHeaders(raw)
		if len(got) != len(want) {
			t.Fatalf("got %d headers, want %d", len(got), len(want))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("header %d = %+v, want %+v (name-sorted)", j, got[j], want[j])
			}
		}
	}
}

func TestBinaryBodyRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	in := testExchange("example.com", 200)
	in.ResponseBody = models.Body{Text: "iVBORw0KGgo=", Encoding: models.BodyEncodingBase64}

	id, err := st.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ResponseBody.Encoding != models.BodyEncodingBase64 {
		t.Errorf("encoding = %q, want base64", got.ResponseBody.Encoding)
	}
	if got.ResponseBody.Text != "iVBORw0KGgo=" {
		t.Errorf("body text = %q", got.ResponseBody.Text)
	}
}

func TestGetNotFound(t *testing.T) {
	st := openTestStore(t)

	if _, err := st.Get(context.Background(), 9999); err != ErrNotFound {
		t.Errorf("Get missing id: err = %v, want ErrNotFound", err)
	}
}

func TestListOrdering(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := testExchange("example.com", 200)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		e.Path = "/page"
		if _, err := st.Insert(ctx, e); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	desc, err := st.List(ctx, Filter{}, OrderDesc, 0)
	if err != nil {
		t.Fatalf("List desc failed: %v", err)
	}
	if len(desc) != 3 {
		t.Fatalf("got %d exchanges, want 3", len(desc))
	}
	for i := 1; i < len(desc); i++ {
		if desc[i].Timestamp.After(desc[i-1].Timestamp) {
			t.Errorf("desc list not newest-first at index %d", i)
		}
	}

	asc, err := st.List(ctx, Filter{}, OrderAsc, 0)
	if err != nil {
		t.Fatalf("List asc failed: %v", err)
	}
	for i := 1; i < len(asc); i++ {
		if asc[i].Timestamp.Before(asc[i-1].Timestamp) {
			t.Errorf("asc list not oldest-first at index %d", i)
		}
	}
}

func TestListTieBreakByInsertionOrder(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		e := testExchange("example.com", 200)
		e.Timestamp = ts
		id, err := st.Insert(ctx, e)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		ids = append(ids, id)
	}

	desc, err := st.List(ctx, Filter{}, OrderDesc, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if desc[0].ID != ids[2] || desc[2].ID != ids[0] {
		t.Errorf("equal timestamps not tie-broken by id: got %d,%d,%d", desc[0].ID, desc[1].ID, desc[2].ID)
	}
}

func TestListLimit(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := st.Insert(ctx, testExchange("example.com", 200)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := st.List(ctx, Filter{}, OrderDesc, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d exchanges, want 2", len(got))
	}
}

func TestListFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	a := testExchange("api.example.com", 200)
	a.Method = "POST"
	a.RequestBody = models.Body{Text: `{"user":"alice"}`}
	b := testExchange("cdn.example.com", 404)
	c := testExchange("other.net", 200)

	for _, e := range []*models.Exchange{a, b, c} {
		if _, err := st.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 3},
		{"host substring", Filter{Host: "example.com"}, 2},
		{"method", Filter{Method: "POST"}, 1},
		{"status", Filter{Status: intPtr(404)}, 1},
		{"search body", Filter{Search: "alice"}, 1},
		{"search url", Filter{Search: "other.net"}, 1},
		{"combined", Filter{Host: "example.com", Status: intPtr(200)}, 1},
		{"target domain", Filter{TargetDomain: "example.com"}, 2},
		{"host and target domain", Filter{Host: "api", TargetDomain: "example.com"}, 1},
		{"target domain excludes host match", Filter{Host: "other", TargetDomain: "example.com"}, 0},
		{"no match", Filter{Host: "missing.example"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.List(ctx, tt.filter, OrderDesc, 0)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d exchanges, want %d", len(got), tt.want)
			}

			count, err := st.Count(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Count failed: %v", err)
			}
			if count != tt.want {
				t.Errorf("Count = %d, want %d", count, tt.want)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := st.Insert(ctx, testExchange("busy.example.com", 200)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if _, err := st.Insert(ctx, testExchange("quiet.example.com", 200)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	groups, err := st.Aggregate(ctx, Filter{}, GroupByHost)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Key != "busy.example.com" || groups[0].Count != 3 {
		t.Errorf("top group = %+v, want busy.example.com x3", groups[0])
	}

	byMethod, err := st.Aggregate(ctx, Filter{}, GroupByMethod)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(byMethod) != 1 || byMethod[0].Key != "GET" || byMethod[0].Count != 4 {
		t.Errorf("method groups = %+v, want GET x4", byMethod)
	}

	if _, err := st.Aggregate(ctx, Filter{}, "notes"); err == nil {
		t.Error("Aggregate accepted invalid group-by column")
	}
}

func TestStats(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	durations := []float64{0.1, 0.5, 3.0}
	for _, d := range durations {
		e := testExchange("example.com", 200)
		e.DurationSeconds = d
		if _, err := st.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	stats, err := st.Stats(ctx, Filter{})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.UniqueHosts != 1 {
		t.Errorf("unique hosts = %d, want 1", stats.UniqueHosts)
	}
	if stats.SlowCount != 1 {
		t.Errorf("slow count = %d, want 1", stats.SlowCount)
	}
	if stats.MinDurationMS != 100 || stats.MaxDurationMS != 3000 {
		t.Errorf("min/max = %v/%v, want 100/3000", stats.MinDurationMS, stats.MaxDurationMS)
	}
	wantAvg := (0.1 + 0.5 + 3.0) / 3 * 1000
	if diff := stats.AvgDurationMS - wantAvg; diff > 0.001 || diff < -0.001 {
		t.Errorf("avg = %v, want %v", stats.AvgDurationMS, wantAvg)
	}
}

func TestStatsEmpty(t *testing.T) {
	st := openTestStore(t)

	stats, err := st.Stats(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 0 || stats.AvgDurationMS != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestMarkAnalyzed(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.Insert(ctx, testExchange("example.com", 200))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := st.MarkAnalyzed(ctx, id); err != nil {
		t.Fatalf("MarkAnalyzed failed: %v", err)
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Analyzed {
		t.Error("exchange not marked analyzed")
	}

	if err := st.MarkAnalyzed(ctx, 9999); err != ErrNotFound {
		t.Errorf("MarkAnalyzed missing id: err = %v, want ErrNotFound", err)
	}
}

func TestSetNotes(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.Insert(ctx, testExchange("example.com", 200))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := st.SetNotes(ctx, id, "interesting"); err != nil {
		t.Fatalf("SetNotes failed: %v", err)
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Notes != "interesting" {
		t.Errorf("notes = %q, want %q", got.Notes, "interesting")
	}

	if err := st.SetNotes(ctx, 9999, "x"); err != ErrNotFound {
		t.Errorf("SetNotes missing id: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAll(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := st.Insert(ctx, testExchange("example.com", 200)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := st.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	count, err := st.Count(ctx, Filter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count after DeleteAll = %d, want 0", count)
	}

	// store stays usable after a purge
	if _, err := st.Insert(ctx, testExchange("example.com", 200)); err != nil {
		t.Errorf("Insert after DeleteAll failed: %v", err)
	}
}
