package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/trafficlens/trafficlens/internal/models"
)

const defaultListLimit = 1000

const exchangeColumns = `id, timestamp, method, url, host, path, protocol,
	request_headers, request_body, request_body_encoding,
	response_status, response_headers, response_body, response_body_encoding,
	duration, analyzed, notes`

// Insert atomically persists a fully formed exchange and returns its id.
// The write is durable before Insert returns.
func (s *Store) Insert(ctx context.Context, e *models.Exchange) (int64, error) {
	reqHeaders := encodeHeaders(e.RequestHeaders)
	respHeaders := encodeHeaders(e.ResponseHeaders)

	res, err := s.db.ExecContext(ctx, `INSERT INTO exchanges
		(timestamp, method, url, host, path, protocol,
		 request_headers, request_body, request_body_encoding,
		 response_status, response_headers, response_body, response_body_encoding,
		 duration, analyzed, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toUnixSeconds(e.Timestamp), e.Method, e.URL, e.Host, e.Path, e.Protocol,
		reqHeaders, e.RequestBody.Text, e.RequestBody.Encoding,
		e.ResponseStatus, respHeaders, e.ResponseBody.Text, e.ResponseBody.Encoding,
		e.DurationSeconds, boolToInt(e.Analyzed), e.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert exchange: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert exchange id: %w", err)
	}
	return id, nil
}

// Get retrieves one exchange by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*models.Exchange, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+exchangeColumns+" FROM exchanges WHERE id = ?", id)
	e, err := scanExchange(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exchange %d: %w", id, err)
	}
	return e, nil
}

// List returns exchanges matching the filter in the requested timestamp
// order. A non-positive limit falls back to a bounded default.
func (s *Store) List(ctx context.Context, f Filter, order Order, limit int) ([]models.Exchange, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	clause, args := f.clause()
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+exchangeColumns+" FROM exchanges "+clause+" "+order.sql()+" LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []models.Exchange
	for rows.Next() {
		e, err := scanExchange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, *e)
	}
	return exchanges, rows.Err()
}

// Count returns the number of exchanges matching the filter.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	clause, args := f.clause()
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM exchanges "+clause, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count exchanges: %w", err)
	}
	return count, nil
}

// Aggregate groups matching exchanges by method or host and returns the
// count per key, largest groups first.
func (s *Store) Aggregate(ctx context.Context, f Filter, groupBy string) ([]models.KeyCount, error) {
	if err := validateGroupBy(groupBy); err != nil {
		return nil, err
	}
	clause, args := f.clause()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+groupBy+", COUNT(*) AS count FROM exchanges "+clause+
			" GROUP BY "+groupBy+" ORDER BY count DESC, "+groupBy+" ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by %s: %w", groupBy, err)
	}
	defer rows.Close()

	var groups []models.KeyCount
	for rows.Next() {
		var g models.KeyCount
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Stats summarizes matching exchanges.
type Stats struct {
	Total         int     `json:"total"`
	UniqueHosts   int     `json:"unique_hosts"`
	AvgDurationMS float64 `json:"avg_response_time_ms"`
	MinDurationMS float64 `json:"min_response_time_ms"`
	MaxDurationMS float64 `json:"max_response_time_ms"`
	SlowCount     int     `json:"slow_requests"`
}

// Stats computes traffic statistics over matching exchanges in one query.
func (s *Store) Stats(ctx context.Context, f Filter) (*Stats, error) {
	clause, args := f.clause()

	var st Stats
	var avg, min, max sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COUNT(DISTINCT host),
		AVG(duration), MIN(duration), MAX(duration),
		COALESCE(SUM(CASE WHEN duration > 2 THEN 1 ELSE 0 END), 0)
		FROM exchanges `+clause, args...).
		Scan(&st.Total, &st.UniqueHosts, &avg, &min, &max, &st.SlowCount)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st.AvgDurationMS = avg.Float64 * 1000
	st.MinDurationMS = min.Float64 * 1000
	st.MaxDurationMS = max.Float64 * 1000
	return &st, nil
}

// MarkAnalyzed flags an exchange as analyzed.
func (s *Store) MarkAnalyzed(ctx context.Context, id int64) error {
	return s.updateOne(ctx, "UPDATE exchanges SET analyzed = 1 WHERE id = ?", id)
}

// SetNotes replaces the free-text notes of an exchange.
func (s *Store) SetNotes(ctx context.Context, id int64, text string) error {
	return s.updateOne(ctx, "UPDATE exchanges SET notes = ? WHERE id = ?", text, id)
}

func (s *Store) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update exchange: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update exchange: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll irreversibly removes every captured exchange.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM exchanges"); err != nil {
		return fmt.Errorf("delete exchanges: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExchange(row rowScanner) (*models.Exchange, error) {
	var e models.Exchange
	var ts float64
	var reqHeaders, respHeaders string
	var analyzed int

	err := row.Scan(&e.ID, &ts, &e.Method, &e.URL, &e.Host, &e.Path, &e.Protocol,
		&reqHeaders, &e.RequestBody.Text, &e.RequestBody.Encoding,
		&e.ResponseStatus, &respHeaders, &e.ResponseBody.Text, &e.ResponseBody.Encoding,
		&e.DurationSeconds, &analyzed, &e.Notes)
	if err != nil {
		return nil, err
	}

	e.Timestamp = fromUnixSeconds(ts)
	e.RequestHeaders = decodeHeaders(reqHeaders)
	e.ResponseHeaders = decodeHeaders(respHeaders)
	e.Analyzed = analyzed != 0
	return &e, nil
}

func encodeHeaders(h models.Headers) string {
	if len(h) == 0 {
		return "[]"
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// decodeHeaders parses stored header JSON. Malformed data decodes to an
// empty header list; an object form {name: value} is accepted so older
// captures stay readable.
func decodeHeaders(raw string) models.Headers {
	if raw == "" {
		return nil
	}
	var headers models.Headers
	if err := json.Unmarshal([]byte(raw), &headers); err == nil {
		return headers
	}
	var legacy map[string]string
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		// The object form lost the received order; sort by name so
		// reads are at least stable.
		names := make([]string, 0, len(legacy))
		for name := range legacy {
			names = append(names, name)
		}
		sort.Strings(names)
		headers = make(models.Headers, 0, len(legacy))
		for _, name := range names {
			headers = append(headers, models.Header{Name: name, Value: legacy[name]})
		}
		return headers
	}
	return nil
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(ts float64) time.Time {
	return time.Unix(0, int64(ts*1e9)).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
