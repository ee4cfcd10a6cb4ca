// Package server implements the query and export HTTP API.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/trafficlens/trafficlens/internal/analysis"
	"github.com/trafficlens/trafficlens/internal/api"
	"github.com/trafficlens/trafficlens/internal/export"
	"github.com/trafficlens/trafficlens/internal/models"
	"github.com/trafficlens/trafficlens/internal/store"
)

const defaultLimit = 100
const defaultSessionLimit = 100

// APIServer serves filtered views, analysis, and exports over the store.
type APIServer struct {
	Store  *store.Store
	Engine *analysis.Engine
	Logger *zap.Logger
}

// Handler returns the HTTP handler for the API server.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/exchanges", s.handleListExchanges)
	mux.HandleFunc("GET /v1/exchanges/{id}", s.handleGetExchange)
	mux.HandleFunc("DELETE /v1/exchanges", s.handleDeleteExchanges)
	mux.HandleFunc("POST /v1/analysis/exchanges/{id}", s.handleAnalyzeExchange)
	mux.HandleFunc("POST /v1/analysis/session", s.handleAnalyzeSession)
	mux.HandleFunc("POST /v1/analysis/security", s.handleSecurityScan)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/query/hosts", s.handleQueryHosts)
	mux.HandleFunc("GET /v1/query/methods", s.handleQueryMethods)
	mux.HandleFunc("GET /v1/export.json", s.handleExportJSON)
	mux.HandleFunc("GET /v1/export.har", s.handleExportHAR)
	return mux
}

// parseFilter builds the store filter from query parameters. Invalid
// parameter values are a validation error, not a silent default.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		Host:         q.Get("host"),
		TargetDomain: q.Get("target"),
		Method:       q.Get("method"),
		Search:       q.Get("search"),
	}
	if v := q.Get("status"); v != "" {
		status, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("invalid status parameter")
		}
		f.Status = &status
	}
	if v := q.Get("analyzed"); v != "" {
		analyzed, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("invalid analyzed parameter")
		}
		f.Analyzed = &analyzed
	}
	return f, nil
}

func parseLimit(r *http.Request, fallback int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		return 0, errors.New("invalid limit parameter")
	}
	return limit, nil
}

func parseOrder(r *http.Request, fallback store.Order) (store.Order, error) {
	switch r.URL.Query().Get("order") {
	case "":
		return fallback, nil
	case "asc":
		return store.OrderAsc, nil
	case "desc":
		return store.OrderDesc, nil
	default:
		return fallback, errors.New("invalid order parameter (want asc or desc)")
	}
}

func (s *APIServer) handleListExchanges(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	limit, err := parseLimit(r, defaultLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	order, err := parseOrder(r, store.OrderDesc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	exchanges, err := s.Store.List(r.Context(), f, order, limit)
	if err != nil {
		s.Logger.Error("list exchanges failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}

	resp := api.ListExchangesResponse{
		Count:     len(exchanges),
		Exchanges: make([]api.ExchangeSummary, 0, len(exchanges)),
	}
	for i := range exchanges {
		resp.Exchanges = append(resp.Exchanges, summarize(&exchanges[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func summarize(e *models.Exchange) api.ExchangeSummary {
	return api.ExchangeSummary{
		ID:             e.ID,
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		Method:         e.Method,
		URL:            e.URL,
		Host:           e.Host,
		Path:           e.Path,
		Protocol:       e.Protocol,
		ResponseStatus: e.ResponseStatus,
		Duration:       e.DurationSeconds,
		Analyzed:       e.Analyzed,
	}
}

func (s *APIServer) handleGetExchange(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid exchange id"})
		return
	}

	e, err := s.Store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "exchange not found"})
		return
	}
	if err != nil {
		s.Logger.Error("get exchange failed", zap.Int64("exchange_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *APIServer) handleAnalyzeExchange(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid exchange id"})
		return
	}

	result, err := s.Engine.AnalyzeExchange(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "exchange not found"})
		return
	}
	if err != nil {
		s.Logger.Error("analyze exchange failed", zap.Int64("exchange_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "analysis error"})
		return
	}
	writeJSON(w, http.StatusOK, api.AnalysisResponse{ExchangeID: id, Analysis: result})
}

func (s *APIServer) handleAnalyzeSession(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.decodeSessionLimit(w, r)
	if !ok {
		return
	}
	report, err := s.Engine.AnalyzeSession(r.Context(), limit)
	if err != nil {
		s.Logger.Error("session analysis failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "analysis error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *APIServer) handleSecurityScan(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.decodeSessionLimit(w, r)
	if !ok {
		return
	}
	report, err := s.Engine.SecurityScan(r.Context(), limit)
	if err != nil {
		s.Logger.Error("security scan failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "analysis error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// decodeSessionLimit reads an optional {limit} JSON body. It reports
// false after writing the error response itself.
func (s *APIServer) decodeSessionLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := defaultSessionLimit
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		dec := json.NewDecoder(r.Body)
		var req api.SessionRequest
		if err := dec.Decode(&req); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid JSON"})
			return 0, false
		}
		if req.Limit < 0 {
			writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: "invalid limit"})
			return 0, false
		}
		if req.Limit > 0 {
			limit = req.Limit
		}
	}
	return limit, true
}

func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	stats, err := s.Store.Stats(r.Context(), f)
	if err != nil {
		s.Logger.Error("stats failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *APIServer) handleQueryHosts(w http.ResponseWriter, r *http.Request) {
	s.handleAggregate(w, r, store.GroupByHost)
}

func (s *APIServer) handleQueryMethods(w http.ResponseWriter, r *http.Request) {
	s.handleAggregate(w, r, store.GroupByMethod)
}

func (s *APIServer) handleAggregate(w http.ResponseWriter, r *http.Request, groupBy string) {
	f, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	groups, err := s.Store.Aggregate(r.Context(), f, groupBy)
	if err != nil {
		s.Logger.Error("aggregate failed", zap.String("group_by", groupBy), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}

	resp := api.AggregateResponse{GroupBy: groupBy, Groups: make([]api.AggregateEntry, 0, len(groups))}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, api.AggregateEntry{Key: g.Key, Count: g.Count})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.exportOptions(w, r, store.OrderDesc)
	if !ok {
		return
	}
	dump, err := export.BuildJSON(r.Context(), s.Store, opts)
	if err != nil {
		s.Logger.Error("json export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "export error"})
		return
	}
	writeJSON(w, http.StatusOK, dump)
}

func (s *APIServer) handleExportHAR(w http.ResponseWriter, r *http.Request) {
	// HAR readers conventionally expect chronological entries.
	opts, ok := s.exportOptions(w, r, store.OrderAsc)
	if !ok {
		return
	}
	har, err := export.BuildHAR(r.Context(), s.Store, opts)
	if err != nil {
		s.Logger.Error("har export failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "export error"})
		return
	}
	writeJSON(w, http.StatusOK, har)
}

func (s *APIServer) exportOptions(w http.ResponseWriter, r *http.Request, defaultOrder store.Order) (export.Options, bool) {
	f, err := parseFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return export.Options{}, false
	}
	limit, err := parseLimit(r, 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return export.Options{}, false
	}
	order, err := parseOrder(r, defaultOrder)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return export.Options{}, false
	}
	return export.Options{Filter: f, Order: order, Limit: limit}, true
}

func (s *APIServer) handleDeleteExchanges(w http.ResponseWriter, r *http.Request) {
	count, err := s.Store.Count(r.Context(), store.Filter{})
	if err != nil {
		s.Logger.Error("count before purge failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}
	if err := s.Store.DeleteAll(r.Context()); err != nil {
		s.Logger.Error("purge failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{Error: "database error"})
		return
	}
	s.Logger.Info("purged all exchanges", zap.Int("deleted", count))
	writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: count})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
