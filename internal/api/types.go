// Package api defines the request and response types of the query API,
// shared by the server and the Go client.
package api

import (
	"github.com/trafficlens/trafficlens/internal/models"
)

// ExchangeSummary is the list-view projection of an exchange.
type ExchangeSummary struct {
	ID             int64   `json:"id"`
	Timestamp      string  `json:"timestamp"`
	Method         string  `json:"method"`
	URL            string  `json:"url"`
	Host           string  `json:"host"`
	Path           string  `json:"path"`
	Protocol       string  `json:"protocol"`
	ResponseStatus *int    `json:"response_status"`
	Duration       float64 `json:"duration"`
	Analyzed       bool    `json:"analyzed"`
}

// ListExchangesResponse wraps a filtered exchange listing.
type ListExchangesResponse struct {
	Count     int               `json:"count"`
	Exchanges []ExchangeSummary `json:"exchanges"`
}

// AnalysisResponse wraps a per-exchange analysis result.
type AnalysisResponse struct {
	ExchangeID int64                  `json:"exchange_id"`
	Analysis   *models.AnalysisResult `json:"analysis"`
}

// SessionRequest selects the session window size.
type SessionRequest struct {
	Limit int `json:"limit"`
}

// AggregateEntry is one group in an aggregate response.
type AggregateEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// AggregateResponse wraps a group-by count query.
type AggregateResponse struct {
	GroupBy string           `json:"group_by"`
	Groups  []AggregateEntry `json:"groups"`
}

// DeleteResponse reports a purge.
type DeleteResponse struct {
	Deleted int `json:"deleted"`
}

// ErrorResponse is the structured error body for all failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
