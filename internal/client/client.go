// Package client is the Go client for the query API, used by the CLI.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trafficlens/trafficlens/internal/analysis"
	"github.com/trafficlens/trafficlens/internal/api"
	"github.com/trafficlens/trafficlens/internal/models"
	"github.com/trafficlens/trafficlens/internal/store"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: http.DefaultClient}
}

// ListOptions selects and orders exchanges on list and export calls.
type ListOptions struct {
	Host         string
	TargetDomain string
	Method       string
	Status       *int
	Search       string
	Analyzed     *bool
	Limit        int
	Order        string
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Host != "" {
		q.Set("host", o.Host)
	}
	if o.TargetDomain != "" {
		q.Set("target", o.TargetDomain)
	}
	if o.Method != "" {
		q.Set("method", o.Method)
	}
	if o.Status != nil {
		q.Set("status", strconv.Itoa(*o.Status))
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Analyzed != nil {
		q.Set("analyzed", strconv.FormatBool(*o.Analyzed))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Order != "" {
		q.Set("order", o.Order)
	}
	return q
}

func (c *Client) ListExchanges(opts ListOptions) (*api.ListExchangesResponse, error) {
	var result api.ListExchangesResponse
	if err := c.getJSON("/v1/exchanges", opts.query(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetExchange(id int64) (*models.Exchange, error) {
	var result models.Exchange
	if err := c.getJSON(fmt.Sprintf("/v1/exchanges/%d", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) AnalyzeExchange(id int64) (*api.AnalysisResponse, error) {
	var result api.AnalysisResponse
	if err := c.postJSON(fmt.Sprintf("/v1/analysis/exchanges/%d", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) AnalyzeSession(limit int) (*models.SessionReport, error) {
	var result models.SessionReport
	if err := c.postJSON("/v1/analysis/session", api.SessionRequest{Limit: limit}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SecurityScan(limit int) (*analysis.ScanReport, error) {
	var result analysis.ScanReport
	if err := c.postJSON("/v1/analysis/security", api.SessionRequest{Limit: limit}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Stats() (*store.Stats, error) {
	var result store.Stats
	if err := c.getJSON("/v1/stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) QueryHosts() (*api.AggregateResponse, error) {
	var result api.AggregateResponse
	if err := c.getJSON("/v1/query/hosts", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) QueryMethods() (*api.AggregateResponse, error) {
	var result api.AggregateResponse
	if err := c.getJSON("/v1/query/methods", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Export fetches a JSON or HAR dump as raw bytes for writing to disk.
func (c *Client) Export(format string, opts ListOptions) ([]byte, error) {
	var path string
	switch format {
	case "json":
		path = "/v1/export.json"
	case "har":
		path = "/v1/export.har"
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}

	resp, err := c.do(http.MethodGet, path, opts.query(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) DeleteAll() (*api.DeleteResponse, error) {
	resp, err := c.do(http.MethodDelete, "/v1/exchanges", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}
	var result api.DeleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(path string, q url.Values, out any) error {
	resp, err := c.do(http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(b)
	}

	resp, err := c.do(http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) do(method, path string, q url.Values, body io.Reader) (*http.Response, error) {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return httpClient.Do(req)
}

func parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var errResp api.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return fmt.Errorf("%s", errResp.Error)
}
