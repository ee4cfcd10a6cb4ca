// Package export exposes filtered dumps of captured exchanges in HAR and
// raw JSON form.
package export

import (
	"context"
	"net/http"
	"time"

	"github.com/trafficlens/trafficlens/internal/models"
	"github.com/trafficlens/trafficlens/internal/store"
)

const creatorName = "trafficlens"
const creatorVersion = "1.0"

// Options selects and orders the exchanges to export. Order is explicit
// because different callers legitimately want opposite orderings.
type Options struct {
	Filter store.Filter
	Order  store.Order
	Limit  int
}

// HAR is the HTTP Archive 1.2 envelope.
type HAR struct {
	Log Log `json:"log"`
}

// Log is the HAR log object.
type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Entries []Entry `json:"entries"`
}

// Creator identifies the producing application.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry is one exchange in HAR form.
type Entry struct {
	StartedDateTime string   `json:"startedDateTime"`
	Time            float64  `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
}

// NameValue is a HAR name/value pair.
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PostData is the HAR request body object.
type PostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Request is the HAR request object.
type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	BodySize    int         `json:"bodySize"`
}

// Content is the HAR response content object.
type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Response is the HAR response object.
type Response struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	BodySize    int         `json:"bodySize"`
}

// BuildHAR maps the selected exchanges to a HAR archive, one entry per
// exchange in the requested order.
func BuildHAR(ctx context.Context, st *store.Store, opts Options) (*HAR, error) {
	exchanges, err := st.List(ctx, opts.Filter, opts.Order, opts.Limit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(exchanges))
	for i := range exchanges {
		entries = append(entries, harEntry(&exchanges[i]))
	}

	return &HAR{Log: Log{
		Version: "1.2",
		Creator: Creator{Name: creatorName, Version: creatorVersion},
		Entries: entries,
	}}, nil
}

func harEntry(e *models.Exchange) Entry {
	status := 0
	if e.ResponseStatus != nil {
		status = *e.ResponseStatus
	}

	req := Request{
		Method:      e.Method,
		URL:         e.URL,
		HTTPVersion: "HTTP/1.1",
		Headers:     harHeaders(e.RequestHeaders),
		QueryString: []NameValue{},
		BodySize:    len(e.RequestBody.Text),
	}
	if !e.RequestBody.IsEmpty() {
		req.PostData = &PostData{
			MimeType: e.RequestHeaders.Get("Content-Type"),
			Text:     e.RequestBody.Text,
		}
	}

	return Entry{
		StartedDateTime: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Time:            e.DurationSeconds * 1000,
		Request:         req,
		Response: Response{
			Status:      status,
			StatusText:  http.StatusText(status),
			HTTPVersion: "HTTP/1.1",
			Headers:     harHeaders(e.ResponseHeaders),
			Content: Content{
				Size:     len(e.ResponseBody.Text),
				MimeType: e.ResponseHeaders.Get("Content-Type"),
				Text:     e.ResponseBody.Text,
			},
			BodySize: len(e.ResponseBody.Text),
		},
	}
}

func harHeaders(h models.Headers) []NameValue {
	out := make([]NameValue, 0, len(h))
	for _, hdr := range h {
		out = append(out, NameValue{Name: hdr.Name, Value: hdr.Value})
	}
	return out
}
