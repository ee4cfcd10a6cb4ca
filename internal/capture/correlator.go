// Package capture bridges the interception engine's per-event callbacks
// to the exchange store's complete-record model.
package capture

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trafficlens/trafficlens/internal/logging"
	"github.com/trafficlens/trafficlens/internal/models"
)

// unknownFlowNote annotates exchanges whose request event was never seen,
// for example after a correlator restart mid-flight.
const unknownFlowNote = "correlator restarted mid-flight; duration unknown"

// RequestData is the request half of a flow as delivered by the engine.
type RequestData struct {
	Method  string
	URL     string
	Host    string
	Path    string
	Scheme  string
	Headers models.Headers
	Body    []byte
}

// ResponseData is the response half of a flow.
type ResponseData struct {
	Status  int
	Headers models.Headers
	Body    []byte
}

// Inserter is the slice of the exchange store the correlator writes to.
type Inserter interface {
	Insert(ctx context.Context, e *models.Exchange) (int64, error)
}

// Correlator pairs request events with their eventual response events.
// Per-flow transient state lives only in memory; an exchange exists only
// once its response is known. Safe for concurrent use across flows.
type Correlator struct {
	store  Inserter
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	inflight map[string]time.Time
}

// New creates a Correlator writing completed exchanges to store.
func New(store Inserter, logger *zap.Logger) *Correlator {
	return &Correlator{
		store:    store,
		logger:   logger,
		now:      time.Now,
		inflight: make(map[string]time.Time),
	}
}

// OnRequestStarted records the start timestamp for a flow. The request
// payload itself is not persisted until the response arrives.
func (c *Correlator) OnRequestStarted(flowID string, _ RequestData) {
	start := c.now()
	c.mu.Lock()
	c.inflight[flowID] = start
	c.mu.Unlock()
}

// OnResponseReceived pairs the response with its recorded request start,
// builds the full exchange, and persists it. A response for an unknown
// flowID still produces an exchange: duration falls back to zero and the
// anomaly is annotated in notes. Store failures are logged and the
// exchange dropped; capture continues for subsequent flows.
func (c *Correlator) OnResponseReceived(ctx context.Context, flowID string, req RequestData, resp ResponseData) (int64, error) {
	end := c.now()

	c.mu.Lock()
	start, known := c.inflight[flowID]
	delete(c.inflight, flowID)
	c.mu.Unlock()

	e := &models.Exchange{
		Method:          req.Method,
		URL:             req.URL,
		Host:            req.Host,
		Path:            req.Path,
		Protocol:        req.Scheme,
		RequestHeaders:  req.Headers,
		RequestBody:     DecodeBodyCapped(req.Body),
		ResponseStatus:  &resp.Status,
		ResponseHeaders: resp.Headers,
		ResponseBody:    DecodeBodyCapped(resp.Body),
	}

	if known {
		e.Timestamp = start
		if d := end.Sub(start); d > 0 {
			e.DurationSeconds = d.Seconds()
		}
	} else {
		e.Timestamp = end
		e.Notes = unknownFlowNote
		c.logger.Warn("response for unknown flow", logging.FlowID(flowID),
			logging.Method(req.Method), logging.Host(req.Host))
	}

	id, err := c.store.Insert(ctx, e)
	if err != nil {
		c.logger.Error("store exchange failed", logging.FlowID(flowID),
			logging.Method(req.Method), logging.Host(req.Host), zap.Error(err))
		return 0, err
	}

	c.logger.Info("captured exchange", logging.ExchangeID(id),
		logging.Method(req.Method), logging.Host(req.Host),
		zap.Int("status", resp.Status),
		zap.Float64("duration_s", e.DurationSeconds))
	return id, nil
}

// OnFlowClosed evicts transient state for a flow whose response will
// never arrive. No exchange is produced.
func (c *Correlator) OnFlowClosed(flowID string) {
	c.mu.Lock()
	delete(c.inflight, flowID)
	c.mu.Unlock()
}

// InFlight returns the number of flows awaiting a response.
func (c *Correlator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}
