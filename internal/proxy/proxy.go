// Package proxy implements a plain forward proxy that feeds the capture
// correlator. Absolute-URI HTTP requests are forwarded and captured;
// CONNECT requests are tunneled opaquely without interception.
package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trafficlens/trafficlens/internal/capture"
	"github.com/trafficlens/trafficlens/internal/logging"
)

const dialTimeout = 10 * time.Second

// hop-by-hop headers are consumed by the proxy and never forwarded.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Server is the capture-side proxy. It is the in-process stand-in for an
// external interception engine: every completed exchange flows through
// the correlator's hooks.
type Server struct {
	Correlator *capture.Correlator
	Logger     *zap.Logger
	Transport  http.RoundTripper
}

func (p *Server) transport() http.RoundTripper {
	if p.Transport != nil {
		return p.Transport
	}
	return http.DefaultTransport
}

func (p *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.handleConnect(w, r)
		return
	}
	if r.URL == nil || r.URL.Scheme == "" || r.URL.Host == "" {
		http.Error(w, "proxy requires an absolute request URI", http.StatusBadRequest)
		return
	}
	p.handleForward(w, r)
}

func (p *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	flowID := uuid.NewString()

	reqBody, err := io.ReadAll(r.Body)
	if err != nil {
		p.Logger.Warn("read request body failed", logging.FlowID(flowID), zap.Error(err))
		reqBody = nil
	}

	reqData := capture.RequestData{
		Method:  r.Method,
		URL:     r.URL.String(),
		Host:    r.URL.Hostname(),
		Path:    r.URL.Path,
		Scheme:  r.URL.Scheme,
		Headers: capture.HeadersFrom(r.Header),
		Body:    reqBody,
	}
	p.Correlator.OnRequestStarted(flowID, reqData)

	out, err := http.NewRequestWithContext(r.Context(), r.Method, r.URL.String(), bytes.NewReader(reqBody))
	if err != nil {
		p.Correlator.OnFlowClosed(flowID)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	copyHeaders(out.Header, r.Header)

	resp, err := p.transport().RoundTrip(out)
	if err != nil {
		p.Correlator.OnFlowClosed(flowID)
		p.Logger.Warn("upstream request failed", logging.FlowID(flowID),
			logging.Host(r.URL.Hostname()), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		p.Logger.Warn("read response body failed", logging.FlowID(flowID), zap.Error(err))
	}

	respData := capture.ResponseData{
		Status:  resp.StatusCode,
		Headers: capture.HeadersFrom(resp.Header),
		Body:    respBody,
	}
	// Duration is computed here, before relaying to the client, so write
	// latency never inflates the recorded timing. The store write runs
	// detached from the client context: once the upstream response is in
	// hand the exchange is recorded even if the client has disconnected.
	// A store failure drops the exchange but the response is still relayed.
	p.Correlator.OnResponseReceived(context.WithoutCancel(r.Context()), flowID, reqData, respData)

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(respBody); err != nil {
		p.Logger.Debug("relay to client failed", logging.FlowID(flowID), zap.Error(err))
	}
}

// handleConnect tunnels a TLS connection without interception. The
// payload stays opaque, so no exchange is recorded.
func (p *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, bufrw, err := hj.Hijack()
	if err != nil {
		return
	}

	upstreamConn, err := net.DialTimeout("tcp", r.Host, dialTimeout)
	if err != nil {
		_, _ = bufrw.WriteString("HTTP/1.1 502 Bad Gateway\r\n\r\n")
		_ = bufrw.Flush()
		_ = clientConn.Close()
		p.Logger.Warn("connect dial failed", logging.Host(r.Host), zap.Error(err))
		return
	}

	_, _ = bufrw.WriteString("HTTP/1.1 200 Connection Established\r\n\r\n")
	_ = bufrw.Flush()

	p.Logger.Debug("tunnel opened", logging.Host(r.Host))
	go func() {
		_, _ = io.Copy(upstreamConn, clientConn)
		_ = upstreamConn.Close()
	}()
	_, _ = io.Copy(clientConn, upstreamConn)
	_ = clientConn.Close()
	p.Logger.Debug("tunnel closed", logging.Host(r.Host))
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if http.CanonicalHeaderKey(name) == h {
			return true
		}
	}
	return false
}
