package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/httpclient"
	"github.com/signalfx/sfx-forwarder-app/internal/rate"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
	"github.com/signalfx/sfx-forwarder-app/pkg/utils"
)

// Ingest API paths.
const (
	DatapointEndpoint = "/v2/datapoint"
	EventEndpoint     = "/v2/event"
)

// Result is the ingest reply to one send.
type Result struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

// StatusError carries the ingest reply when retries were exhausted on 5xx.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ingest returned %d: %s", e.Status, strings.TrimSpace(string(e.Body)))
}

// Sender posts gzip-compressed JSON to SignalFx ingest.
type Sender struct {
	exec   *httpclient.Executor
	logger *zap.Logger
}

// NewSender builds a Sender; requests are rate limited per ingest host.
func NewSender(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client, retryMax int) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	exec := httpclient.New(logger, rateMgr, httpClient, retryMax, "ingest", func(status int, body []byte) error {
		return &StatusError{Status: status, Body: body}
	})
	return &Sender{exec: exec, logger: logger}
}

// Executor exposes the underlying executor so callers can attach metrics.
func (s *Sender) Executor() *httpclient.Executor {
	return s.exec
}

// Target joins the ingest base URL and an endpoint path.
func Target(ingestURL, endpoint string) string {
	return strings.TrimRight(ingestURL, "/") + endpoint
}

// Send posts payload to cfg's ingest URL. Any reply below 500 is a Result,
// whatever its status; a persistent 5xx comes back as *StatusError.
func (s *Sender) Send(ctx context.Context, cfg model.ForwarderConfig, endpoint string, payload any) (*Result, error) {
	body, err := gzipJSON(payload)
	if err != nil {
		return nil, err
	}

	target := Target(cfg.IngestURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ingest request: %w", err)
	}
	req.Header.Set("X-SF-TOKEN", cfg.AccessToken)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.exec.Do(ctx, req, utils.HostOf(cfg.IngestURL))
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return &Result{Endpoint: target, StatusCode: se.Status, Body: se.Body}, err
		}
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("ingest.rejected",
			zap.String("endpoint", target),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", resp.Body))
	}
	return &Result{Endpoint: target, StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

func gzipJSON(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode ingest payload: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("gzip ingest payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip ingest payload: %w", err)
	}
	return buf.Bytes(), nil
}
