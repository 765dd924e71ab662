package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/rate"
)

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
}

// Observer is told about every completed attempt; status is 0 on transport errors.
type Observer func(tag, method string, status int, elapsed time.Duration)

// Executor handles rate-limited, optionally retrying HTTP execution.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	tag          string
	errorHandler func(status int, body []byte) error
	observe      Observer
}

// New creates an Executor. errorHandler is called on 4xx responses to produce a
// backend-specific error; if nil, a default error is returned. retryMax of zero
// means a single attempt.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	tag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		tag:          tag,
		errorHandler: errorHandler,
	}
}

// SetObserver installs a per-attempt hook (metrics).
func (e *Executor) SetObserver(o Observer) {
	e.observe = o
}

func (e *Executor) observed(method string, status int, elapsed time.Duration) {
	if e.observe != nil {
		e.observe(e.tag, method, status, elapsed)
	}
}

// Do executes req with rate limiting and retries on transport errors and 5xx.
// Any response below 500 is returned as-is, whatever its status.
func (e *Executor) Do(ctx context.Context, req *http.Request, rateLimitKey string) (*Response, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= e.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("rewind request body: %w", err)
				}
				req.Body = body
			}
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			lastErr = err
			e.observed(req.Method, 0, time.Since(start))
			e.logger.Warn(e.tag+".http_failed",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Error(err),
				zap.Int("attempt", attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		e.observed(req.Method, resp.StatusCode, elapsed)
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}

		if resp.StatusCode >= 500 {
			e.logger.Warn(e.tag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Duration("latency", elapsed),
				zap.Int("attempt", attempt))
			lastErr = e.statusError(resp.StatusCode, body)
			continue
		}

		e.logger.Debug(e.tag+".http_done",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
			Elapsed:    elapsed,
		}, nil
	}

	if e.retryMax == 0 {
		return nil, fmt.Errorf("%s request failed: %w", e.tag, lastErr)
	}
	return nil, fmt.Errorf("%s request failed after %d attempts: %w", e.tag, e.retryMax+1, lastErr)
}

// DoJSON executes req and JSON-decodes a 2xx/3xx response into out.
// A 4xx response is turned into an error by the error handler.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	resp, err := e.Do(ctx, req, rateLimitKey)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return e.statusError(resp.StatusCode, resp.Body)
	}

	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			e.logger.Warn(e.tag+".decode_failed",
				zap.Error(err),
				zap.String("path", req.URL.Path))
			return fmt.Errorf("decode failed: %w", err)
		}
	}
	return nil
}

func (e *Executor) statusError(status int, body []byte) error {
	if e.errorHandler != nil {
		return e.errorHandler(status, body)
	}
	return fmt.Errorf("%s returned %d", e.tag, status)
}
