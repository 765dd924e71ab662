package splunkd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/httpclient"
	"github.com/signalfx/sfx-forwarder-app/internal/rate"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Config identifies the splunkd instance, the namespace and the credentials
// the platform session hands us.
type Config struct {
	BaseURL            string // e.g. https://localhost:8089
	Owner              string
	App                string
	SessionKey         string // sent as "Authorization: Splunk <key>"
	Token              string // sent as "Authorization: Bearer <token>"
	Username           string // basic auth, dev only
	Password           string
	InsecureSkipVerify bool
	Timeout            time.Duration
	RetryMax           int
}

// Client wraps low-level HTTP communication with splunkd's REST API.
type Client struct {
	logger *zap.Logger
	exec   *httpclient.Executor
	cfg    Config
}

// NewClient constructs a splunkd client. rateMgr may be nil.
func NewClient(logger *zap.Logger, cfg Config, rateMgr *rate.Manager) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // splunkd ships a self-signed cert
	}
	httpClient := &http.Client{Timeout: cfg.Timeout, Transport: transport}

	return NewClientWithHTTP(logger, cfg, rateMgr, httpClient)
}

// NewClientWithHTTP is NewClient with a caller-supplied http.Client.
func NewClientWithHTTP(logger *zap.Logger, cfg Config, rateMgr *rate.Manager, httpClient *http.Client) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Owner == "" {
		cfg.Owner = model.Owner
	}
	if cfg.App == "" {
		cfg.App = model.AppName
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	exec := httpclient.New(logger, rateMgr, httpClient, cfg.RetryMax, "splunkd", func(status int, body []byte) error {
		var errResp ErrorResponse
		_ = json.Unmarshal(body, &errResp)

		msg := errResp.Text()
		logger.Warn("splunkd.client_error",
			zap.Int("status", status),
			zap.String("message", msg))

		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &StatusError{Status: status, Message: msg}
	})
	return &Client{logger: logger, exec: exec, cfg: cfg}
}

// Executor exposes the underlying executor so callers can attach metrics.
func (c *Client) Executor() *httpclient.Executor {
	return c.exec
}

// StatusError is a non-2xx splunkd reply.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("splunkd returned %d: %s", e.Status, e.Message)
}

// namespaced builds /servicesNS/{owner}/{app}/{path}.
func (c *Client) namespaced(path string) string {
	return fmt.Sprintf("%s/servicesNS/%s/%s/%s",
		c.cfg.BaseURL,
		url.PathEscape(c.cfg.Owner),
		url.PathEscape(c.cfg.App),
		strings.TrimPrefix(path, "/"))
}

func withJSONOutput(q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if q.Get("output_mode") == "" {
		q.Set("output_mode", "json")
	}
	return q
}

// get performs an authenticated GET against the app namespace.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.namespaced(path) + "?" + withJSONOutput(query).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	return c.exec.DoJSON(ctx, req, c.cfg.BaseURL, out)
}

// postForm performs an authenticated form-encoded POST against the app namespace.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	body := withJSONOutput(form).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.namespaced(path), strings.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.exec.DoJSON(ctx, req, c.cfg.BaseURL, out)
}

// postJSON performs an authenticated JSON POST; KV store endpoints require it.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	u := c.namespaced(path) + "?" + withJSONOutput(nil).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return c.exec.DoJSON(ctx, req, c.cfg.BaseURL, out)
}

// Ping checks that splunkd answers and accepts our credentials.
// GET /services/server/info
func (c *Client) Ping(ctx context.Context) error {
	u := c.cfg.BaseURL + "/services/server/info?" + withJSONOutput(nil).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	return c.exec.DoJSON(ctx, req, c.cfg.BaseURL, nil)
}

func (c *Client) setHeaders(req *http.Request) {
	switch {
	case c.cfg.SessionKey != "":
		req.Header.Set("Authorization", "Splunk "+c.cfg.SessionKey)
	case c.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	case c.cfg.Username != "":
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	req.Header.Set("Accept", "application/json")
}
