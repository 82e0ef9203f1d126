package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPConfig configures the HTTP sink.
type HTTPConfig struct {
	Timeout time.Duration     `json:"timeout" mapstructure:"timeout" yaml:"timeout"`
	Headers map[string]string `json:"headers,omitempty" mapstructure:"headers" yaml:"headers,omitempty"`
}

// HTTP posts reports as JSON and beacons as query strings or form bodies.
type HTTP struct {
	client  *http.Client
	headers map[string]string
}

var _ Sink = (*HTTP)(nil)

// NewHTTP creates an HTTP sink. A zero timeout uses 10s.
func NewHTTP(cfg HTTPConfig) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTP{
		client:  &http.Client{Timeout: timeout},
		headers: cfg.Headers,
	}
}

// Upload POSTs the report as JSON to endpoint.
func (h *HTTP) Upload(ctx context.Context, endpoint string, r telemetry.Report) error {
	if endpoint == "" {
		return ErrNoEndpoint
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

// Send delivers data to endpoint. GET appends it to the query string;
// any other method sends it as a form body.
func (h *HTTP) Send(ctx context.Context, endpoint, method string, data url.Values) error {
	if endpoint == "" {
		return ErrNoEndpoint
	}
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodPost
	}

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		u, perr := url.Parse(endpoint)
		if perr != nil {
			return fmt.Errorf("parsing beacon url: %w", perr)
		}
		q := u.Query()
		for k, vs := range data {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(data.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("building beacon request: %w", err)
	}
	return h.do(req)
}

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *HTTP) do(req *http.Request) error {
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d", ErrStatus, req.Method, req.URL.Redacted(), resp.StatusCode)
	}
	return nil
}
