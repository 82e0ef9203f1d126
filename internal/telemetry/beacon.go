package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultSlowResourceThreshold is the load time above which a resource
// is reported as slow.
const DefaultSlowResourceThreshold = 10 * time.Second

// Beaconer sends a small key/value payload to an endpoint. GET requests
// carry the data in the query string, other methods in a form body.
type Beaconer interface {
	Send(ctx context.Context, endpoint, method string, data url.Values) error
}

// BeaconConfig configures the load-time beacon.
type BeaconConfig struct {
	URL        string        `json:"url" mapstructure:"url" yaml:"url"`                         // receives domComplete
	TimeoutURL string        `json:"timeout_url" mapstructure:"timeout_url" yaml:"timeout_url"` // receives slow resource names
	Method     string        `json:"method" mapstructure:"method" yaml:"method"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout" yaml:"timeout"` // slow resource threshold
}

func (c BeaconConfig) withDefaults() BeaconConfig {
	if c.Method == "" {
		c.Method = http.MethodPost
	}
	c.Method = strings.ToUpper(c.Method)
	if c.Timeout <= 0 {
		c.Timeout = DefaultSlowResourceThreshold
	}
	return c
}

// LoadTime returns the time from navigation start to DOM completion in
// milliseconds. ok is false when the host has no navigation timing.
func (m *Monitor) LoadTime() (ms int64, ok bool) {
	t, ok := m.host.NavigationTiming()
	if !ok {
		return 0, false
	}
	return t.DOMComplete - t.NavigationStart, true
}

// SlowResources returns the names of resources that took at least limit
// from request start to response end. A non-positive limit uses
// DefaultSlowResourceThreshold.
func (m *Monitor) SlowResources(limit time.Duration) []string {
	if limit <= 0 {
		limit = DefaultSlowResourceThreshold
	}
	limitMS := float64(limit) / float64(time.Millisecond)

	var names []string
	for _, e := range m.host.ResourceEntries() {
		if e.ResponseEnd-e.StartTime >= limitMS {
			names = append(names, e.Name)
		}
	}
	return names
}

// SendBeacon reports the page load time to the beacon URL and, when any
// resource was slow, the slow resource names to the timeout URL.
// It is a no-op without WithBeacon.
func (m *Monitor) SendBeacon(ctx context.Context) error {
	if m.beacon == nil {
		return nil
	}
	cfg := m.beaconCfg

	var errs []error
	if ms, ok := m.LoadTime(); ok && cfg.URL != "" {
		data := url.Values{"domComplete": {strconv.FormatInt(ms, 10)}}
		if err := m.beacon.Send(ctx, cfg.URL, cfg.Method, data); err != nil {
			errs = append(errs, err)
		}
	}

	if slow := m.SlowResources(cfg.Timeout); len(slow) > 0 && cfg.TimeoutURL != "" {
		data := url.Values{"timeoutRes[]": slow}
		if err := m.beacon.Send(ctx, cfg.TimeoutURL, cfg.Method, data); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		m.logger.Warn("beacon failed", zap.Error(err))
	}
	return err
}
