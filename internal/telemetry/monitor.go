package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/limiter"
)

const defaultUploadTimeout = 10 * time.Second

// Uploader ships a report to a collector endpoint.
type Uploader interface {
	Upload(ctx context.Context, endpoint string, r Report) error
}

// Monitor aggregates one page's timing data and errors into a Report.
//
// Error events are appended in arrival order for the Monitor's lifetime.
// Performance and resource snapshots are refreshed after the page load
// event and on Reset. No method panics on malformed input; missing data
// simply leaves fields empty.
//
// Thread-safe for concurrent use.
type Monitor struct {
	clock    clock.Clock
	logger   *zap.Logger
	host     Host
	sched    Scheduler
	uploader Uploader

	beacon    Beaconer
	beaconCfg BeaconConfig

	autoUploadDelay time.Duration
	autoUpload      *limiter.Debouncer[struct{}, struct{}]

	mu          sync.Mutex
	url         string
	performance *PerformanceTiming
	resources   *ResourceSnapshot
	errors      []ErrorRecord
	user        UserInfo

	subMu       sync.RWMutex
	subscribers map[uint64]func(ErrorRecord)
	nextSub     uint64

	unsubscribe func()
	closeOnce   sync.Once
	closed      atomic.Bool
}

var _ Listener = (*Monitor)(nil)

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock used for timestamps and deferred work.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithUploader sets the transport used by Upload.
func WithUploader(u Uploader) Option {
	return func(m *Monitor) { m.uploader = u }
}

// WithURL sets the initial upload endpoint.
func WithURL(url string) Option {
	return func(m *Monitor) { m.url = url }
}

// WithScheduler overrides the scheduler picked from the host's capabilities.
func WithScheduler(s Scheduler) Option {
	return func(m *Monitor) { m.sched = s }
}

// WithAutoUpload uploads the report once errors stop arriving for delay.
func WithAutoUpload(delay time.Duration) Option {
	return func(m *Monitor) { m.autoUploadDelay = delay }
}

// WithBeacon enables the load-time beacon sent after the page load event.
func WithBeacon(b Beaconer, cfg BeaconConfig) Option {
	return func(m *Monitor) {
		m.beacon = b
		m.beaconCfg = cfg
	}
}

// New creates a Monitor reading from host and, when events is non-nil,
// subscribes it to page events until Close.
func New(host Host, events EventSource, opts ...Option) *Monitor {
	m := &Monitor{
		clock:       clock.NewRealClock(),
		logger:      zap.NewNop(),
		host:        host,
		subscribers: make(map[uint64]func(ErrorRecord)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.sched == nil {
		m.sched = NewScheduler(host, m.clock)
	}
	m.beaconCfg = m.beaconCfg.withDefaults()
	m.user = host.User()

	if m.autoUploadDelay > 0 {
		m.autoUpload = limiter.NewDebouncer(func(struct{}) (struct{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultUploadTimeout)
			defer cancel()
			return struct{}{}, m.Upload(ctx)
		}, m.autoUploadDelay, m.clock, limiter.WithLogger(m.logger))
	}

	if events != nil {
		m.unsubscribe = events.Subscribe(m)
	}
	return m
}

// AddError appends a manually reported error stamped with the current time.
func (m *Monitor) AddError(f ErrorFields) {
	m.append(ErrorRecord{
		Kind: f.Kind,
		Type: f.Type,
		Msg:  f.Msg,
		URL:  f.URL,
		Row:  f.Row,
		Col:  f.Col,
	})
}

// Reset clears the host's resource buffer, takes fresh performance and
// resource snapshots and drops all errors.
func (m *Monitor) Reset() {
	m.host.ClearResourceTimings()
	perf := m.capturePerformance()
	res := m.captureResources()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.performance = perf
	m.resources = res
	m.errors = nil
}

// ClearError drops all errors.
func (m *Monitor) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = nil
}

// SetURL sets the upload endpoint. It is not validated.
func (m *Monitor) SetURL(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.url = url
}

// URL returns the upload endpoint.
func (m *Monitor) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Upload sends the current report through the configured Uploader.
// Without an Uploader it does nothing. Transport errors are returned as is.
func (m *Monitor) Upload(ctx context.Context) error {
	if m.uploader == nil {
		m.logger.Debug("upload skipped, no uploader configured")
		return nil
	}
	r := m.Report()
	if err := m.uploader.Upload(ctx, r.URL, r); err != nil {
		m.logger.Warn("report upload failed", zap.String("url", r.URL), zap.Error(err))
		return err
	}
	m.logger.Debug("report uploaded",
		zap.String("url", r.URL),
		zap.Int("errors", len(r.Errors)))
	return nil
}

// Report returns a deep copy of the current report.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := Report{
		URL:       m.url,
		Resources: m.resources.clone(),
		Errors:    make([]ErrorRecord, len(m.errors)),
		User:      m.user,
	}
	copy(r.Errors, m.errors)
	if m.performance != nil {
		p := *m.performance
		r.Performance = &p
	}
	return r
}

// Errors returns a copy of the recorded errors in arrival order.
func (m *Monitor) Errors() []ErrorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ErrorRecord, len(m.errors))
	copy(out, m.errors)
	return out
}

// Subscribe calls fn for every error appended from now on.
// The returned function removes the subscription.
func (m *Monitor) Subscribe(fn func(ErrorRecord)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextSub++
	id := m.nextSub
	m.subscribers[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subscribers, id)
	}
}

// Close detaches the monitor from its event source and drops any pending
// automatic upload. Errors added afterwards no longer schedule one. The
// report stays readable.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		if m.autoUpload != nil {
			m.autoUpload.Cancel()
		}
	})
}

// OnError records a global error event. Events targeting an element are
// resource load failures; the rest are script errors.
func (m *Monitor) OnError(ev ErrorEvent) {
	if ev.Target != nil {
		url := ev.Target.Src
		if url == "" {
			url = ev.Target.Href
		}
		m.append(ErrorRecord{
			Kind: KindResource,
			Type: ev.Target.LocalName,
			URL:  url,
			Msg:  url + " is load error",
		})
		return
	}

	msg := ev.Message
	if ev.Stack != "" {
		msg = ev.Stack
	}
	m.append(ErrorRecord{
		Kind: KindScript,
		Type: "javascript",
		Row:  ev.Line,
		Col:  ev.Column,
		Msg:  msg,
		URL:  ev.Filename,
	})
}

// OnRejection records an unhandled promise rejection. Rejections carry no
// source position, only a best-effort message.
func (m *Monitor) OnRejection(ev RejectionEvent) {
	m.append(ErrorRecord{
		Kind: KindPromise,
		Type: "promise",
		Msg:  reasonMessage(ev.Reason),
	})
}

// OnLoad schedules a performance and resource snapshot, followed by the
// load-time beacon when one is configured.
func (m *Monitor) OnLoad() {
	m.sched.Schedule(func() {
		m.refresh()
		if m.beacon == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultUploadTimeout)
		defer cancel()
		_ = m.SendBeacon(ctx)
	})
}

func (m *Monitor) refresh() {
	perf := m.capturePerformance()
	res := m.captureResources()

	m.mu.Lock()
	m.performance = perf
	m.resources = res
	m.mu.Unlock()

	fields := []zap.Field{zap.Int("resources", res.Len())}
	if perf != nil {
		fields = append(fields,
			zap.Int64("load_ms", perf.Load),
			zap.Int64("white_screen_ms", perf.WhiteScreen))
	}
	m.logger.Info("page performance captured", fields...)
}

func (m *Monitor) append(rec ErrorRecord) {
	rec.Time = m.clock.Now()

	m.mu.Lock()
	m.errors = append(m.errors, rec)
	total := len(m.errors)
	m.mu.Unlock()

	m.logger.Debug("error recorded",
		zap.String("kind", string(rec.Kind)),
		zap.String("type", rec.Type),
		zap.String("msg", rec.Msg),
		zap.Int("total", total))

	m.subMu.RLock()
	subs := make([]func(ErrorRecord), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn(rec)
	}

	if m.autoUpload != nil && !m.closed.Load() {
		m.autoUpload.Call(struct{}{})
	}
}

func (m *Monitor) capturePerformance() *PerformanceTiming {
	if !m.host.TimingSupported() {
		return nil
	}
	t, ok := m.host.NavigationTiming()
	if !ok {
		return nil
	}
	return &PerformanceTiming{
		Redirect:    t.RedirectEnd - t.RedirectStart,
		WhiteScreen: t.DOMLoading - t.NavigationStart,
		DOM:         t.DOMComplete - t.DOMLoading,
		Load:        t.LoadEventEnd - t.NavigationStart,
		Unload:      t.UnloadEventEnd - t.UnloadEventStart,
		Request:     t.ResponseEnd - t.RequestStart,
		Time:        m.clock.Now(),
	}
}

func (m *Monitor) captureResources() *ResourceSnapshot {
	if !m.host.TimingSupported() {
		return nil
	}
	snap := &ResourceSnapshot{Time: m.clock.Now()}
	for _, e := range m.host.ResourceEntries() {
		b := snap.bucket(e.InitiatorType)
		if b == nil {
			continue
		}
		*b = append(*b, ResourceRecord{
			Name:     e.Name,
			Duration: math.Round(e.Duration*100) / 100,
			Size:     e.TransferSize,
			Protocol: e.NextHopProtocol,
		})
	}
	return snap
}

// reasonMessage extracts a readable message from a rejection reason.
func reasonMessage(reason any) string {
	switch r := reason.(type) {
	case nil:
		return ""
	case string:
		return r
	case error:
		return r.Error()
	case map[string]any:
		for _, key := range []string{"msg", "message"} {
			if s, ok := r[key].(string); ok && s != "" {
				return s
			}
		}
		if b, err := json.Marshal(r); err == nil {
			return string(b)
		}
		return fmt.Sprint(r)
	case fmt.Stringer:
		return r.String()
	default:
		return fmt.Sprint(r)
	}
}
