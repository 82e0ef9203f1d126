package sink

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// MemoryConfig configures the in-memory sink.
type MemoryConfig struct {
	TTL time.Duration `json:"ttl" mapstructure:"ttl" yaml:"ttl"` // 0 keeps reports forever
}

// Upload is a report received by a Memory sink.
type Upload struct {
	Endpoint   string           `json:"endpoint"`
	Report     telemetry.Report `json:"report"`
	ReceivedAt time.Time        `json:"received_at"`
	expiresAt  time.Time
}

// Beacon is a beacon received by a Memory sink.
type Beacon struct {
	Endpoint   string     `json:"endpoint"`
	Method     string     `json:"method"`
	Data       url.Values `json:"data"`
	ReceivedAt time.Time  `json:"received_at"`
}

// Memory keeps uploads in memory, expiring them on the injected clock.
// With a TTL, expired uploads are pruned every TTL until Close.
// Thread-safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	clock   clock.Clock
	ttl     time.Duration
	uploads map[string][]Upload
	beacons []Beacon

	cleanupTimer clock.Timer
	closed       bool
}

var _ Sink = (*Memory)(nil)

// NewMemory creates an in-memory sink. A zero ttl never expires reports.
func NewMemory(c clock.Clock, ttl time.Duration) *Memory {
	if c == nil {
		c = clock.NewRealClock()
	}
	m := &Memory{
		clock:   c,
		ttl:     ttl,
		uploads: make(map[string][]Upload),
	}
	if ttl > 0 {
		m.scheduleCleanup()
	}
	return m
}

func (m *Memory) scheduleCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.cleanupTimer = m.clock.AfterFunc(m.ttl, m.cleanupLoop)
}

func (m *Memory) cleanupLoop() {
	m.Cleanup()
	m.scheduleCleanup()
}

func (m *Memory) Upload(_ context.Context, endpoint string, r telemetry.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	u := Upload{Endpoint: endpoint, Report: r, ReceivedAt: now}
	if m.ttl > 0 {
		u.expiresAt = now.Add(m.ttl)
	}
	m.uploads[endpoint] = append(m.uploads[endpoint], u)
	return nil
}

func (m *Memory) Send(_ context.Context, endpoint, method string, data url.Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.beacons = append(m.beacons, Beacon{
		Endpoint:   endpoint,
		Method:     method,
		Data:       data,
		ReceivedAt: m.clock.Now(),
	})
	return nil
}

// Uploads returns the unexpired uploads for endpoint, oldest first.
func (m *Memory) Uploads(endpoint string) []Upload {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	var out []Upload
	for _, u := range m.uploads[endpoint] {
		if m.live(u, now) {
			out = append(out, u)
		}
	}
	return out
}

// All returns every unexpired upload ordered by receive time.
func (m *Memory) All() []Upload {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	var out []Upload
	for _, list := range m.uploads {
		for _, u := range list {
			if m.live(u, now) {
				out = append(out, u)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out
}

// Beacons returns the received beacons in arrival order.
func (m *Memory) Beacons() []Beacon {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Beacon, len(m.beacons))
	copy(out, m.beacons)
	return out
}

// Cleanup removes expired uploads. The TTL loop calls it on its own.
func (m *Memory) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for endpoint, list := range m.uploads {
		kept := list[:0]
		for _, u := range list {
			if m.live(u, now) {
				kept = append(kept, u)
			}
		}
		if len(kept) == 0 {
			delete(m.uploads, endpoint)
			continue
		}
		m.uploads[endpoint] = kept
	}
}

// Len returns the number of stored uploads, including expired ones not
// yet cleaned up.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, list := range m.uploads {
		n += len(list)
	}
	return n
}

// Close stops the cleanup loop. Stored uploads stay readable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.cleanupTimer != nil {
		m.cleanupTimer.Stop()
		m.cleanupTimer = nil
	}
	return nil
}

func (m *Memory) live(u Upload, now time.Time) bool {
	return u.expiresAt.IsZero() || now.Before(u.expiresAt)
}
