package telemetry

import "sync"

// Host exposes the page measurements a Monitor reads.
// Implementations must be safe for concurrent use.
type Host interface {
	// TimingSupported reports whether the host exposes timing data at all.
	// Without it both performance and resource snapshots are nil.
	TimingSupported() bool
	// NavigationTiming returns the page's navigation timing. ok is false
	// when no navigation timing is available.
	NavigationTiming() (timing NavigationTiming, ok bool)
	// ResourceEntries returns the buffered resource timing entries.
	ResourceEntries() []ResourceEntry
	// ClearResourceTimings empties the resource timing buffer.
	ClearResourceTimings()
	// User describes the client.
	User() UserInfo
}

// IdleRequester is implemented by hosts that can run work when idle.
type IdleRequester interface {
	RequestIdleCallback(fn func())
}

// MemoryHost is a Host whose measurements are pushed in by the caller,
// e.g. from timing data a browser posted to the collector. It reports
// timing support once any navigation or resource timing was pushed.
// Thread-safe for concurrent use.
type MemoryHost struct {
	mu        sync.RWMutex
	user      UserInfo
	timing    NavigationTiming
	hasTiming bool
	supported bool
	entries   []ResourceEntry
}

// NewMemoryHost creates a host with no timing data yet.
func NewMemoryHost(user UserInfo) *MemoryHost {
	return &MemoryHost{user: user}
}

// SetNavigationTiming replaces the navigation timing.
func (h *MemoryHost) SetNavigationTiming(t NavigationTiming) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timing = t
	h.hasTiming = true
	h.supported = true
}

// AddResourceEntries appends entries to the resource timing buffer.
func (h *MemoryHost) AddResourceEntries(entries ...ResourceEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entries...)
	h.supported = true
}

func (h *MemoryHost) TimingSupported() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.supported
}

func (h *MemoryHost) NavigationTiming() (NavigationTiming, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.timing, h.hasTiming
}

func (h *MemoryHost) ResourceEntries() []ResourceEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ResourceEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *MemoryHost) ClearResourceTimings() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}

func (h *MemoryHost) User() UserInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.user
}
