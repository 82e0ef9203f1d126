package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
)

// RequestLogger logs one line per request with its status and latency.
func RequestLogger(logger *zap.Logger, clk clock.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clk.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("client", clientKey(r)),
				zap.Duration("latency", clk.Since(start)))
		})
	}
}

// Admission applies a token bucket per client. Buckets read the injected
// clock, so admission follows virtual time in tests.
// Thread-safe for concurrent use.
type Admission struct {
	mu      sync.Mutex
	clients map[string]*bucket
	limit   rate.Limit
	burst   int
	clock   clock.Clock
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewAdmission admits perSecond requests per client with the given burst.
// A non-positive perSecond admits everything.
func NewAdmission(perSecond float64, burst int, c clock.Clock) *Admission {
	if burst <= 0 {
		burst = 1
	}
	return &Admission{
		clients: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clock:   c,
	}
}

// Allow reports whether key may proceed now and, if not, how many whole
// seconds to wait.
func (a *Admission) Allow(key string) (ok bool, retryAfter int) {
	if a.limit <= 0 {
		return true, 0
	}

	now := a.clock.Now()

	a.mu.Lock()
	b, exists := a.clients[key]
	if !exists {
		b = &bucket{lim: rate.NewLimiter(a.limit, a.burst)}
		a.clients[key] = b
	}
	b.lastSeen = now
	lim := b.lim
	a.mu.Unlock()

	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	res.CancelAt(now)
	return false, int(math.Ceil(delay.Seconds()))
}

// Len returns the number of tracked clients.
func (a *Admission) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clients)
}

// Sweep forgets clients not seen for at least idle and returns how many
// were dropped. A forgotten client starts again with a full bucket.
func (a *Admission) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	now := a.clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for key, b := range a.clients {
		if now.Sub(b.lastSeen) >= idle {
			delete(a.clients, key)
			n++
		}
	}
	return n
}

// Middleware rejects requests over the client's budget with 429.
func (a *Admission) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := a.Allow(clientKey(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller. RealIP has already applied
// X-Forwarded-For and X-Real-IP to RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
