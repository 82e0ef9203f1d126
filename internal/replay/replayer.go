package replay

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/session"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// Replayer replays recorded session events into fresh monitors, one per
// session, at a configurable speed.
type Replayer struct {
	records []recorder.EventRecord
	clock   *clock.VirtualClock
	filter  Filter
	speed   float64 // 1.0 = real-time, 10.0 = 10x, 0 = instant
	logger  *zap.Logger
	opts    []telemetry.Option
}

// Result captures the outcome of replaying a single record.
type Result struct {
	Record recorder.EventRecord `json:"record"`
	Errors int                  `json:"errors"` // session error count after the record
	Err    error                `json:"-"`
	Time   time.Time            `json:"time"` // virtual time when the record was applied
}

// Summary aggregates replay statistics.
type Summary struct {
	TotalRecords int                       `json:"total_records"`
	Filtered     int                       `json:"filtered"`
	Replayed     int                       `json:"replayed"`
	Failed       int                       `json:"failed"`
	Duration     time.Duration             `json:"duration"`      // virtual time span
	WallDuration time.Duration             `json:"wall_duration"` // actual wall clock time
	PerSession   map[string]SessionSummary `json:"per_session"`
}

// SessionSummary has per-session stats and the final report.
type SessionSummary struct {
	Events int              `json:"events"`
	Errors int              `json:"errors"`
	Failed int              `json:"failed"`
	Report telemetry.Report `json:"report"`
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithLogger sets the logger passed to every replayed monitor.
func WithLogger(l *zap.Logger) Option {
	return func(r *Replayer) { r.logger = l }
}

// WithMonitorOptions adds options to every replayed monitor, e.g. an
// uploader so recorded uploads reach a sink again.
func WithMonitorOptions(opts ...telemetry.Option) Option {
	return func(r *Replayer) { r.opts = append(r.opts, opts...) }
}

// New creates a new replayer.
func New(vc *clock.VirtualClock, speed float64, filter Filter, opts ...Option) *Replayer {
	if speed < 0 {
		speed = 0
	}
	r := &Replayer{
		clock:  vc,
		speed:  speed,
		filter: filter,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads event records from a JSON reader.
func (r *Replayer) Load(reader io.Reader) error {
	records, err := recorder.LoadJSON(reader)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	r.records = records
	return nil
}

// LoadRecords sets the records directly.
func (r *Replayer) LoadRecords(records []recorder.EventRecord) {
	r.records = make([]recorder.EventRecord, len(records))
	copy(r.records, records)
}

// Run replays all loaded records. Records that fail to apply are counted
// and reported through cb; they do not stop the replay.
// The callback is called for each replayed record.
func (r *Replayer) Run(ctx context.Context, cb func(Result)) (*Summary, error) {
	if len(r.records) == 0 {
		return nil, fmt.Errorf("no records loaded")
	}

	// Stable so same-instant events keep their recorded order.
	sorted := make([]recorder.EventRecord, len(r.records))
	copy(sorted, r.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var filtered []recorder.EventRecord
	for _, rec := range sorted {
		if r.filter.Match(rec) {
			filtered = append(filtered, rec)
		}
	}

	summary := &Summary{
		TotalRecords: len(sorted),
		Filtered:     len(filtered),
		PerSession:   make(map[string]SessionSummary),
	}
	if len(filtered) == 0 {
		return summary, nil
	}

	reg := session.NewRegistry(r.clock, r.logger, r.opts...)
	defer reg.Close()

	wallStart := time.Now()
	baseTime := filtered[0].Timestamp

	for i, rec := range filtered {
		select {
		case <-ctx.Done():
			r.finish(reg, summary)
			return summary, ctx.Err()
		default:
		}

		if i > 0 {
			gap := rec.Timestamp.Sub(filtered[i-1].Timestamp)
			if gap > 0 {
				if r.speed > 0 {
					scaledGap := time.Duration(float64(gap) / r.speed)
					if scaledGap > time.Millisecond {
						select {
						case <-ctx.Done():
							r.finish(reg, summary)
							return summary, ctx.Err()
						case <-time.After(scaledGap):
						}
					}
				}
				r.clock.Advance(gap)
			}
		}

		s, err := r.session(reg, rec)
		if err == nil {
			err = s.Apply(ctx, rec)
		}

		summary.Replayed++
		ss := summary.PerSession[rec.Session]
		ss.Events++
		if err != nil {
			summary.Failed++
			ss.Failed++
			r.logger.Warn("replay record failed",
				zap.String("session", rec.Session),
				zap.String("kind", string(rec.Kind)),
				zap.Error(err))
		}
		summary.PerSession[rec.Session] = ss

		if cb != nil {
			res := Result{Record: rec, Err: err, Time: r.clock.Now()}
			if s != nil {
				res.Errors = len(s.Monitor.Errors())
			}
			cb(res)
		}
	}

	summary.Duration = filtered[len(filtered)-1].Timestamp.Sub(baseTime)
	summary.WallDuration = time.Since(wallStart)
	r.finish(reg, summary)
	return summary, nil
}

// session returns the record's session, creating it on first sight. A
// session record supplies the client description; other records start
// the session with an empty one.
func (r *Replayer) session(reg *session.Registry, rec recorder.EventRecord) (*session.Session, error) {
	var user telemetry.UserInfo
	if rec.Kind == recorder.KindSession {
		if err := rec.Decode(&user); err != nil {
			return nil, err
		}
	}
	s, _ := reg.Ensure(rec.Session, user)
	return s, nil
}

// finish flushes deferred monitor work and stores the final reports.
func (r *Replayer) finish(reg *session.Registry, summary *Summary) {
	r.clock.Advance(0)
	for _, id := range reg.IDs() {
		s, ok := reg.Get(id)
		if !ok {
			continue
		}
		ss := summary.PerSession[id]
		ss.Report = s.Monitor.Report()
		ss.Errors = len(ss.Report.Errors)
		summary.PerSession[id] = ss
	}
}
