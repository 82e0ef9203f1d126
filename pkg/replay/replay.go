package replay

import (
	internalreplay "github.com/SmitUplenchwar2687/Beacon/internal/replay"
	"github.com/SmitUplenchwar2687/Beacon/pkg/clock"
)

// Filter defines criteria for selecting event records during replay.
type Filter = internalreplay.Filter

// Replayer replays recorded session events into fresh monitors.
type Replayer = internalreplay.Replayer

// Result captures the outcome of replaying a single record.
type Result = internalreplay.Result

// Summary aggregates replay statistics.
type Summary = internalreplay.Summary

// SessionSummary holds per-session replay stats and the final report.
type SessionSummary = internalreplay.SessionSummary

// Option configures a Replayer.
type Option = internalreplay.Option

var (
	WithLogger         = internalreplay.WithLogger
	WithMonitorOptions = internalreplay.WithMonitorOptions
)

// New creates a new replayer.
func New(vc *clock.VirtualClock, speed float64, filter Filter, opts ...Option) *Replayer {
	return internalreplay.New(vc, speed, filter, opts...)
}
