// Package telemetry exposes the page monitor for embedding.
package telemetry

import (
	internaltelemetry "github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
	"github.com/SmitUplenchwar2687/Beacon/pkg/clock"
)

type (
	Monitor           = internaltelemetry.Monitor
	Option            = internaltelemetry.Option
	Report            = internaltelemetry.Report
	PerformanceTiming = internaltelemetry.PerformanceTiming
	ResourceSnapshot  = internaltelemetry.ResourceSnapshot
	ResourceRecord    = internaltelemetry.ResourceRecord
	ErrorKind         = internaltelemetry.ErrorKind
	ErrorRecord       = internaltelemetry.ErrorRecord
	ErrorFields       = internaltelemetry.ErrorFields
	UserInfo          = internaltelemetry.UserInfo
	NavigationTiming  = internaltelemetry.NavigationTiming
	ResourceEntry     = internaltelemetry.ResourceEntry

	Host          = internaltelemetry.Host
	IdleRequester = internaltelemetry.IdleRequester
	MemoryHost    = internaltelemetry.MemoryHost

	Element        = internaltelemetry.Element
	ErrorEvent     = internaltelemetry.ErrorEvent
	RejectionEvent = internaltelemetry.RejectionEvent
	Listener       = internaltelemetry.Listener
	EventSource    = internaltelemetry.EventSource
	Bus            = internaltelemetry.Bus

	Scheduler    = internaltelemetry.Scheduler
	Uploader     = internaltelemetry.Uploader
	Beaconer     = internaltelemetry.Beaconer
	BeaconConfig = internaltelemetry.BeaconConfig
)

const (
	KindResource = internaltelemetry.KindResource
	KindScript   = internaltelemetry.KindScript
	KindPromise  = internaltelemetry.KindPromise
)

// New creates a Monitor reading from host and subscribed to events.
func New(host Host, events EventSource, opts ...Option) *Monitor {
	return internaltelemetry.New(host, events, opts...)
}

// NewMemoryHost creates a host whose timing data is set by the caller.
func NewMemoryHost(user UserInfo) *MemoryHost {
	return internaltelemetry.NewMemoryHost(user)
}

// NewBus creates an in-process event source.
func NewBus() *Bus {
	return internaltelemetry.NewBus()
}

// NewScheduler picks the idle or deferred scheduler for host.
func NewScheduler(host any, c clock.Clock) Scheduler {
	return internaltelemetry.NewScheduler(host, c)
}

var (
	WithClock      = internaltelemetry.WithClock
	WithLogger     = internaltelemetry.WithLogger
	WithUploader   = internaltelemetry.WithUploader
	WithURL        = internaltelemetry.WithURL
	WithScheduler  = internaltelemetry.WithScheduler
	WithAutoUpload = internaltelemetry.WithAutoUpload
	WithBeacon     = internaltelemetry.WithBeacon
)
