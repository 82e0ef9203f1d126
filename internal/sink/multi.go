package sink

import (
	"context"
	"errors"
	"net/url"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// Multi fans uploads and beacons out to several sinks concurrently.
// It returns the first error; the remaining sinks still run to completion.
type Multi struct {
	sinks []Sink
}

var _ Sink = (*Multi)(nil)

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Upload(ctx context.Context, endpoint string, r telemetry.Report) error {
	var g errgroup.Group
	for _, s := range m.sinks {
		g.Go(func() error { return s.Upload(ctx, endpoint, r) })
	}
	return g.Wait()
}

func (m *Multi) Send(ctx context.Context, endpoint, method string, data url.Values) error {
	var g errgroup.Group
	for _, s := range m.sinks {
		g.Go(func() error { return s.Send(ctx, endpoint, method, data) })
	}
	return g.Wait()
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// Sinks returns the wrapped sinks.
func (m *Multi) Sinks() []Sink { return slices.Clone(m.sinks) }

// MemoryOf returns the first Memory sink in s, looking inside a Multi.
func MemoryOf(s Sink) *Memory {
	switch v := s.(type) {
	case *Memory:
		return v
	case *Multi:
		for _, inner := range v.sinks {
			if mem := MemoryOf(inner); mem != nil {
				return mem
			}
		}
	}
	return nil
}
