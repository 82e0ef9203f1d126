// Package session ties a monitor to the host and event bus that feed it,
// and applies recorded events to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// ErrUnknownKind is returned by Apply for records it cannot interpret.
var ErrUnknownKind = errors.New("session: unknown event kind")

// Session is one monitored page.
type Session struct {
	ID      string
	Created time.Time
	Host    *telemetry.MemoryHost
	Bus     *telemetry.Bus
	Monitor *telemetry.Monitor

	mu         sync.Mutex
	lastActive time.Time
}

// New creates a session whose monitor listens on a fresh bus and reads
// from an in-memory host.
func New(id string, created time.Time, user telemetry.UserInfo, opts ...telemetry.Option) *Session {
	host := telemetry.NewMemoryHost(user)
	bus := telemetry.NewBus()
	return &Session{
		ID:         id,
		Created:    created,
		Host:       host,
		Bus:        bus,
		Monitor:    telemetry.New(host, bus, opts...),
		lastActive: created,
	}
}

// Touch marks the session as used at t. Earlier times are ignored.
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.After(s.lastActive) {
		s.lastActive = t
	}
}

// LastActive returns when the session was last touched.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Apply performs the event described by rec. Session records are ignored
// since the session already exists.
func (s *Session) Apply(ctx context.Context, rec recorder.EventRecord) error {
	switch rec.Kind {
	case recorder.KindSession:
		return nil

	case recorder.KindTiming:
		var p recorder.TimingPayload
		if err := rec.Decode(&p); err != nil {
			return err
		}
		if p.Navigation != nil {
			s.Host.SetNavigationTiming(*p.Navigation)
		}
		s.Host.AddResourceEntries(p.Resources...)
		return nil

	case recorder.KindError:
		var ev telemetry.ErrorEvent
		if err := rec.Decode(&ev); err != nil {
			return err
		}
		s.Bus.PublishError(ev)
		return nil

	case recorder.KindRejection:
		var ev telemetry.RejectionEvent
		if len(rec.Payload) > 0 {
			if err := rec.Decode(&ev); err != nil {
				return err
			}
		}
		s.Bus.PublishRejection(ev)
		return nil

	case recorder.KindLoad:
		s.Bus.PublishLoad()
		return nil

	case recorder.KindAddError:
		var f telemetry.ErrorFields
		if err := rec.Decode(&f); err != nil {
			return err
		}
		s.Monitor.AddError(f)
		return nil

	case recorder.KindClearError:
		s.Monitor.ClearError()
		return nil

	case recorder.KindReset:
		s.Monitor.Reset()
		return nil

	case recorder.KindSetURL:
		var p recorder.URLPayload
		if err := rec.Decode(&p); err != nil {
			return err
		}
		s.Monitor.SetURL(p.URL)
		return nil

	case recorder.KindUpload:
		return s.Monitor.Upload(ctx)

	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, rec.Kind)
	}
}

// Close detaches the monitor from its bus.
func (s *Session) Close() {
	s.Monitor.Close()
}
