package server

import (
	"github.com/SmitUplenchwar2687/Beacon/internal/limiter"
	"github.com/SmitUplenchwar2687/Beacon/internal/session"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// watcher streams one session's errors to the hub and pushes throttled
// report snapshots.
type watcher struct {
	unsubscribe func()
	snapshots   *limiter.Throttler[struct{}]
}

func (w *watcher) stop() {
	w.unsubscribe()
	w.snapshots.Cancel()
}

func (s *Server) watch(sess *session.Session) {
	id := sess.ID
	snap := limiter.NewThrottler(func(struct{}) {
		report := sess.Monitor.Report()
		s.hub.Broadcast(Frame{Type: FrameReport, Session: id, Report: &report, Time: s.clock.Now()})
	}, s.snapshot.Wait, s.clock, append(s.snapshot.Options(), limiter.WithLogger(s.logger))...)

	unsub := sess.Monitor.Subscribe(func(rec telemetry.ErrorRecord) {
		s.hub.Broadcast(Frame{Type: FrameError, Session: id, Error: &rec, Time: rec.Time})
		snap.Call(struct{}{})
	})

	s.mu.Lock()
	s.watchers[id] = &watcher{unsubscribe: unsub, snapshots: snap}
	s.mu.Unlock()
}

func (s *Server) unwatch(id string) {
	s.mu.Lock()
	w, ok := s.watchers[id]
	delete(s.watchers, id)
	s.mu.Unlock()

	if ok {
		w.stop()
	}
}

func (s *Server) pushSnapshot(id string) {
	s.mu.Lock()
	w, ok := s.watchers[id]
	s.mu.Unlock()

	if ok {
		w.snapshots.Call(struct{}{})
	}
}
