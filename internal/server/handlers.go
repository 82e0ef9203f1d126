package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/session"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

type ctxKey struct{}

// eventRequest is the body of POST /api/sessions/{id}/events.
type eventRequest struct {
	Type string `json:"type"` // error, rejection or load

	Target   *telemetry.Element `json:"target,omitempty"`
	Message  string             `json:"message,omitempty"`
	Filename string             `json:"filename,omitempty"`
	Line     int                `json:"line,omitempty"`
	Column   int                `json:"column,omitempty"`
	Stack    string             `json:"stack,omitempty"`

	Reason any `json:"reason,omitempty"`
}

type sessionInfo struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Errors  int       `json:"errors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"clients":  s.hub.ClientCount(),
		"time":     s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(DashboardHTML))
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if s.uploads == nil {
		writeError(w, http.StatusNotFound, "memory sink is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.uploads.All())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.IDs()
	out := make([]sessionInfo, 0, len(ids))
	for _, id := range ids {
		sess, ok := s.sessions.Get(id)
		if !ok {
			continue
		}
		out = append(out, sessionInfo{ID: id, Created: sess.Created, Errors: len(sess.Monitor.Errors())})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var user telemetry.UserInfo
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &user); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if user.UserAgent == "" {
		user.UserAgent = r.UserAgent()
	}

	sess := s.sessions.Create(user)
	s.watch(sess)
	s.record(sess.ID, recorder.KindSession, user)

	writeJSON(w, http.StatusCreated, sessionInfo{ID: sess.ID, Created: sess.Created})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.unwatch(sess.ID)
	s.sessions.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()).Monitor.Report())
}

func (s *Server) handleTiming(w http.ResponseWriter, r *http.Request) {
	var p recorder.TimingPayload
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Navigation == nil && len(p.Resources) == 0 {
		writeError(w, http.StatusBadRequest, "navigation or resources is required")
		return
	}
	s.dispatch(w, r, recorder.KindTiming, p)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch recorder.Kind(req.Type) {
	case recorder.KindError:
		s.dispatch(w, r, recorder.KindError, telemetry.ErrorEvent{
			Target:   req.Target,
			Message:  req.Message,
			Filename: req.Filename,
			Line:     req.Line,
			Column:   req.Column,
			Stack:    req.Stack,
		})
	case recorder.KindRejection:
		s.dispatch(w, r, recorder.KindRejection, telemetry.RejectionEvent{Reason: req.Reason})
	case recorder.KindLoad:
		s.dispatch(w, r, recorder.KindLoad, nil)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown event type %q, must be error, rejection or load", req.Type))
	}
}

func (s *Server) handleAddError(w http.ResponseWriter, r *http.Request) {
	var f telemetry.ErrorFields
	if err := decodeBody(w, r, &f); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatch(w, r, recorder.KindAddError, f)
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, recorder.KindClearError, nil)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, recorder.KindReset, nil)
}

func (s *Server) handleSetURL(w http.ResponseWriter, r *http.Request) {
	var p recorder.URLPayload
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.dispatch(w, r, recorder.KindSetURL, p)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, recorder.KindUpload, nil)
}

// dispatch records the event and applies it to the request's session.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, kind recorder.Kind, payload any) {
	sess := sessionFrom(r.Context())

	rec, err := recorder.NewRecord(s.clock.Now(), sess.ID, kind, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.keep(rec)

	if err := sess.Apply(r.Context(), rec); err != nil {
		if errors.Is(err, session.ErrUnknownKind) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Only uploads reach a remote service.
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	switch kind {
	case recorder.KindTiming, recorder.KindReset, recorder.KindClearError:
		s.pushSnapshot(sess.ID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"session": sess.ID,
		"kind":    kind,
		"errors":  len(sess.Monitor.Errors()),
	})
}

func (s *Server) record(id string, kind recorder.Kind, payload any) {
	rec, err := recorder.NewRecord(s.clock.Now(), id, kind, payload)
	if err != nil {
		s.logger.Warn("building record failed", zap.Error(err))
		return
	}
	s.keep(rec)
}

func (s *Server) keep(rec recorder.EventRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(rec); err != nil {
		s.logger.Warn("record error", zap.String("session", rec.Session), zap.Error(err))
	}
}

// withSession resolves {id} and stores the session in the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, ok := s.sessions.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("session %q not found", id))
			return
		}
		sess.Touch(s.clock.Now())
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *session.Session {
	return ctx.Value(ctxKey{}).(*session.Session)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
