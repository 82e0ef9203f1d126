package recorder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// Kind identifies what happened to a session.
type Kind string

const (
	KindSession    Kind = "session"     // payload: telemetry.UserInfo
	KindTiming     Kind = "timing"      // payload: TimingPayload
	KindError      Kind = "error"       // payload: telemetry.ErrorEvent
	KindRejection  Kind = "rejection"   // payload: telemetry.RejectionEvent
	KindLoad       Kind = "load"        // no payload
	KindAddError   Kind = "add_error"   // payload: telemetry.ErrorFields
	KindClearError Kind = "clear_error" // no payload
	KindReset      Kind = "reset"       // no payload
	KindSetURL     Kind = "set_url"     // payload: URLPayload
	KindUpload     Kind = "upload"      // no payload
)

// Kinds returns every known kind in lifecycle order.
func Kinds() []Kind {
	return []Kind{
		KindSession, KindTiming, KindError, KindRejection, KindLoad,
		KindAddError, KindClearError, KindReset, KindSetURL, KindUpload,
	}
}

// EventRecord is a single captured session event.
type EventRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Session   string          `json:"session"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TimingPayload carries the measurements a page posts after it loads.
type TimingPayload struct {
	Navigation *telemetry.NavigationTiming `json:"navigation,omitempty"`
	Resources  []telemetry.ResourceEntry   `json:"resources,omitempty"`
}

// URLPayload carries a new upload endpoint.
type URLPayload struct {
	URL string `json:"url"`
}

// NewRecord builds a record, encoding payload as JSON. A nil payload
// leaves Payload empty.
func NewRecord(ts time.Time, session string, kind Kind, payload any) (EventRecord, error) {
	rec := EventRecord{Timestamp: ts, Session: session, Kind: kind}
	if payload == nil {
		return rec, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return rec, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	rec.Payload = b
	return rec, nil
}

// Decode unmarshals the payload into v.
func (r EventRecord) Decode(v any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("%s record has no payload", r.Kind)
	}
	if err := json.Unmarshal(r.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", r.Kind, err)
	}
	return nil
}
