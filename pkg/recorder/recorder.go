package recorder

import (
	"io"
	"time"

	internalrecorder "github.com/SmitUplenchwar2687/Beacon/internal/recorder"
)

// Kind identifies what happened to a session.
type Kind = internalrecorder.Kind

const (
	KindSession    = internalrecorder.KindSession
	KindTiming     = internalrecorder.KindTiming
	KindError      = internalrecorder.KindError
	KindRejection  = internalrecorder.KindRejection
	KindLoad       = internalrecorder.KindLoad
	KindAddError   = internalrecorder.KindAddError
	KindClearError = internalrecorder.KindClearError
	KindReset      = internalrecorder.KindReset
	KindSetURL     = internalrecorder.KindSetURL
	KindUpload     = internalrecorder.KindUpload
)

// EventRecord is a single captured session event.
type EventRecord = internalrecorder.EventRecord

// TimingPayload carries a page's navigation and resource timing.
type TimingPayload = internalrecorder.TimingPayload

// URLPayload carries a new upload endpoint.
type URLPayload = internalrecorder.URLPayload

// Recorder captures session events for later replay.
type Recorder = internalrecorder.Recorder

// New creates a new Recorder.
func New(w io.Writer) *Recorder {
	return internalrecorder.New(w)
}

// NewRecord builds a record with payload encoded as JSON.
func NewRecord(ts time.Time, session string, kind Kind, payload any) (EventRecord, error) {
	return internalrecorder.NewRecord(ts, session, kind, payload)
}

// LoadJSON reads event records from a JSON array.
func LoadJSON(r io.Reader) ([]EventRecord, error) {
	return internalrecorder.LoadJSON(r)
}

// LoadNDJSON reads newline-delimited event records.
func LoadNDJSON(r io.Reader) ([]EventRecord, error) {
	return internalrecorder.LoadNDJSON(r)
}

// LoadFile reads a JSON array or NDJSON file.
func LoadFile(path string) ([]EventRecord, error) {
	return internalrecorder.LoadFile(path)
}
