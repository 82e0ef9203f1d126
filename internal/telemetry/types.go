// Package telemetry aggregates page performance and error events into a
// Report that can be uploaded to a collector.
//
// JSON field names use snake_case.
package telemetry

import (
	"time"
)

// Report is the mutable aggregate a Monitor maintains for one page.
type Report struct {
	URL         string             `json:"url,omitempty"`
	Performance *PerformanceTiming `json:"performance"`
	Resources   *ResourceSnapshot  `json:"resources"`
	Errors      []ErrorRecord      `json:"errors"`
	User        UserInfo           `json:"user"`
}

// PerformanceTiming holds page load phase durations in milliseconds.
type PerformanceTiming struct {
	Redirect    int64     `json:"redirect"`
	WhiteScreen int64     `json:"white_screen"`
	DOM         int64     `json:"dom"`
	Load        int64     `json:"load"`
	Unload      int64     `json:"unload"`
	Request     int64     `json:"request"`
	Time        time.Time `json:"time"` // when the snapshot was taken
}

// ResourceSnapshot groups resource timing records by initiator type.
type ResourceSnapshot struct {
	XMLHTTPRequest []ResourceRecord `json:"xmlhttprequest"`
	CSS            []ResourceRecord `json:"css"`
	Other          []ResourceRecord `json:"other"`
	Script         []ResourceRecord `json:"script"`
	Img            []ResourceRecord `json:"img"`
	Link           []ResourceRecord `json:"link"`
	Fetch          []ResourceRecord `json:"fetch"`
	Time           time.Time        `json:"time"`
}

// ResourceRecord is one loaded sub-resource.
type ResourceRecord struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration"` // ms, two decimals
	Size     int64   `json:"size"`     // transferred bytes
	Protocol string  `json:"protocol"`
}

// Len returns the total number of records across all groups.
func (s *ResourceSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.XMLHTTPRequest) + len(s.CSS) + len(s.Other) + len(s.Script) +
		len(s.Img) + len(s.Link) + len(s.Fetch)
}

// bucket returns the group for an initiator type, or nil when the type
// is not tracked.
func (s *ResourceSnapshot) bucket(initiator string) *[]ResourceRecord {
	switch initiator {
	case "xmlhttprequest":
		return &s.XMLHTTPRequest
	case "css":
		return &s.CSS
	case "other":
		return &s.Other
	case "script":
		return &s.Script
	case "img":
		return &s.Img
	case "link":
		return &s.Link
	case "fetch":
		return &s.Fetch
	default:
		return nil
	}
}

func (s *ResourceSnapshot) clone() *ResourceSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.XMLHTTPRequest = cloneRecords(s.XMLHTTPRequest)
	c.CSS = cloneRecords(s.CSS)
	c.Other = cloneRecords(s.Other)
	c.Script = cloneRecords(s.Script)
	c.Img = cloneRecords(s.Img)
	c.Link = cloneRecords(s.Link)
	c.Fetch = cloneRecords(s.Fetch)
	return &c
}

func cloneRecords(in []ResourceRecord) []ResourceRecord {
	if in == nil {
		return nil
	}
	out := make([]ResourceRecord, len(in))
	copy(out, in)
	return out
}

// ErrorKind discriminates error records.
type ErrorKind string

const (
	KindResource ErrorKind = "resource"
	KindScript   ErrorKind = "script"
	KindPromise  ErrorKind = "promise"
)

// ErrorRecord is one captured error. Which fields are set depends on Kind:
// resource errors carry URL and Msg, script errors add Row and Col,
// promise errors only carry Msg.
type ErrorRecord struct {
	Kind ErrorKind `json:"kind,omitempty"`
	Type string    `json:"type,omitempty"`
	Msg  string    `json:"msg,omitempty"`
	URL  string    `json:"url,omitempty"`
	Row  int       `json:"row,omitempty"`
	Col  int       `json:"col,omitempty"`
	Time time.Time `json:"time"`
}

// ErrorFields is a partial error description passed to Monitor.AddError.
// Zero-valued fields are left out of the resulting record.
type ErrorFields struct {
	Kind ErrorKind `json:"kind,omitempty"`
	Type string    `json:"type,omitempty"`
	Msg  string    `json:"msg,omitempty"`
	URL  string    `json:"url,omitempty"`
	Row  int       `json:"row,omitempty"`
	Col  int       `json:"col,omitempty"`
}

// UserInfo is the static client description captured when a Monitor is created.
type UserInfo struct {
	Screen    int    `json:"screen"` // screen width
	Height    int    `json:"height"`
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
	Language  string `json:"language"`
}

// NavigationTiming mirrors the legacy navigation timing fields, in epoch
// milliseconds. Unset phases are zero.
type NavigationTiming struct {
	NavigationStart  int64 `json:"navigation_start"`
	RedirectStart    int64 `json:"redirect_start"`
	RedirectEnd      int64 `json:"redirect_end"`
	UnloadEventStart int64 `json:"unload_event_start"`
	UnloadEventEnd   int64 `json:"unload_event_end"`
	RequestStart     int64 `json:"request_start"`
	ResponseEnd      int64 `json:"response_end"`
	DOMLoading       int64 `json:"dom_loading"`
	DOMComplete      int64 `json:"dom_complete"`
	LoadEventEnd     int64 `json:"load_event_end"`
}

// ResourceEntry is one resource timing entry as reported by the page.
// Times are milliseconds relative to navigation start.
type ResourceEntry struct {
	Name            string  `json:"name"`
	InitiatorType   string  `json:"initiator_type"`
	StartTime       float64 `json:"start_time"`
	ResponseEnd     float64 `json:"response_end"`
	Duration        float64 `json:"duration"`
	TransferSize    int64   `json:"transfer_size"`
	NextHopProtocol string  `json:"next_hop_protocol"`
}
