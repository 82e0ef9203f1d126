package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/pkg/clock"
)

type captureUploader struct{ reports []Report }

func (c *captureUploader) Upload(_ context.Context, _ string, r Report) error {
	c.reports = append(c.reports, r)
	return nil
}

func TestMonitorPublicAPI(t *testing.T) {
	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	host := NewMemoryHost(UserInfo{Platform: "Linux"})
	bus := NewBus()
	up := &captureUploader{}

	m := New(host, bus, WithClock(vc), WithUploader(up), WithURL("https://c.example.com/r"))
	defer m.Close()

	host.SetNavigationTiming(NavigationTiming{NavigationStart: 100, DOMLoading: 150, DOMComplete: 400, LoadEventEnd: 420})
	bus.PublishError(ErrorEvent{Target: &Element{LocalName: "img", Src: "a.png"}})
	bus.PublishLoad()
	vc.Advance(0)

	if err := m.Upload(context.Background()); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(up.reports) != 1 {
		t.Fatalf("uploads = %d, want 1", len(up.reports))
	}
	r := up.reports[0]
	if len(r.Errors) != 1 || r.Errors[0].Kind != KindResource {
		t.Fatalf("errors = %+v", r.Errors)
	}
	if r.Performance == nil || r.Performance.Load != 320 {
		t.Fatalf("performance = %+v", r.Performance)
	}
}
