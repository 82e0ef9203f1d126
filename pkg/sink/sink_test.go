package sink

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/pkg/clock"
	"github.com/SmitUplenchwar2687/Beacon/pkg/telemetry"
)

func TestOpenMemoryAndLog(t *testing.T) {
	vc := clock.NewVirtualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	s, err := Open(Config{Kinds: []Kind{KindMemory, KindLog}}, vc, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if err := s.Upload(context.Background(), "https://c.example.com/r", telemetry.Report{}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := s.Send(context.Background(), "https://c.example.com/b", "GET", url.Values{"domComplete": {"650"}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	mem := MemoryOf(s)
	if mem == nil {
		t.Fatal("expected a memory sink")
	}
	if mem.Len() != 1 || len(mem.Beacons()) != 1 {
		t.Fatalf("memory holds %d uploads and %d beacons, want 1 and 1", mem.Len(), len(mem.Beacons()))
	}
}
