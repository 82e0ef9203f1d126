package cli

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/config"
	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/replay"
)

func TestGenerateEvents(t *testing.T) {
	for _, pattern := range []string{"steady", "burst", "ramp"} {
		t.Run(pattern, func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			records, err := generateEvents(rng, epoch, 2, 9, time.Minute, pattern)
			if err != nil {
				t.Fatalf("generateEvents() error = %v", err)
			}

			// session, set_url, timing, load, errors and upload per session.
			if want := 2 * (4 + 9 + 1); len(records) != want {
				t.Fatalf("records = %d, want %d", len(records), want)
			}
			for i := 1; i < len(records); i++ {
				if records[i].Timestamp.Before(records[i-1].Timestamp) {
					t.Fatalf("records not sorted at %d", i)
				}
			}

			sessions := map[string]bool{}
			for _, r := range records {
				sessions[r.Session] = true
			}
			if len(sessions) != 2 {
				t.Errorf("sessions = %d, want 2", len(sessions))
			}
		})
	}
}

func TestGenerateEvents_SameSeedSameOutput(t *testing.T) {
	a, err := generateEvents(rand.New(rand.NewSource(7)), epoch, 1, 3, time.Minute, "burst")
	if err != nil {
		t.Fatal(err)
	}
	b, err := generateEvents(rand.New(rand.NewSource(7)), epoch, 1, 3, time.Minute, "burst")
	if err != nil {
		t.Fatal(err)
	}
	if a[0].Session != b[0].Session {
		t.Errorf("session ids differ: %s vs %s", a[0].Session, b[0].Session)
	}
}

func TestGenerateEvents_UnknownPattern(t *testing.T) {
	if _, err := generateEvents(rand.New(rand.NewSource(1)), epoch, 1, 1, time.Minute, "zigzag"); err == nil {
		t.Fatal("expected error for unknown pattern")
	}
}

func TestGeneratedEventsReplay(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	records, err := generateEvents(rng, epoch, 2, 6, time.Minute, "steady")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"events.ndjson", "events.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := writeRecords(path, records); err != nil {
				t.Fatalf("writeRecords() error = %v", err)
			}
			loaded, err := recorder.LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if len(loaded) != len(records) {
				t.Fatalf("loaded %d records, want %d", len(loaded), len(records))
			}

			r := replay.New(clock.NewVirtualClock(epoch), 0, replay.Filter{})
			r.LoadRecords(loaded)
			summary, err := r.Run(t.Context(), nil)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if summary.Failed != 0 {
				t.Errorf("failed = %d, want 0", summary.Failed)
			}
			for id, ss := range summary.PerSession {
				if ss.Errors != 6 {
					t.Errorf("%s errors = %d, want 6", id, ss.Errors)
				}
				if ss.Report.Performance == nil {
					t.Errorf("%s has no performance snapshot", id)
				}
				if ss.Report.URL != generatedUploadURL {
					t.Errorf("%s url = %q", id, ss.Report.URL)
				}
			}
		})
	}
}

func TestGenerateConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.yaml")

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate", "config", "--output", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate config failed: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated config is invalid: %v", err)
	}
}

func TestGenerateEventsCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate", "events", "--output", path, "--sessions", "1", "--errors", "2", "--seed", "9"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate events failed: %v", err)
	}

	records, err := recorder.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 7 {
		t.Errorf("records = %d, want 7", len(records))
	}
}
