package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/replay"
)

func TestNewReplayCmd_JSONOutput(t *testing.T) {
	path := writeReplayFixture(t)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"replay", "--file", path, "--json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay command failed: %v", err)
	}

	var got struct {
		Results []replay.Result `json:"results"`
		Summary replay.Summary  `json:"summary"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out.String())
	}
	if got.Summary.Replayed != 4 {
		t.Errorf("replayed = %d, want 4", got.Summary.Replayed)
	}
	ss, ok := got.Summary.PerSession["s1"]
	if !ok {
		t.Fatal("missing session s1 in summary")
	}
	if ss.Errors != 3 {
		t.Errorf("s1 errors = %d, want 3", ss.Errors)
	}
	if ss.Report.User.Platform != "Linux" {
		t.Errorf("s1 platform = %q, want Linux", ss.Report.User.Platform)
	}
}

func TestNewReplayCmd_TableOutput(t *testing.T) {
	path := writeReplayFixture(t)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"replay", "--file", path, "--kinds", "session,error"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay command failed: %v", err)
	}

	s := out.String()
	if !strings.Contains(s, "Replay Summary") {
		t.Errorf("output missing summary:\n%s", s)
	}
	if !strings.Contains(s, "Filtered:       3") {
		t.Errorf("expected 3 filtered records:\n%s", s)
	}
	if !strings.Contains(s, "s1") {
		t.Errorf("expected per-session table row:\n%s", s)
	}
}

func TestNewReplayCmd_Errors(t *testing.T) {
	path := writeReplayFixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file flag", []string{"replay"}},
		{"file does not exist", []string{"replay", "--file", filepath.Join(t.TempDir(), "nope.ndjson")}},
		{"unknown kind", []string{"replay", "--file", path, "--kinds", "scroll"}},
		{"bad after", []string{"replay", "--file", path, "--after", "yesterday"}},
		{"bad sink", []string{"replay", "--file", path, "--upload", "--sink", "carrier-pigeon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildFilter(t *testing.T) {
	f, err := buildFilter([]string{"a"}, []string{" Error ", "load"}, "2024-01-01T00:00:00Z", "")
	if err != nil {
		t.Fatalf("buildFilter() error = %v", err)
	}
	if len(f.Kinds) != 2 || f.Kinds[0] != recorder.KindError || f.Kinds[1] != recorder.KindLoad {
		t.Errorf("kinds = %v", f.Kinds)
	}
	if !f.After.Equal(epoch) {
		t.Errorf("after = %v, want %v", f.After, epoch)
	}
	if !f.Before.IsZero() {
		t.Errorf("before = %v, want zero", f.Before)
	}
}

// writeReplayFixture writes an NDJSON recording of one session with three
// errors. The records are out of order.
func writeReplayFixture(t *testing.T) string {
	t.Helper()

	traffic := `{"timestamp":"2024-01-01T00:00:02Z","session":"s1","kind":"error","payload":{"message":"boom","filename":"app.js","line":3}}
{"timestamp":"2024-01-01T00:00:00Z","session":"s1","kind":"session","payload":{"platform":"Linux"}}
{"timestamp":"2024-01-01T00:00:03Z","session":"s1","kind":"rejection","payload":{"reason":"nope"}}
{"timestamp":"2024-01-01T00:00:01Z","session":"s1","kind":"error","payload":{"target":{"local_name":"img","src":"x.png"}}}
`
	path := filepath.Join(t.TempDir(), "sessions.ndjson")
	if err := os.WriteFile(path, []byte(traffic), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
