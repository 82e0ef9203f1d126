package cli

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Beacon/internal/config"
	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

const generatedUploadURL = "https://collector.example.com/reports"

func newGenerateCmd(_ *rootOptions) *cobra.Command {
	var (
		output   string
		sessions int
		errCount int
		duration time.Duration
		pattern  string
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample session recordings and config",
		Long: `Generates sample data for testing and experimentation.

Use "generate events" to create a recording that "beacon replay" accepts.
Use "generate config" to create an example YAML config file.`,
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Generate a sample session recording",
		Long: `Creates a recording of page sessions. Each session posts its timing,
fires the load event, raises errors and finally uploads its report.

Files ending in .json hold a JSON array; anything else is NDJSON.

Patterns:
  steady    Errors evenly spread over the duration
  burst     Errors concentrated in short bursts
  ramp      Error rate grows towards the end`,
		Example: `  beacon generate events --output sessions.ndjson --sessions 3 --errors 20
  beacon generate events --output burst.json --pattern burst --duration 10m --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessions <= 0 {
				return fmt.Errorf("--sessions must be positive, got %d", sessions)
			}
			if errCount < 0 {
				return fmt.Errorf("--errors must not be negative, got %d", errCount)
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			rng := rand.New(rand.NewSource(seed))
			start := time.Now().Truncate(time.Second)
			records, err := generateEvents(rng, start, sessions, errCount, duration, pattern)
			if err != nil {
				return err
			}
			if err := writeRecords(output, records); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printf(out, "Generated %d records to %s\n", len(records), output)
			printf(out, "  Sessions: %d\n", sessions)
			printf(out, "  Errors:   %d per session\n", errCount)
			printf(out, "  Duration: %s\n", duration)
			printf(out, "  Pattern:  %s\n", pattern)
			return nil
		},
	}

	eventsCmd.Flags().StringVar(&output, "output", "sessions.ndjson", "output file path")
	eventsCmd.Flags().IntVar(&sessions, "sessions", 3, "number of page sessions")
	eventsCmd.Flags().IntVar(&errCount, "errors", 10, "errors raised per session")
	eventsCmd.Flags().DurationVar(&duration, "duration", 5*time.Minute, "time span the errors are spread over")
	eventsCmd.Flags().StringVar(&pattern, "pattern", "steady", "error pattern (steady, burst, ramp)")
	eventsCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 = time based)")

	var configOut string
	configCmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate an example YAML config file",
		Example: `  beacon generate config --output beacon.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(configOut); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Generated example config at %s\n", configOut)
			return nil
		},
	}

	configCmd.Flags().StringVar(&configOut, "output", "beacon.yaml", "output file path")

	cmd.AddCommand(eventsCmd, configCmd)
	return cmd
}

var sampleUsers = []telemetry.UserInfo{
	{Screen: 1920, Height: 1080, Platform: "Win32", UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", Language: "en-US"},
	{Screen: 1440, Height: 900, Platform: "MacIntel", UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)", Language: "en-GB"},
	{Screen: 390, Height: 844, Platform: "iPhone", UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)", Language: "fr-FR"},
	{Screen: 412, Height: 915, Platform: "Linux armv8l", UserAgent: "Mozilla/5.0 (Linux; Android 14)", Language: "de-DE"},
}

var sampleResources = []telemetry.ResourceEntry{
	{Name: "https://cdn.example.com/app.js", InitiatorType: "script", NextHopProtocol: "h2"},
	{Name: "https://cdn.example.com/app.css", InitiatorType: "link", NextHopProtocol: "h2"},
	{Name: "https://cdn.example.com/hero.png", InitiatorType: "img", NextHopProtocol: "h2"},
	{Name: "https://api.example.com/v1/me", InitiatorType: "fetch", NextHopProtocol: "h3"},
	{Name: "https://api.example.com/v1/feed", InitiatorType: "xmlhttprequest", NextHopProtocol: "http/1.1"},
}

// generateEvents builds a recording of n sessions, sorted by time.
func generateEvents(rng *rand.Rand, start time.Time, n, errCount int, dur time.Duration, pattern string) ([]recorder.EventRecord, error) {
	var offsets func(*rand.Rand, int, time.Duration) []time.Duration
	switch pattern {
	case "steady":
		offsets = steadyOffsets
	case "burst":
		offsets = burstOffsets
	case "ramp":
		offsets = rampOffsets
	default:
		return nil, fmt.Errorf("unknown pattern %q (must be steady, burst or ramp)", pattern)
	}

	var records []recorder.EventRecord
	add := func(ts time.Time, id string, kind recorder.Kind, payload any) error {
		rec, err := recorder.NewRecord(ts, id, kind, payload)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	}

	for i := 0; i < n; i++ {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("generating session id: %w", err)
		}
		sid := id.String()
		t0 := start.Add(time.Duration(i) * time.Second)

		steps := []struct {
			at      time.Duration
			kind    recorder.Kind
			payload any
		}{
			{0, recorder.KindSession, sampleUsers[rng.Intn(len(sampleUsers))]},
			{10 * time.Millisecond, recorder.KindSetURL, recorder.URLPayload{URL: generatedUploadURL}},
			{1500 * time.Millisecond, recorder.KindTiming, sampleTiming(rng, t0)},
			{1600 * time.Millisecond, recorder.KindLoad, nil},
		}
		for _, s := range steps {
			if err := add(t0.Add(s.at), sid, s.kind, s.payload); err != nil {
				return nil, err
			}
		}

		errStart := t0.Add(2 * time.Second)
		for j, off := range offsets(rng, errCount, dur) {
			kind, payload := sampleError(rng, j)
			if err := add(errStart.Add(off), sid, kind, payload); err != nil {
				return nil, err
			}
		}

		if err := add(errStart.Add(dur+time.Second), sid, recorder.KindUpload, nil); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func sampleTiming(rng *rand.Rand, t0 time.Time) recorder.TimingPayload {
	nav := t0.UnixMilli()
	loading := nav + 50 + rng.Int63n(300)
	complete := loading + 200 + rng.Int63n(800)
	timing := telemetry.NavigationTiming{
		NavigationStart: nav,
		RequestStart:    nav + 5,
		ResponseEnd:     nav + 40,
		DOMLoading:      loading,
		DOMComplete:     complete,
		LoadEventEnd:    complete + 20,
	}

	var resources []telemetry.ResourceEntry
	for _, r := range sampleResources {
		r.StartTime = float64(rng.Intn(200))
		r.Duration = float64(rng.Intn(120000)) / 100
		r.ResponseEnd = r.StartTime + r.Duration
		r.TransferSize = int64(1024 + rng.Intn(200*1024))
		resources = append(resources, r)
	}
	return recorder.TimingPayload{Navigation: &timing, Resources: resources}
}

// sampleError cycles through resource, script and rejection errors.
func sampleError(rng *rand.Rand, i int) (recorder.Kind, any) {
	switch i % 3 {
	case 0:
		// Only elements raise load errors: script, link or img.
		r := sampleResources[rng.Intn(3)]
		return recorder.KindError, telemetry.ErrorEvent{
			Target: &telemetry.Element{LocalName: r.InitiatorType, Src: r.Name},
		}
	case 1:
		line := 1 + rng.Intn(500)
		return recorder.KindError, telemetry.ErrorEvent{
			Message:  "TypeError: Cannot read properties of undefined",
			Filename: "https://cdn.example.com/app.js",
			Line:     line,
			Column:   1 + rng.Intn(80),
			Stack:    fmt.Sprintf("TypeError: Cannot read properties of undefined\n    at render (app.js:%d)", line),
		}
	default:
		return recorder.KindRejection, telemetry.RejectionEvent{
			Reason: map[string]any{"message": "request failed with status 503"},
		}
	}
}

func steadyOffsets(_ *rand.Rand, n int, dur time.Duration) []time.Duration {
	out := make([]time.Duration, n)
	if n == 0 {
		return out
	}
	interval := dur / time.Duration(n)
	for i := range out {
		out[i] = time.Duration(i) * interval
	}
	return out
}

func burstOffsets(rng *rand.Rand, n int, dur time.Duration) []time.Duration {
	const numBursts = 4
	out := make([]time.Duration, 0, n)
	burstSize := n / numBursts
	burstGap := dur / numBursts

	for b := 0; b < numBursts; b++ {
		for i := 0; i < burstSize; i++ {
			// Errors within a burst land within a second of each other.
			jitter := time.Duration(rng.Intn(1000)) * time.Millisecond
			out = append(out, time.Duration(b)*burstGap+jitter)
		}
	}
	for len(out) < n {
		out = append(out, time.Duration(rng.Int63n(int64(dur)+1)))
	}
	return out
}

func rampOffsets(_ *rand.Rand, n int, dur time.Duration) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		frac := float64(i) / float64(n)
		out[i] = time.Duration(frac * frac * float64(dur))
	}
	return out
}

// writeRecords writes a JSON array for .json paths and NDJSON otherwise.
func writeRecords(path string, records []recorder.EventRecord) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		rec := recorder.New(nil)
		for _, r := range records {
			if err := rec.Record(r); err != nil {
				return err
			}
		}
		return rec.ExportFile(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	rec := recorder.New(f)
	for _, r := range records {
		if err := rec.Record(r); err != nil {
			return err
		}
	}
	return f.Close()
}
