package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/replay"
	"github.com/SmitUplenchwar2687/Beacon/internal/sink"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

func newReplayCmd(ro *rootOptions) *cobra.Command {
	var (
		file       string
		speed      float64
		sessions   []string
		kinds      []string
		after      string
		before     string
		upload     bool
		outputJSON bool
		sinkOpts   = defaultSinkOptions()
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded session events into fresh monitors",
		Long: `Replays previously recorded session events with speed control.

Records are replayed in timestamp order into one monitor per session.
The virtual clock advances to match the time gaps between records, so
deferred snapshots and debounced uploads fire exactly as they did live.

The file may be a JSON array or newline-delimited JSON.
Speed: 0 = instant, 1 = real-time, 10 = 10x, 100 = 100x`,
		Example: `  beacon replay --file sessions.ndjson
  beacon replay --file sessions.ndjson --speed 10 --kinds error,rejection
  beacon replay --file sessions.ndjson --sessions 5b1e... --json
  beacon replay --file sessions.ndjson --upload --sink log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			filter, err := buildFilter(sessions, kinds, after, before)
			if err != nil {
				return err
			}

			records, err := recorder.LoadFile(file)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("%s has no records", file)
			}

			logger, err := ro.logger(nil)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			vc := clock.NewVirtualClock(earliest(records))
			opts := []replay.Option{replay.WithLogger(logger)}
			if upload {
				cfg, err := ro.loadConfig()
				if err != nil {
					return err
				}
				sc, err := sinkOpts.resolve(cmd, cfg.Sink)
				if err != nil {
					return err
				}
				snk, err := sink.Open(sc, vc, logger)
				if err != nil {
					return fmt.Errorf("opening sink: %w", err)
				}
				defer snk.Close()
				opts = append(opts, replay.WithMonitorOptions(telemetry.WithUploader(snk)))
			} else {
				// Recorded uploads still run, into a sink nobody reads.
				opts = append(opts, replay.WithMonitorOptions(telemetry.WithUploader(sink.NewMemory(vc, 0))))
			}

			r := replay.New(vc, speed, filter, opts...)
			r.LoadRecords(records)

			out := cmd.OutOrStdout()
			if !outputJSON {
				printf(out, "Replaying %s at %gx speed...\n\n", file, speed)
			}

			var results []replay.Result
			summary, err := r.Run(cmd.Context(), func(res replay.Result) {
				if outputJSON {
					results = append(results, res)
					return
				}
				status := "OK  "
				if res.Err != nil {
					status = "FAIL"
				}
				printf(out, "  [%s] %s session=%s kind=%s errors=%d\n",
					status,
					res.Record.Timestamp.Format("15:04:05.000"),
					res.Record.Session,
					res.Record.Kind,
					res.Errors)
			})
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"results": results,
					"summary": summary,
				})
			}

			printReplaySummary(out, summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to recorded events (JSON array or NDJSON, required)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "replay speed (0=instant, 1=real-time, 10=10x)")
	cmd.Flags().StringSliceVar(&sessions, "sessions", nil, "only replay these session ids (comma-separated)")
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "only replay these event kinds (comma-separated)")
	cmd.Flags().StringVar(&after, "after", "", "only replay records after this RFC 3339 time")
	cmd.Flags().StringVar(&before, "before", "", "only replay records before this RFC 3339 time")
	cmd.Flags().BoolVar(&upload, "upload", false, "send replayed uploads through the configured sinks")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")
	sinkOpts.addFlags(cmd)

	return cmd
}

func buildFilter(sessions, kinds []string, after, before string) (replay.Filter, error) {
	f := replay.Filter{Sessions: sessions}
	for _, k := range kinds {
		kind := recorder.Kind(strings.ToLower(strings.TrimSpace(k)))
		if !slices.Contains(recorder.Kinds(), kind) {
			return replay.Filter{}, fmt.Errorf("unknown event kind %q", k)
		}
		f.Kinds = append(f.Kinds, kind)
	}

	var err error
	if f.After, err = parseTimeFlag("after", after); err != nil {
		return replay.Filter{}, err
	}
	if f.Before, err = parseTimeFlag("before", before); err != nil {
		return replay.Filter{}, err
	}
	return f, nil
}

func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t, nil
}

func earliest(records []recorder.EventRecord) time.Time {
	first := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
	}
	return first
}

func printReplaySummary(w io.Writer, s *replay.Summary) {
	printf(w, "\n--- Replay Summary ---\n")
	printf(w, "  Total records:  %d\n", s.TotalRecords)
	printf(w, "  Filtered:       %d\n", s.Filtered)
	printf(w, "  Replayed:       %d\n", s.Replayed)
	printf(w, "  Failed:         %d\n", s.Failed)
	printf(w, "  Virtual time:   %s\n", s.Duration)
	printf(w, "  Wall time:      %s\n\n", s.WallDuration.Round(time.Millisecond))

	if len(s.PerSession) == 0 {
		return
	}

	ids := make([]string, 0, len(s.PerSession))
	for id := range s.PerSession {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Session", "Events", "Failed", "Errors", "Resources", "Load (ms)"})
	for _, id := range ids {
		ss := s.PerSession[id]
		load := "-"
		if ss.Report.Performance != nil {
			load = fmt.Sprint(ss.Report.Performance.Load)
		}
		t.AppendRow(table.Row{id, ss.Events, ss.Failed, ss.Errors, ss.Report.Resources.Len(), load})
	}
	printf(w, "%s\n", t.Render())
}
