package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/session"
	"github.com/SmitUplenchwar2687/Beacon/internal/sink"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

const simulatedEndpoint = "memory://simulated"

func newSimulateCmd(ro *rootOptions) *cobra.Command {
	var (
		errorsPerBatch int
		interval       time.Duration
		autoUpload     time.Duration
		fastForward    time.Duration
		outputJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an error burst against a virtual clock",
		Long: `Publishes bursts of script errors into a monitor driven by a virtual
clock and shows when the debounced automatic upload fires. Minutes of
page time run in milliseconds.

The simulation sends a batch of errors, optionally fast-forwards time,
then sends another batch, so you can see bursts coalesce into a single
upload and quiet periods flush it.`,
		Example: `  beacon simulate --errors 10 --interval 100ms --auto-upload 1s
  beacon simulate --errors 5 --fast-forward 1m --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if errorsPerBatch <= 0 {
				return fmt.Errorf("--errors must be positive, got %d", errorsPerBatch)
			}
			if autoUpload <= 0 {
				return fmt.Errorf("--auto-upload must be positive, got %s", autoUpload)
			}

			logger, err := ro.logger(nil)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			vc := clock.NewVirtualClock(time.Now().Truncate(time.Second))
			result := runSimulation(vc, errorsPerBatch, interval, autoUpload, fastForward, telemetry.WithLogger(logger))

			out := cmd.OutOrStdout()
			if outputJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			printSimulation(out, &result)
			return nil
		},
	}

	cmd.Flags().IntVar(&errorsPerBatch, "errors", 10, "errors to publish per batch")
	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "virtual time between errors")
	cmd.Flags().DurationVar(&autoUpload, "auto-upload", time.Second, "quiet period before the report is uploaded")
	cmd.Flags().DurationVar(&fastForward, "fast-forward", 0, "time to fast-forward between batches")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

// SimulationResult captures the full output of a simulation run.
type SimulationResult struct {
	ErrorsPerBatch int           `json:"errors_per_batch"`
	Interval       string        `json:"interval"`
	AutoUpload     string        `json:"auto_upload"`
	FastForward    string        `json:"fast_forward,omitempty"`
	Batches        []BatchResult `json:"batches"`
	Uploads        []UploadEntry `json:"uploads"`
}

// BatchResult describes one burst of errors.
type BatchResult struct {
	Label   string `json:"label"`
	Start   string `json:"start"`
	Errors  int    `json:"errors"`  // errors in the report after the batch
	Uploads int    `json:"uploads"` // uploads so far
}

// UploadEntry is one automatic upload seen by the sink.
type UploadEntry struct {
	Time   string `json:"time"`
	Errors int    `json:"errors"`
}

func runSimulation(vc *clock.VirtualClock, errorsPerBatch int, interval, autoUpload, fastForward time.Duration, opts ...telemetry.Option) SimulationResult {
	mem := sink.NewMemory(vc, 0)
	opts = append([]telemetry.Option{
		telemetry.WithClock(vc),
		telemetry.WithUploader(mem),
		telemetry.WithURL(simulatedEndpoint),
		telemetry.WithAutoUpload(autoUpload),
	}, opts...)
	s := session.New("simulated", vc.Now(), telemetry.UserInfo{Platform: "simulated"}, opts...)
	defer s.Close()

	result := SimulationResult{
		ErrorsPerBatch: errorsPerBatch,
		Interval:       interval.String(),
		AutoUpload:     autoUpload.String(),
	}

	seq := 0
	burst := func(label string) {
		b := BatchResult{Label: label, Start: vc.Now().Format(time.RFC3339Nano)}
		for i := 0; i < errorsPerBatch; i++ {
			seq++
			s.Bus.PublishError(telemetry.ErrorEvent{
				Message:  fmt.Sprintf("simulated error %d", seq),
				Filename: "app.js",
				Line:     seq,
				Column:   1,
			})
			vc.Advance(interval)
		}
		b.Errors = len(s.Monitor.Errors())
		b.Uploads = mem.Len()
		result.Batches = append(result.Batches, b)
	}

	burst("Initial burst")
	if fastForward > 0 {
		vc.Advance(fastForward)
		result.FastForward = fastForward.String()
		burst(fmt.Sprintf("After fast-forward %s", fastForward))
	}

	// Let the last quiet period elapse.
	vc.Advance(autoUpload)

	for _, u := range mem.Uploads(simulatedEndpoint) {
		result.Uploads = append(result.Uploads, UploadEntry{
			Time:   u.ReceivedAt.Format(time.RFC3339Nano),
			Errors: len(u.Report.Errors),
		})
	}
	return result
}

func printSimulation(w io.Writer, r *SimulationResult) {
	printf(w, "=== Beacon Upload Simulation ===\n")
	printf(w, "  %d errors per batch, %s apart, auto-upload after %s quiet\n\n",
		r.ErrorsPerBatch, r.Interval, r.AutoUpload)

	bt := table.NewWriter()
	bt.SetStyle(table.StyleRounded)
	bt.AppendHeader(table.Row{"Batch", "Start", "Errors", "Uploads"})
	for _, b := range r.Batches {
		bt.AppendRow(table.Row{b.Label, b.Start, b.Errors, b.Uploads})
	}
	printf(w, "%s\n\n", bt.Render())

	ut := table.NewWriter()
	ut.SetStyle(table.StyleRounded)
	ut.AppendHeader(table.Row{"#", "Uploaded at", "Errors in report"})
	for i, u := range r.Uploads {
		ut.AppendRow(table.Row{i + 1, u.Time, u.Errors})
	}
	ut.AppendFooter(table.Row{"", "total", len(r.Uploads)})
	printf(w, "%s\n", ut.Render())

	if r.FastForward != "" {
		printf(w, "\nTime travel: fast-forwarded %s\n", r.FastForward)
	}
}
