package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/klok/internal/history"
	"github.com/himanishpuri/klok/internal/sampler"
	"github.com/himanishpuri/klok/pkg/klok"
	"github.com/himanishpuri/klok/pkg/logger"
	"github.com/himanishpuri/klok/pkg/utils"
)

var (
	recordURL      string
	recordDuration time.Duration
	recordInterval time.Duration
	recordOut      string
)

func init() {
	f := recordCmd.Flags()
	f.StringVar(&recordURL, "url", getEnvOrDefault(klok.PitchURLEnv, sampler.DefaultPitchURL), "Pitch service endpoint")
	f.DurationVarP(&recordDuration, "duration", "d", 30*time.Second, "How long to record")
	f.DurationVarP(&recordInterval, "interval", "i", sampler.DefaultInterval, "Sampling interval")
	f.StringVarP(&recordOut, "out", "o", "pitch.jsonl", "Output file, - for stdout")
	rootCmd.AddCommand(recordCmd)
}

// recordCapacity sizes the history so a full recording fits
func recordCapacity(d, interval time.Duration) int {
	if interval <= 0 {
		interval = sampler.DefaultInterval
	}
	return utils.MaxOf(int(d/interval)+1, history.DefaultCapacity)
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Poll the pitch service and save the readings as a pitch log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordDuration <= 0 {
			return fmt.Errorf("--duration must be positive")
		}
		log := logger.GetLogger().Named("record")

		start := time.Now()
		src := sampler.NewHTTPSource(recordURL, func() float64 {
			return time.Since(start).Seconds()
		})
		hist := history.New(recordCapacity(recordDuration, recordInterval))
		s := sampler.New(src, hist,
			sampler.WithLogger(log),
			sampler.WithErrorHandler(func(err error) {
				log.Debugf("Skipped sample: %v", err)
			}),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		fmt.Fprintf(cmd.ErrOrStderr(), "🎙️  Recording from %s for %s (Ctrl-C to stop early)\n", recordURL, recordDuration)
		s.Start(recordInterval)
		select {
		case <-time.After(recordDuration):
		case <-ctx.Done():
		}
		s.Stop()

		stats := s.Stats()
		samples := hist.Snapshot()

		var w io.Writer = cmd.OutOrStdout()
		if recordOut != "-" {
			f, err := os.Create(recordOut)
			if err != nil {
				return fmt.Errorf("creating %s: %w", recordOut, err)
			}
			defer f.Close()
			w = f
		}
		if err := writePitchLog(w, samples); err != nil {
			return fmt.Errorf("writing pitch log: %w", err)
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "✅ %d samples saved (%d polls, %d failed)\n", len(samples), stats.Ticks, stats.Failures)
		return nil
	},
}
