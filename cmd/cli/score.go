package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/klok/internal/scoring"
	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

var (
	scoreOpts = models.DefaultScoreOptions()
	scoreJSON bool
	noWeight  bool
)

func init() {
	f := scoreCmd.Flags()
	f.Float64Var(&scoreOpts.Tolerance, "tolerance", scoreOpts.Tolerance, "Semitone error at which a sample scores zero")
	f.Float64Var(&scoreOpts.Margin, "margin", scoreOpts.Margin, "Seconds added before and after each note")
	f.IntVar(&scoreOpts.MinSamples, "min-samples", scoreOpts.MinSamples, "Samples needed for full confidence")
	f.BoolVar(&noWeight, "no-weight", false, "Average notes equally instead of by duration")
	f.BoolVar(&scoreJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(scoreCmd)
}

var scoreCmd = &cobra.Command{
	Use:   "score <file.mid|song> <pitch.jsonl>",
	Short: "Score a recorded pitch log against a song's notes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := loadNotes(args[0])
		if err != nil {
			return err
		}
		samples, err := readPitchLogFile(args[1])
		if err != nil {
			return err
		}

		opts := scoreOpts
		opts.WeightByDuration = !noWeight
		res := scoring.ScoreNotes(notes, samples, opts)

		out := cmd.OutOrStdout()
		if scoreJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printScore(out, res)
		return nil
	},
}

func printScore(out io.Writer, res models.ScoreResult) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNOTE\tSTART\tDUR\tSAMPLES\tERR\tSCORE")
	for _, ns := range res.PerNote {
		errText := "-"
		if ns.MeanError != nil {
			errText = fmt.Sprintf("%.2f", *ns.MeanError)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%d\t%s\t%3.0f%%\n",
			ns.Index, utils.NoteName(ns.Note), ns.Start, ns.Duration, ns.SampleCount, errText, ns.Score*100)
	}
	tw.Flush()
	fmt.Fprintf(out, "\n🏆 Overall: %.1f%%\n", res.Overall*100)
}
