package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/klok/internal/media"
	"github.com/himanishpuri/klok/internal/syncstate"
	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

var notesDump bool

func init() {
	notesCmd.Flags().BoolVar(&notesDump, "dump", false, "Dump the decoded notes structurally")
	rootCmd.AddCommand(notesCmd, lyricsCmd)
}

// loadNotes reads a .mid path directly, or resolves a song in the library
func loadNotes(arg string) ([]models.MidiNote, error) {
	if strings.EqualFold(filepath.Ext(arg), ".mid") && utils.FileExists(arg) {
		return media.ReadNotesFile(arg)
	}
	return library().Notes(arg)
}

func printNotes(out io.Writer, notes []models.MidiNote) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNOTE\tKEY\tSTART\tDUR\tVEL\tCH")
	for i, n := range notes {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.3f\t%.3f\t%d\t%d\n", i, utils.NoteName(n.Note), n.Note, n.Start, n.Duration, n.Velocity, n.Channel)
	}
	tw.Flush()
}

var notesCmd = &cobra.Command{
	Use:   "notes <file.mid|song>",
	Short: "Show the reference notes of a song",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := loadNotes(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if notesDump {
			spew.Fdump(out, notes)
			return nil
		}
		if len(notes) == 0 {
			fmt.Fprintln(out, "No notes")
			return nil
		}
		printNotes(out, notes)
		last := notes[len(notes)-1]
		for _, n := range notes {
			if n.End() > last.End() {
				last = n
			}
		}
		fmt.Fprintf(out, "\n%d notes, ends at %s\n", len(notes), formatDuration(last.End()))
		return nil
	},
}

var lyricsCmd = &cobra.Command{
	Use:   "lyrics <song>",
	Short: "Show lyrics with stored timing offsets applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		_, done, err := svc.SelectTrack(ctx, args[0])
		if err != nil {
			return err
		}
		report := <-done
		if err := report.Errors[syncstate.StageMetadata]; err != nil {
			return err
		}

		session := svc.Session()
		md, _ := session.Metadata()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🎤 %s by %s (%s)\n\n", md.Title, md.Artist, formatDuration(md.Duration))

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, l := range session.Lyrics() {
			shift := ""
			if l.Effective != l.Time {
				shift = fmt.Sprintf("(%+.2fs)", l.Effective-l.Time)
			}
			fmt.Fprintf(tw, "[%06.2f]\t%s\t%s\n", l.Effective, shift, l.Text)
		}
		return tw.Flush()
	},
}
