package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/klok/pkg/klok"
)

func init() {
	tracksCmd.AddCommand(tracksDeleteCmd)
	rootCmd.AddCommand(playlistCmd, tracksCmd)
}

var playlistCmd = &cobra.Command{
	Use:   "playlist",
	Short: "List playable songs in the resource directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := library().Playlist()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintf(out, "📭 No songs in %s\n", resDir)
			return nil
		}
		fmt.Fprintf(out, "🎶 Found %d song(s) in %s:\n\n", len(items), resDir)
		for i, it := range items {
			fmt.Fprintf(out, "%d. %s (%s)\n", i+1, it.Title, it.URL)
		}
		return nil
	},
}

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List songs that have been loaded before",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := createService()
		if err != nil {
			return fmt.Errorf("failed to create service: %w", err)
		}
		defer svc.Close()

		tracks, err := svc.Tracks()
		if err != nil {
			return fmt.Errorf("failed to list tracks: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(tracks) == 0 {
			fmt.Fprintln(out, "📭 No tracks in database")
			return nil
		}

		fmt.Fprintf(out, "📚 Found %d track(s):\n\n", len(tracks))
		for i, t := range tracks {
			fmt.Fprintf(out, "%d. \"%s\" by %s\n", i+1, t.Title, t.Artist)
			fmt.Fprintf(out, "   ID:   %s\n", t.ID)
			fmt.Fprintf(out, "   File: %s\n", t.URL)
			if t.DurationMs > 0 {
				fmt.Fprintf(out, "   Duration: %s\n", formatDuration(float64(t.DurationMs)/1000))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

var tracksDeleteCmd = &cobra.Command{
	Use:   "delete <track_id>",
	Short: "Forget a track and its lyric offsets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stor, err := klok.NewSQLiteStorage(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer stor.Close()

		track, err := stor.GetTrack(args[0])
		if errors.Is(err, klok.ErrTrackNotFound) {
			return fmt.Errorf("track not found (ID: %s)", args[0])
		}
		if err != nil {
			return err
		}
		if err := stor.DeleteTrack(track.ID); err != nil {
			return fmt.Errorf("failed to delete track: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✅ Deleted track:\n")
		fmt.Fprintf(out, "   ID:     %s\n", track.ID)
		fmt.Fprintf(out, "   Title:  %s\n", track.Title)
		fmt.Fprintf(out, "   Artist: %s\n", track.Artist)
		return nil
	},
}
