package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/klok/pkg/logger"
	"github.com/himanishpuri/klok/pkg/utils"
)

var (
	fetchTitle     string
	fetchFormat    string
	fetchInstall   bool
	fetchTimeoutIn time.Duration
)

func init() {
	f := fetchCmd.Flags()
	f.StringVar(&fetchTitle, "title", "", "File name for the song (default: video id)")
	f.StringVar(&fetchFormat, "format", "mp3", "Audio format to extract")
	f.BoolVar(&fetchInstall, "install", false, "Download yt-dlp if it is not on PATH")
	f.DurationVar(&fetchTimeoutIn, "timeout", 5*time.Minute, "Give up after this long")
	rootCmd.AddCommand(fetchCmd)
}

// fetchTarget is the resource path a download is saved under
func fetchTarget(rawURL, title, format string) (stem, file string) {
	stem = utils.SourceName(rawURL, title)
	return stem, stem + "." + format
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a song's audio into the resource directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger().Named("fetch")
		rawURL := args[0]
		if !utils.IsYouTubeURL(rawURL) {
			log.Warnf("%s is not a YouTube URL, trying anyway", rawURL)
		}
		if err := utils.MakeDir(resDir); err != nil {
			return fmt.Errorf("creating %s: %w", resDir, err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeoutIn)
		defer cancel()

		if fetchInstall {
			if _, err := ytdlp.Install(ctx, nil); err != nil {
				return fmt.Errorf("installing yt-dlp: %w", err)
			}
		}

		stem, file := fetchTarget(rawURL, fetchTitle, fetchFormat)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "📥 Downloading %s\n", rawURL)
		fmt.Fprintln(out, "   This may take a few moments depending on video length")

		dl := ytdlp.New().
			NoPlaylist().
			ExtractAudio().
			AudioFormat(fetchFormat).
			Output(filepath.Join(resDir, stem+".%(ext)s"))

		res, err := dl.Run(ctx, rawURL)
		if err != nil {
			if res != nil {
				log.Debugf("yt-dlp stderr: %s", res.Stderr)
			}
			return fmt.Errorf("yt-dlp download failed: %w", err)
		}

		path := filepath.Join(resDir, file)
		if !utils.FileExists(path) {
			return fmt.Errorf("downloaded audio not found at %s", path)
		}

		fmt.Fprintf(out, "✅ Saved %s\n", path)
		fmt.Fprintf(out, "   Add %s and %s to score and show lyrics\n",
			utils.WithSuffix(file, "_vocals", ".mid"), utils.WithExtension(file, ".lrc"))
		return nil
	},
}
