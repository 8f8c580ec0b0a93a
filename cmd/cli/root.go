package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/klok/internal/media"
	"github.com/himanishpuri/klok/pkg/klok"
	"github.com/himanishpuri/klok/pkg/klok/storage"
	"github.com/himanishpuri/klok/pkg/logger"
)

// Global flags
var (
	dbPath   string
	resDir   string
	logLevel string
	noBanner bool
)

var rootCmd = &cobra.Command{
	Use:   "klok",
	Short: "Sing-along scoring tool",
	Long: `klok scores singing against MIDI transcriptions.

Songs live in a resource directory: <name>.mp3 (or .m4a/.flac/.wav/.ogg),
<name>.lrc for lyrics and <name>_vocals.mid or <name>.mid for the notes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log := logger.GetLogger()
		if lvl, ok := logger.ParseLevel(logLevel); ok {
			log.SetLevel(lvl)
		}
		if !noBanner {
			printBanner(cmd)
		}
		log.Debugf("Executing command: %s", cmd.CommandPath())
	},
}

func init() {
	// Global flags that can be used with any command
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault(storage.DBPathEnv, storage.DefaultDBFile), "Path to the SQLite database file")
	rootCmd.PersistentFlags().StringVar(&resDir, "res", getEnvOrDefault(klok.ResDirEnv, klok.DefaultResDir), "Resource directory with audio, lyrics and MIDI")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getEnvOrDefault(logger.LevelEnv, "warn"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "Do not print the banner")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// createService creates a new service with configured options. Sampling is
// left to the record command.
func createService() (klok.Service, error) {
	return klok.NewService(
		klok.WithDBPath(dbPath),
		klok.WithResDir(resDir),
		klok.WithPitchURL(""),
		klok.WithSaveDelay(0),
	)
}

func library() *media.Library {
	return media.NewLibrary(resDir)
}

func printBanner(cmd *cobra.Command) {
	banner := `
 _    _       _
| | _| | ___ | | __
| |/ / |/ _ \| |/ /
|   <| | (_) |   <
|_|\_\_|\___/|_|\_\

  Sing-along scoring
`
	fmt.Fprintln(cmd.ErrOrStderr(), banner)
}

func formatDuration(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
