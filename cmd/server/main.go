package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/himanishpuri/klok/internal/sampler"
	"github.com/himanishpuri/klok/pkg/klok"
	"github.com/himanishpuri/klok/pkg/klok/storage"
	"github.com/himanishpuri/klok/pkg/logger"
)

var (
	port           int
	dbPath         string
	resDir         string
	pitchURL       string
	sampleInterval time.Duration
	allowedOrigins string
	logRequests    bool
	logLevel       string
)

func init() {
	flag.IntVarP(&port, "port", "p", 5000, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault(storage.DBPathEnv, storage.DefaultDBFile), "Path to SQLite database")
	flag.StringVar(&resDir, "res", getEnvOrDefault(klok.ResDirEnv, klok.DefaultResDir), "Directory with audio, .lrc and .mid files")
	flag.StringVar(&pitchURL, "pitch-url", getEnvOrDefault(klok.PitchURLEnv, sampler.DefaultPitchURL), "Pitch service endpoint (empty disables sampling)")
	flag.DurationVar(&sampleInterval, "interval", sampler.DefaultInterval, "Pitch sampling interval")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.BoolVar(&logRequests, "log-requests", false, "Log every HTTP request")
	flag.StringVar(&logLevel, "log-level", getEnvOrDefault(logger.LevelEnv, "info"), "Log level (debug, info, warn, error)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseOrigins(raw string) []string {
	if raw == "*" {
		return []string{"*"}
	}
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	flag.Parse()

	log := logger.GetLogger()
	if lvl, ok := logger.ParseLevel(logLevel); ok {
		log.SetLevel(lvl)
	} else {
		log.Warnf("Unknown log level %q, keeping %s", logLevel, log.Level())
	}

	service, err := klok.NewService(
		klok.WithDBPath(dbPath),
		klok.WithResDir(resDir),
		klok.WithPitchURL(pitchURL),
		klok.WithSampleInterval(sampleInterval),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			log.Errorf("Closing service: %v", err)
		}
	}()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		ResDir:         resDir,
		PitchURL:       pitchURL,
		AllowedOrigins: parseOrigins(allowedOrigins),
		LogRequests:    logRequests,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, config)
	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
	}
}
