package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter().StrictSlash(true)

	// Root endpoint
	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	// Health endpoints
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/health/metrics", s.handleMetrics).Methods(http.MethodGet)

	// Library endpoints
	router.HandleFunc("/api/playlist", s.handlePlaylist).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks", s.handleListTracks).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", s.handleGetTrack).Methods(http.MethodGet)

	media := router.PathPrefix("/api/media").Subrouter()
	media.HandleFunc("/metadata", s.handleMetadata).Methods(http.MethodGet)
	media.HandleFunc("/notes", s.handleNotes).Methods(http.MethodGet)
	media.HandleFunc("/audio", s.handleAudio).Methods(http.MethodGet)

	// Session endpoints
	router.HandleFunc("/api/session", s.handleSession).Methods(http.MethodGet)
	session := router.PathPrefix("/api/session").Subrouter()
	session.HandleFunc("/track", s.handleSelectTrack).Methods(http.MethodPost)
	session.HandleFunc("/time", s.handleSetTime).Methods(http.MethodPut)
	session.HandleFunc("/lyrics", s.handleLyrics).Methods(http.MethodGet)
	session.HandleFunc("/sampling/start", s.handleStartSampling).Methods(http.MethodPost)
	session.HandleFunc("/sampling/stop", s.handleStopSampling).Methods(http.MethodPost)
	session.HandleFunc("/score", s.handleScore).Methods(http.MethodGet)
	session.HandleFunc("/frame", s.handleFrame).Methods(http.MethodGet)
	session.HandleFunc("/view", s.handleView).Methods(http.MethodPut)
	session.HandleFunc("/offsets", s.handleSetOffset).Methods(http.MethodPut)
	session.HandleFunc("/offsets", s.handleClearOffsets).Methods(http.MethodDelete)
	session.HandleFunc("/offsets/{index:[0-9]+}", s.handleClearOffset).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("No route for %s", r.URL.Path))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s not allowed on %s", r.Method, r.URL.Path))
	})

	var handler http.Handler = router
	if s.config.LogRequests {
		handler = s.loggingMiddleware(handler)
	}
	return corsHandler(s.config.AllowedOrigins).Handler(handler)
}

// corsHandler builds the CORS policy. An empty list or "*" allows all origins.
func corsHandler(allowedOrigins []string) *cors.Cors {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           3600,
	})
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		s.log.Debugf("%s %s from %s", r.Method, r.URL.Path, getClientIP(r))
		next.ServeHTTP(wrapped, r)
		s.log.Infof("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start).Round(time.Microsecond))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("🎤 Klok server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   Resources: %s", s.config.ResDir)
	s.log.Infof("   Pitch service: %s", s.config.PitchURL)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("\nEndpoints:")
	s.log.Infof("   GET    /health                       - Health check")
	s.log.Infof("   GET    /api/health/metrics           - Server metrics")
	s.log.Infof("   GET    /api/playlist                 - Playable files")
	s.log.Infof("   GET    /api/tracks[/{id}]            - Catalogued tracks")
	s.log.Infof("   GET    /api/media/{metadata|notes|audio}?url=")
	s.log.Infof("   GET    /api/session                  - Session snapshot")
	s.log.Infof("   POST   /api/session/track            - Select track")
	s.log.Infof("   PUT    /api/session/time             - Move playhead")
	s.log.Infof("   POST   /api/session/sampling/{start|stop}")
	s.log.Infof("   GET    /api/session/{score|frame|lyrics}")
	s.log.Infof("   PUT    /api/session/{view|offsets}")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
