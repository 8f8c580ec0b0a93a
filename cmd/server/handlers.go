package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/himanishpuri/klok/internal/media"
	"github.com/himanishpuri/klok/internal/syncstate"
	"github.com/himanishpuri/klok/pkg/klok"
	"github.com/himanishpuri/klok/pkg/logger"
	"github.com/himanishpuri/klok/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service klok.Service
	config  *ServerConfig
	log     klok.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	ResDir         string
	PitchURL       string
	AllowedOrigins []string
	LogRequests    bool
}

// NewServer creates a new server instance
func NewServer(service klok.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("http"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// decodeBody reads an optional JSON body into v. An empty body is accepted.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// mediaStatus maps library errors onto HTTP status codes
func mediaStatus(err error) int {
	if errors.Is(err, media.ErrNotFound) || errors.Is(err, klok.ErrTrackNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, media.ErrSMPTE) || errors.Is(err, media.ErrUnsupportedFormat) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Klok API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"metrics":       "GET /api/health/metrics",
			"playlist":      "GET /api/playlist",
			"tracks":        "GET /api/tracks",
			"getTrack":      "GET /api/tracks/{id}",
			"metadata":      "GET /api/media/metadata?url=",
			"notes":         "GET /api/media/notes?url=",
			"audio":         "GET /api/media/audio?url=",
			"session":       "GET /api/session",
			"selectTrack":   "POST /api/session/track",
			"setTime":       "PUT /api/session/time",
			"lyrics":        "GET /api/session/lyrics",
			"startSampling": "POST /api/session/sampling/start",
			"stopSampling":  "POST /api/session/sampling/stop",
			"score":         "GET /api/session/score",
			"frame":         "GET /api/session/frame?width=&height=",
			"view":          "PUT /api/session/view",
			"setOffset":     "PUT /api/session/offsets",
			"clearOffsets":  "DELETE /api/session/offsets",
			"clearOffset":   "DELETE /api/session/offsets/{index}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.Tracks()
	if err != nil {
		s.log.Errorf("Failed to get track count: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	session := s.service.Session()
	stats := session.SamplerStats()
	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:       "healthy",
		DatabasePath: s.config.DBPath,
		ResourceDir:  s.config.ResDir,
		PitchURL:     s.config.PitchURL,
		TrackCount:   len(tracks),
		Sampling:     session.Sampling(),
		HistoryLen:   session.History().Len(),
		Ticks:        stats.Ticks,
		Appended:     stats.Appended,
		Failures:     stats.Failures,
	})
}

// handlePlaylist handles GET /api/playlist
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.Playlist()
	if err != nil {
		s.log.Errorf("Failed to scan playlist: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to read resource directory")
		return
	}
	s.respondJSON(w, http.StatusOK, PlaylistResponse{Items: items, Count: len(items)})
}

// handleListTracks handles GET /api/tracks
func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.Tracks()
	if err != nil {
		s.log.Errorf("Failed to list tracks: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve tracks")
		return
	}

	dtos := make([]TrackDTO, len(tracks))
	for i, t := range tracks {
		dtos[i] = toTrackDTO(t)
	}
	s.respondJSON(w, http.StatusOK, ListTracksResponse{Tracks: dtos, Count: len(dtos)})
}

// handleGetTrack handles GET /api/tracks/{id}
func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	track, err := s.service.GetTrack(id)
	if err != nil {
		if errors.Is(err, klok.ErrTrackNotFound) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("Track with ID %s not found", id))
			return
		}
		s.log.Errorf("Failed to get track %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve track")
		return
	}
	s.respondJSON(w, http.StatusOK, toTrackDTO(*track))
}

// handleMetadata handles GET /api/media/metadata?url=
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	md, err := s.service.Metadata(r.Context(), url)
	if err != nil {
		s.log.Warnf("Metadata for %q: %v", url, err)
		s.respondError(w, mediaStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, md)
}

// handleNotes handles GET /api/media/notes?url=
func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	notes, err := s.service.Notes(r.Context(), url)
	if err != nil {
		s.log.Warnf("Notes for %q: %v", url, err)
		s.respondError(w, mediaStatus(err), err.Error())
		return
	}

	dtos := make([]NoteDTO, len(notes))
	for i, n := range notes {
		dtos[i] = NoteDTO{MidiNote: n, Name: utils.NoteName(n.Note)}
	}
	s.respondJSON(w, http.StatusOK, NotesResponse{Notes: dtos, Count: len(dtos)})
}

// handleAudio handles GET /api/media/audio?url=
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	src, err := s.service.Audio(r.Context(), url)
	if err != nil {
		s.log.Warnf("Audio for %q: %v", url, err)
		s.respondError(w, mediaStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, src)
}

// handleSession handles GET /api/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.service.Session().Snapshot())
}

// handleSelectTrack handles POST /api/session/track
func (s *Server) handleSelectTrack(w http.ResponseWriter, r *http.Request) {
	var req SelectTrackRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// the load outlives the request
	id, done, err := s.service.SelectTrack(context.WithoutCancel(r.Context()), req.URL)
	if err != nil {
		s.respondError(w, mediaStatus(err), err.Error())
		return
	}
	go func() {
		report := <-done
		if err := report.Err(); err != nil && !report.Stale {
			s.log.Warnf("Track %s loaded with errors: %v", req.URL, err)
		}
	}()

	s.respondJSON(w, http.StatusAccepted, SelectTrackResponse{
		Message: "Track loading",
		ID:      id,
		URL:     req.URL,
	})
}

// handleSetTime handles PUT /api/session/time
func (s *Server) handleSetTime(w http.ResponseWriter, r *http.Request) {
	var req SetTimeRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := s.service.Session()
	if req.Duration != nil {
		session.SetDuration(*req.Duration)
	}
	if req.Time != nil {
		session.SetTime(*req.Time)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"time":        session.CurrentTime(),
		"duration":    session.Duration(),
		"activeLyric": session.ActiveIndex(),
	})
}

// handleLyrics handles GET /api/session/lyrics
func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	session := s.service.Session()
	s.respondJSON(w, http.StatusOK, LyricsResponse{
		Lines:  session.Lyrics(),
		Active: session.ActiveIndex(),
		Offset: session.Offsets(),
	})
}

// handleStartSampling handles POST /api/session/sampling/start
func (s *Server) handleStartSampling(w http.ResponseWriter, r *http.Request) {
	var req StartSamplingRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	interval := time.Duration(req.IntervalMs) * time.Millisecond
	if err := s.service.Session().StartSampling(interval); err != nil {
		status := http.StatusConflict
		if errors.Is(err, syncstate.ErrNoSource) {
			status = http.StatusServiceUnavailable
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.service.Session().Snapshot())
}

// handleStopSampling handles POST /api/session/sampling/stop
func (s *Server) handleStopSampling(w http.ResponseWriter, r *http.Request) {
	s.service.Session().StopSampling()
	s.respondJSON(w, http.StatusOK, s.service.Session().Snapshot())
}

// handleScore handles GET /api/session/score
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.service.Session().Score())
}

// handleFrame handles GET /api/session/frame?width=&height=
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	width, err := sizeParam(r, "width", DefaultFrameWidth)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	height, err := sizeParam(r, "height", DefaultFrameHeight)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.service.Session().Frame(width, height))
}

func sizeParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > MaxFrameSize {
		return 0, fmt.Errorf("%s must be a number between 0 and %d", name, MaxFrameSize)
	}
	return v, nil
}

// handleView handles PUT /api/session/view
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	var req ViewRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := s.service.Session()
	switch {
	case req.Left != nil:
		session.SetView(*req.Left, *req.Right)
	case req.Scroll != nil:
		session.Scroll(*req.Scroll)
	case req.Zoom != nil:
		session.Zoom(*req.Zoom)
	case req.Follow != nil:
		lead := -1.0
		if req.Lead != nil {
			lead = *req.Lead
		}
		session.SetFollow(*req.Follow, lead)
	}

	from, to := session.ActiveNotes()
	s.respondJSON(w, http.StatusOK, ViewResponse{Window: session.View(), ActiveFrom: from, ActiveTo: to})
}

// handleSetOffset handles PUT /api/session/offsets
func (s *Server) handleSetOffset(w http.ResponseWriter, r *http.Request) {
	var req OffsetRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session := s.service.Session()
	var err error
	switch {
	case req.Index == nil:
		session.SetGlobalDelta(*req.Delta)
	case req.Step != nil:
		err = session.NudgeDelta(*req.Index, *req.Step)
	default:
		err = session.SetDelta(*req.Index, *req.Delta)
	}
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, session.Offsets())
}

// handleClearOffsets handles DELETE /api/session/offsets
func (s *Server) handleClearOffsets(w http.ResponseWriter, r *http.Request) {
	session := s.service.Session()
	session.ClearDeltas()
	s.respondJSON(w, http.StatusOK, session.Offsets())
}

// handleClearOffset handles DELETE /api/session/offsets/{index}
func (s *Server) handleClearOffset(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || idx < 0 {
		s.respondError(w, http.StatusBadRequest, "index must be a non-negative integer")
		return
	}
	session := s.service.Session()
	session.ClearDelta(idx)
	s.respondJSON(w, http.StatusOK, session.Offsets())
}
