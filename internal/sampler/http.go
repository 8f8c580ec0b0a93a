package sampler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/himanishpuri/klok/pkg/models"
	"github.com/himanishpuri/klok/pkg/utils"
)

// DefaultPitchURL is where the local pitch detector listens.
const DefaultPitchURL = "http://localhost:8000/pitch"

var (
	ErrNoData    = errors.New("pitch response has no data")
	ErrBadStatus = errors.New("pitch response status is not success")
)

type pitchResponse struct {
	Status string     `json:"status"`
	Data   *pitchData `json:"data"`
}

type pitchData struct {
	Pitch *float64 `json:"pitch"`
	Midi  *float64 `json:"midi"`
	Note  string   `json:"note"`
	Time  *float64 `json:"time"`
}

// HTTPSource reads samples from the pitch detector's JSON endpoint. When the
// detector does not stamp a time, Clock supplies the playback time.
type HTTPSource struct {
	URL    string
	Client *http.Client
	Clock  func() float64
}

func NewHTTPSource(url string, clock func() float64) *HTTPSource {
	if url == "" {
		url = DefaultPitchURL
	}
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: 2 * time.Second},
		Clock:  clock,
	}
}

func (h *HTTPSource) FetchPitch(ctx context.Context) (models.PitchSample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return models.PitchSample{}, fmt.Errorf("building request: %w", err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.PitchSample{}, fmt.Errorf("requesting pitch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return models.PitchSample{}, fmt.Errorf("pitch service returned %d", resp.StatusCode)
	}

	var body pitchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.PitchSample{}, fmt.Errorf("decoding pitch response: %w", err)
	}
	return h.toSample(body)
}

func (h *HTTPSource) toSample(body pitchResponse) (models.PitchSample, error) {
	if body.Status != "success" {
		return models.PitchSample{}, fmt.Errorf("%w: %q", ErrBadStatus, body.Status)
	}
	if body.Data == nil || body.Data.Midi == nil || !utils.Finite(*body.Data.Midi) {
		return models.PitchSample{}, ErrNoData
	}

	d := body.Data
	s := models.PitchSample{Midi: *d.Midi, NoteName: d.Note}
	if d.Pitch != nil && *d.Pitch > 0 {
		s.PitchHz = *d.Pitch
	} else {
		s.PitchHz = MidiToHz(s.Midi)
	}
	if s.NoteName == "" {
		s.NoteName = utils.NoteNameFloat(s.Midi)
	}
	switch {
	case d.Time != nil:
		s.Time = *d.Time
	case h.Clock != nil:
		s.Time = h.Clock()
	}
	return s, nil
}

// MidiToHz converts a MIDI pitch to frequency with A4 = 440 Hz.
func MidiToHz(m float64) float64 {
	return 440 * math.Pow(2, (m-69)/12)
}
