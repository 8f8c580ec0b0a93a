package sampler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pitchServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSourceDecodesSample(t *testing.T) {
	srv := pitchServer(t, http.StatusOK, `{"status":"success","data":{"pitch":261.63,"midi":60.02,"note":"C4","time":12.5}}`)

	s, err := NewHTTPSource(srv.URL, nil).FetchPitch(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 261.63, s.PitchHz, 1e-9)
	assert.InDelta(t, 60.02, s.Midi, 1e-9)
	assert.Equal(t, "C4", s.NoteName)
	assert.Equal(t, 12.5, s.Time)
}

func TestHTTPSourceStampsWithClock(t *testing.T) {
	srv := pitchServer(t, http.StatusOK, `{"status":"success","data":{"midi":69}}`)

	s, err := NewHTTPSource(srv.URL, func() float64 { return 3.25 }).FetchPitch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.25, s.Time)
	assert.InDelta(t, 440, s.PitchHz, 1e-9)
	assert.Equal(t, "A4", s.NoteName)
}

func TestHTTPSourceFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"empty data", http.StatusOK, `{"status":"success","data":{}}`, ErrNoData},
		{"missing data", http.StatusOK, `{"status":"success"}`, ErrNoData},
		{"error status", http.StatusOK, `{"status":"error","data":{"midi":60}}`, ErrBadStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := pitchServer(t, tc.status, tc.body)
			_, err := NewHTTPSource(srv.URL, nil).FetchPitch(context.Background())
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	srv := pitchServer(t, http.StatusInternalServerError, `oops`)
	_, err := NewHTTPSource(srv.URL, nil).FetchPitch(context.Background())
	assert.Error(t, err)

	srv = pitchServer(t, http.StatusOK, `{not json`)
	_, err = NewHTTPSource(srv.URL, nil).FetchPitch(context.Background())
	assert.Error(t, err)
}

func TestMidiToHz(t *testing.T) {
	assert.InDelta(t, 440, MidiToHz(69), 1e-9)
	assert.InDelta(t, 261.6256, MidiToHz(60), 1e-3)
}
