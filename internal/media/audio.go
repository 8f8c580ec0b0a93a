package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/klok/pkg/models"
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// PlaylistExtensions are the audio files listed in a playlist.
var PlaylistExtensions = []string{".mp3", ".m4a", ".flac", ".wav", ".ogg"}

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
}

// MIMEType picks the content type from the file extension.
func MIMEType(path string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}

// ProbeDuration returns the playing time of a wav, mp3 or ogg file in seconds.
func ProbeDuration(path string) (seconds float64, err error) {
	// decoders can panic on truncated frames
	defer func() {
		if rec := recover(); rec != nil {
			seconds = 0
			err = fmt.Errorf("probing %s: %v", path, rec)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening audio: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		defer f.Close()
		d := wav.NewDecoder(f)
		if !d.IsValidFile() {
			return 0, fmt.Errorf("invalid wav file: %s", path)
		}
		// data chunk only; the RIFF size includes headers and LIST chunks
		if err := d.FwdToPCM(); err != nil {
			return 0, fmt.Errorf("reading wav duration: %w", err)
		}
		if d.AvgBytesPerSec == 0 {
			return 0, fmt.Errorf("invalid wav file: %s", path)
		}
		return float64(d.PCMLen()) / float64(d.AvgBytesPerSec), nil
	case ".mp3":
		streamer, format, err := mp3.Decode(f)
		if err != nil {
			f.Close()
			return 0, fmt.Errorf("decoding mp3: %w", err)
		}
		return streamDuration(streamer, format), nil
	case ".ogg":
		streamer, format, err := vorbis.Decode(f)
		if err != nil {
			f.Close()
			return 0, fmt.Errorf("decoding ogg: %w", err)
		}
		return streamDuration(streamer, format), nil
	default:
		f.Close()
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func streamDuration(s beep.StreamSeekCloser, format beep.Format) float64 {
	defer s.Close()
	return format.SampleRate.D(s.Len()).Seconds()
}

// LoadAudio reads the file into a base64 data URL.
func LoadAudio(path string) (models.AudioSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AudioSource{}, fmt.Errorf("reading audio: %w", err)
	}
	mime := MIMEType(path)
	return models.AudioSource{
		URL:     path,
		MIME:    mime,
		DataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
