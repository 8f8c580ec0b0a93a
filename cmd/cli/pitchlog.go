package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/himanishpuri/klok/pkg/models"
)

// Pitch logs are JSON lines, one PitchSample per line.

func readPitchLog(r io.Reader) ([]models.PitchSample, error) {
	var samples []models.PitchSample
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var s models.PitchSample
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		samples = append(samples, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading pitch log: %w", err)
	}
	return samples, nil
}

func readPitchLogFile(path string) ([]models.PitchSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pitch log: %w", err)
	}
	defer f.Close()
	return readPitchLog(f)
}

func writePitchLog(w io.Writer, samples []models.PitchSample) error {
	enc := json.NewEncoder(w)
	for _, s := range samples {
		if err := enc.Encode(s); err != nil {
			return err
		}
	}
	return nil
}
