package utils

import "github.com/google/uuid"

// TrackID derives a stable UUID from a track URL so re-scans keep ids.
func TrackID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}
