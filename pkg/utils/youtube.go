package utils

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ExtractYouTubeID returns the video id of a youtube.com or youtu.be link.
func ExtractYouTubeID(youtubeURL string) (string, error) {
	u, err := url.Parse(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "youtu.be"):
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	case strings.Contains(host, "youtube.com"):
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		for _, p := range []string{"/embed/", "/v/", "/shorts/"} {
			if strings.HasPrefix(u.Path, p) {
				if id := strings.TrimPrefix(u.Path, p); id != "" {
					return id, nil
				}
			}
		}
	}

	return "", fmt.Errorf("unable to extract video ID from URL: %s", youtubeURL)
}

func IsYouTubeURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// SourceName picks a file stem for a downloaded song: the explicit title when
// given, else the video id, else the last path element of the URL.
func SourceName(rawURL, title string) string {
	if t := strings.TrimSpace(unsafeName.ReplaceAllString(title, "")); t != "" {
		return t
	}
	if id, err := ExtractYouTubeID(rawURL); err == nil {
		return id
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return unsafeName.ReplaceAllString(strings.TrimSuffix(base, path.Ext(base)), "")
		}
	}
	return "song"
}
