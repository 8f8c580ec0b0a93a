package media

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/himanishpuri/klok/pkg/models"
)

// Lyrics is a parsed LRC document.
type Lyrics struct {
	Lines []models.LyricLine
	Tags  map[string]string // ID tags such as ar, ti, al
}

// ParseLRC reads "[mm:ss.xx]text" lines. A line may carry several time
// stamps and yields one entry per stamp. Tag lines like "[ar:Name]" go into
// Tags. Lines are returned stable-sorted by time.
func ParseLRC(r io.Reader) (Lyrics, error) {
	out := Lyrics{Tags: map[string]string{}}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var times []float64
		rest := line
		for strings.HasPrefix(rest, "[") {
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				break
			}
			stamp := rest[1:end]
			rest = rest[end+1:]

			if t, ok := parseStamp(stamp); ok {
				times = append(times, t)
			} else if k, v, found := strings.Cut(stamp, ":"); found {
				out.Tags[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
			}
		}

		text := strings.TrimSpace(rest)
		for _, t := range times {
			out.Lines = append(out.Lines, models.LyricLine{Time: t, Text: text})
		}
	}
	if err := sc.Err(); err != nil {
		return Lyrics{}, err
	}

	SortLyrics(out.Lines)
	return out, nil
}

// parseStamp accepts mm:ss, mm:ss.xx and mm:ss:xx.
func parseStamp(stamp string) (float64, bool) {
	mm, ss, ok := strings.Cut(stamp, ":")
	if !ok {
		return 0, false
	}
	if m2, frac, ok := strings.Cut(ss, ":"); ok {
		ss = m2 + "." + frac
	}
	minutes, err := strconv.ParseFloat(strings.TrimSpace(mm), 64)
	if err != nil || minutes < 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(ss), 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return minutes*60 + seconds, true
}

// SortLyrics orders lines by time keeping the file order for equal times.
func SortLyrics(lines []models.LyricLine) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Time < lines[j].Time })
}
