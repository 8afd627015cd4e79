// Package playlist synthesizes VOD-style HLS playlists over a time window
// of recorded segments. It reads the nested date directory directly, which
// is lighter than a full catalog query: playback needs names and start
// times, not upload status or probed durations.
package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nvr-engine/internal/segment"
)

// BasePath is the URI prefix under which segment files are served.
const BasePath = "/recordings"

// gapThreshold is the largest tolerated gap between one segment's computed
// end and the next segment's start before a discontinuity marker is
// inserted. No filler segment is synthesized.
const gapThreshold = 1500 * time.Millisecond

// Item is one playable segment inside the requested window.
type Item struct {
	Filename string    `json:"-"`
	Time     string    `json:"time"` // HH:MM:SS
	Start    time.Time `json:"-"`
	Duration float64   `json:"duration"` // seconds
}

// Synthesizer builds playlists for a segment store with a fixed segment
// length.
type Synthesizer struct {
	store          *segment.Store
	segmentSeconds int
}

func NewSynthesizer(store *segment.Store, segmentSeconds int) *Synthesizer {
	return &Synthesizer{store: store, segmentSeconds: segmentSeconds}
}

// SegmentSeconds exposes the configured segment length for API consumers.
func (s *Synthesizer) SegmentSeconds() int {
	return s.segmentSeconds
}

// SegmentsInRange lists the channel/date segments overlapping the optional
// [start, end] HH:MM:SS window, sorted by start time. A segment is included
// when its computed end is at or after the start bound; it is excluded when
// its own start is after the end bound. Malformed bounds are ignored. A
// missing directory means no segments.
func (s *Synthesizer) SegmentsInRange(channel int, date, start, end string) []Item {
	dir := s.store.DateDir(channel, date)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	startBound := parseBound(date, start)
	endBound := parseBound(date, end)
	segDur := time.Duration(s.segmentSeconds) * time.Second

	var items []Item
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ts") {
			continue
		}
		name, ok := segment.ParseName(filepath.Join(dir, e.Name()))
		if !ok {
			continue
		}
		st, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+name.Time, time.Local)
		if err != nil {
			continue
		}
		if !startBound.IsZero() && st.Add(segDur).Before(startBound) {
			continue
		}
		if !endBound.IsZero() && st.After(endBound) {
			continue
		}
		items = append(items, Item{
			Filename: e.Name(),
			Time:     name.Time,
			Start:    st,
			Duration: float64(s.segmentSeconds),
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
	return items
}

// Build synthesizes the m3u8 playlist body for a channel/date window. An
// empty window yields a minimal, structurally valid VOD playlist: callers
// treat "no recordings" as a normal renderable state.
func (s *Synthesizer) Build(channel int, date, start, end string) string {
	items := s.SegmentsInRange(channel, date, start, end)
	baseURL := fmt.Sprintf("%s/ch%d/%s/", BasePath, channel, date)
	return render(items, baseURL)
}

func render(items []Item, baseURL string) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	if len(items) == 0 {
		b.WriteString("#EXT-X-TARGETDURATION:0\n")
		b.WriteString("#EXT-X-ENDLIST\n")
		return b.String()
	}

	maxDur := 0.0
	for _, it := range items {
		if it.Duration > maxDur {
			maxDur = it.Duration
		}
	}

	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(maxDur)+1))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	var lastEnd time.Time
	for _, it := range items {
		if !lastEnd.IsZero() && it.Start.Sub(lastEnd) > gapThreshold {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		b.WriteString("#EXT-X-PROGRAM-DATE-TIME:" + it.Start.Format(time.RFC3339) + "\n")
		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", it.Duration))
		b.WriteString(baseURL + it.Filename + "\n")
		lastEnd = it.Start.Add(time.Duration(it.Duration * float64(time.Second)))
	}

	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

func parseBound(date, hms string) time.Time {
	if hms == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+hms, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
