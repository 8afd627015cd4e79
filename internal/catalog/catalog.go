// Package catalog reconciles on-disk segments with the cloud-upload ledger
// and the duration cache into one ordered, queryable view of recordings per
// channel and date. It is a stateless request-scoped query surface: every
// call re-reads the filesystem, so it always reflects what the recorder has
// written and what eviction has deleted.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"nvr-engine/internal/ledger"
	"nvr-engine/internal/platform/metrics"
	"nvr-engine/internal/recorder"
	"nvr-engine/internal/segment"
)

// DurationProber resolves a file's playback duration. Implemented by Prober;
// stubbed in tests.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Recording is one catalog row, local or cloud-only.
type Recording struct {
	Name      string   `json:"name"` // root-relative path, or a cloud pseudo-path
	StartTime string   `json:"startTime"`
	DateTime  string   `json:"datetime"`
	Size      string   `json:"size"` // human readable, "Cloud Only" for pseudo-entries
	Duration  *float64 `json:"duration"`
	Live      bool     `json:"live"`
	CloudURL  string   `json:"cloudUrl,omitempty"`
	CloudOnly bool     `json:"cloudOnly,omitempty"`
}

// ChannelStatus is the live-view state of one channel.
type ChannelStatus struct {
	Status string `json:"status"` // "LIVE", "REC" or "OFF"
	File   string `json:"file,omitempty"`
}

// Catalog wires the segment store, ledger, duration cache and prober into
// the query operations consumed by the HTTP layer.
type Catalog struct {
	store      *segment.Store
	led        *ledger.Ledger
	cache      *DurationCache
	probe      DurationProber
	channels   []int
	controlDir string
	log        *slog.Logger
	met        *metrics.Metrics
	now        func() time.Time
}

func New(store *segment.Store, led *ledger.Ledger, cache *DurationCache, probe DurationProber,
	channels []int, controlDir string, log *slog.Logger, met *metrics.Metrics) *Catalog {
	return &Catalog{
		store:      store,
		led:        led,
		cache:      cache,
		probe:      probe,
		channels:   channels,
		controlDir: controlDir,
		log:        log,
		met:        met,
		now:        time.Now,
	}
}

// rec is the internal merge record before formatting.
type rec struct {
	seg       segment.Segment
	relPath   string
	sortKey   string
	cloudURL  string
	cloudOnly bool
}

// Recordings returns the reconciled, ordered recording list for a channel
// and date. Missing directories and ledger files mean empty sections, never
// errors; probe failures yield unknown durations.
func (c *Catalog) Recordings(ctx context.Context, channel int, date string) []Recording {
	segs := c.store.ListForDate(channel, date)

	// Legacy .mkv files were written in place while recording; only the
	// newest candidate is shown, older ones are leftovers of crashed runs.
	var latest segment.Segment
	for _, s := range segs {
		if s.ModTime.After(latest.ModTime) {
			latest = s
		}
	}

	var merged []rec
	byTime := make(map[string]int) // HH:MM:SS -> index in merged
	for _, s := range segs {
		if s.Ext == ".mkv" && s.Path != latest.Path {
			continue
		}
		merged = append(merged, rec{
			seg:     s,
			relPath: c.store.RelPath(s.Path),
			sortKey: s.SortKey(),
		})
		byTime[s.Time] = len(merged) - 1
	}

	for _, entry := range c.led.EntriesFor(date, channel) {
		if i, ok := byTime[entry.Time]; ok {
			merged[i].cloudURL = entry.URL
			continue
		}
		merged = append(merged, rec{
			seg:       segment.Segment{Channel: channel, Date: date, Time: entry.Time},
			relPath:   "cloud/" + date + "/" + entry.Time,
			sortKey:   date + " " + entry.Time,
			cloudURL:  entry.URL,
			cloudOnly: true,
		})
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].sortKey < merged[j].sortKey })

	// At most one live entry: the most recently modified local segment
	// within the recency window. Cloud-only entries have no mtime and can
	// never qualify.
	now := c.now()
	liveIdx := -1
	for i, r := range merged {
		if !r.cloudOnly && r.seg.IsLive(now) {
			if liveIdx < 0 || merged[i].seg.ModTime.After(merged[liveIdx].seg.ModTime) {
				liveIdx = i
			}
		}
	}

	out := make([]Recording, 0, len(merged))
	for i, r := range merged {
		live := i == liveIdx

		var duration *float64
		if !live && !r.cloudOnly {
			duration = c.resolveDuration(ctx, r)
		}

		size := segment.FormatSize(r.seg.Size)
		if r.cloudOnly {
			size = "Cloud Only"
		}

		out = append(out, Recording{
			Name:      r.relPath,
			StartTime: r.seg.Time,
			DateTime:  r.sortKey,
			Size:      size,
			Duration:  duration,
			Live:      live,
			CloudURL:  r.cloudURL,
			CloudOnly: r.cloudOnly,
		})
	}
	return out
}

func (c *Catalog) resolveDuration(ctx context.Context, r rec) *float64 {
	if d, ok := c.cache.Get(r.relPath, r.seg.Size, r.seg.ModTime); ok {
		c.met.IncProbeCacheHits()
		return &d
	}
	c.met.IncProbeCacheMisses()
	d, err := c.probe.Duration(ctx, r.seg.Path)
	if err != nil {
		// Unknown duration is a normal partial result.
		c.log.Debug("duration probe failed", "path", r.relPath, "error", err)
		return nil
	}
	c.cache.Put(r.relPath, r.seg.Size, r.seg.ModTime, d)
	return &d
}

// Dates lists dates with recordings for a channel (or all channels with
// channel 0), merging local date directories with cloud-only dates found in
// the per-date ledger files. Newest first.
func (c *Catalog) Dates(channel int) []string {
	dates := c.store.Dates(channel)

	for _, date := range c.led.DailyDates() {
		if dates[date] {
			continue
		}
		if channel > 0 {
			if c.led.HasEntriesFor(date, channel) {
				dates[date] = true
			}
		} else {
			dates[date] = true
		}
	}

	out := make([]string, 0, len(dates))
	for d := range dates {
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// LiveChannels reports the live-view status of every active channel: OFF
// when the stop marker is present or nothing was ever recorded, LIVE when
// the newest segment is inside the recency window, REC otherwise.
func (c *Catalog) LiveChannels() map[int]ChannelStatus {
	now := c.now()
	statuses := make(map[int]ChannelStatus, len(c.channels))
	for _, ch := range c.channels {
		status := ChannelStatus{Status: "OFF"}
		if latest, ok := c.store.Latest(ch); ok {
			switch {
			case recorder.IsStopped(c.controlDir, ch):
				// Marker wins over recency.
			case latest.IsLive(now):
				status = ChannelStatus{Status: "LIVE", File: c.store.RelPath(latest.Path)}
			default:
				status = ChannelStatus{Status: "REC", File: c.store.RelPath(latest.Path)}
			}
		}
		statuses[ch] = status
	}
	return statuses
}
