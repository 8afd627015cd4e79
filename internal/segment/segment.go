package segment

import (
	"fmt"
	"time"
)

// LiveWindow is the recency window used to decide whether a file is still
// being written to. It doubles as the eviction protection threshold.
const LiveWindow = 15 * time.Second

// Segment represents a single capture-output file on disk.
type Segment struct {
	Channel int
	Date    string // YYYY-MM-DD
	Time    string // HH:MM:SS
	Path    string // absolute path
	Size    int64
	ModTime time.Time
	Ext     string // including the dot, e.g. ".ts"
}

// StartTime combines the segment's date and time-of-day into a wall-clock
// timestamp in the local zone.
func (s Segment) StartTime() (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04:05", s.Date+" "+s.Time, time.Local)
}

// SortKey returns a lexically sortable "date time" string; segments from the
// same day order correctly by time-of-day.
func (s Segment) SortKey() string {
	return s.Date + " " + s.Time
}

// IsLive reports whether the segment was modified within LiveWindow of now.
func (s Segment) IsLive(now time.Time) bool {
	if s.ModTime.IsZero() {
		return false
	}
	return now.Sub(s.ModTime) < LiveWindow
}

// FormatSize renders a byte count in human-readable units.
func FormatSize(n int64) string {
	v := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if v < 1024 {
			return fmt.Sprintf("%.1f %s", v, unit)
		}
		v /= 1024
	}
	return fmt.Sprintf("%.1f TB", v)
}
