// Package ledger reads the append-only CSV records maintained by the
// external upload and streaming collaborators. The on-wire formats are fixed
// for compatibility: a processed-videos file tracking upload status by
// relative path, and one cloud-index file per calendar date. This package is
// a read-only consumer; only the external collaborators append rows.
package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// ProcessedFileName is the upload-status ledger at the recording root.
	// Columns: video_path,size_mb,upload_status (header row present).
	ProcessedFileName = "processed_videos.csv"

	// StatusDone marks a row whose file has been uploaded and is safe to
	// evict first.
	StatusDone = "done"

	dailyPrefix = "youtube_uploads_"
	dailySuffix = ".csv"
)

// Row is one processed-videos entry.
type Row struct {
	Path   string // relative to the recording root, slash-separated
	SizeMB string
	Status string
}

// Entry is one cloud-index row from a per-date ledger file.
type Entry struct {
	Channel string // display name of the uploaded video's channel
	Date    string // YYYY-MM-DD
	Time    string // HH:MM:SS
	URL     string
	Status  string
	Camera  string // "Channel N"; "Unknown" on legacy short rows
}

// Ledger reads ledger files rooted at the recording directory.
type Ledger struct {
	Root string
}

func New(root string) *Ledger {
	return &Ledger{Root: root}
}

// DailyFile returns the per-date cloud-index path for a date.
func (l *Ledger) DailyFile(date string) string {
	return filepath.Join(l.Root, dailyPrefix+date+dailySuffix)
}

// DateFromFilename extracts the date from a per-date ledger filename, or
// ok=false when the name does not match the convention.
func DateFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, dailyPrefix) || !strings.HasSuffix(base, dailySuffix) {
		return "", false
	}
	date := base[len(dailyPrefix) : len(base)-len(dailySuffix)]
	if len(date) != 10 || date[4] != '-' || date[7] != '-' {
		return "", false
	}
	return date, true
}

// UploadedSet returns the relative paths of every row marked done. A missing
// or unreadable ledger yields an empty set; eviction then treats nothing as
// uploaded.
func (l *Ledger) UploadedSet() map[string]bool {
	uploaded := make(map[string]bool)
	for _, row := range l.readProcessed() {
		if row.Status == StatusDone {
			uploaded[row.Path] = true
		}
	}
	return uploaded
}

// PendingByChannel groups rows with an empty upload status by their channel
// directory ("ch1", "ch2", ...), each group sorted by path so files stay in
// chronological order.
func (l *Ledger) PendingByChannel() map[string][]Row {
	byChannel := make(map[string][]Row)
	for _, row := range l.readProcessed() {
		if row.Status != "" {
			continue
		}
		ch, _, found := strings.Cut(row.Path, "/")
		if !found {
			continue
		}
		byChannel[ch] = append(byChannel[ch], row)
	}
	for ch := range byChannel {
		rows := byChannel[ch]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })
	}
	return byChannel
}

func (l *Ledger) readProcessed() []Row {
	f, err := os.Open(filepath.Join(l.Root, ProcessedFileName))
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []Row
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Corrupt line; skip and keep reading.
			continue
		}
		if first {
			first = false
			if len(record) > 0 && record[0] == "video_path" {
				continue
			}
		}
		if len(record) < 3 {
			continue
		}
		rows = append(rows, Row{
			Path:   strings.TrimSpace(record[0]),
			SizeMB: strings.TrimSpace(record[1]),
			Status: strings.TrimSpace(record[2]),
		})
	}
	return rows
}

// EntriesFor reads the per-date cloud index and returns entries belonging to
// the given channel. A missing file means no cloud recordings for that date.
func (l *Ledger) EntriesFor(date string, channel int) []Entry {
	data, err := os.ReadFile(l.DailyFile(date))
	if err != nil {
		return nil
	}

	target := fmt.Sprintf("Channel %d", channel)
	var entries []Entry
	for _, line := range strings.Split(string(data), "\n") {
		entry, ok := parseDailyLine(line)
		if !ok {
			continue
		}
		// Legacy rows without a camera column report "Unknown" and never
		// match a channel-filtered query.
		if entry.Camera == target {
			entries = append(entries, entry)
		}
	}
	return entries
}

// HasEntriesFor reports whether the per-date cloud index holds any entry for
// the channel. Used by the dates query to surface cloud-only dates.
func (l *Ledger) HasEntriesFor(date string, channel int) bool {
	return len(l.EntriesFor(date, channel)) > 0
}

// DailyDates lists dates for which a per-date ledger file exists.
func (l *Ledger) DailyDates() []string {
	matches, err := filepath.Glob(filepath.Join(l.Root, dailyPrefix+"*"+dailySuffix))
	if err != nil {
		return nil
	}
	var dates []string
	for _, m := range matches {
		if date, ok := DateFromFilename(m); ok {
			dates = append(dates, date)
		}
	}
	return dates
}

func parseDailyLine(line string) (Entry, bool) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 4 {
		return Entry{}, false
	}
	entry := Entry{
		Channel: strings.TrimSpace(parts[0]),
		Date:    strings.TrimSpace(parts[1]),
		Time:    strings.TrimSpace(parts[2]),
		URL:     strings.TrimSpace(parts[3]),
		Status:  "synced",
		Camera:  "Unknown",
	}
	if len(parts) > 4 {
		entry.Status = strings.TrimSpace(parts[4])
	}
	if len(parts) > 5 {
		entry.Camera = strings.TrimSpace(parts[5])
	}
	return entry, true
}
