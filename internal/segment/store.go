package segment

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Store is the filesystem-convention view over the recording root. It is a
// read-only enumerator; the recorder writes segments and the eviction engine
// deletes them. Every method tolerates files and directories vanishing
// mid-scan, which happens routinely while eviction runs.
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

// ChannelDir returns the nested per-channel directory.
func (st *Store) ChannelDir(channel int) string {
	return filepath.Join(st.Root, fmt.Sprintf("ch%d", channel))
}

// DateDir returns the nested per-channel/date directory.
func (st *Store) DateDir(channel int, date string) string {
	return filepath.Join(st.ChannelDir(channel), date)
}

// ListForDate enumerates segments for one channel and date across both
// naming conventions. Missing directories mean "no recordings". Unparsable
// names and stat races are skipped.
func (st *Store) ListForDate(channel int, date string) []Segment {
	var out []Segment

	// Flat legacy files live at the root and encode identity in the name.
	flatPrefix := fmt.Sprintf("ch%d_%s", channel, strings.ReplaceAll(date, "-", ""))
	if entries, err := os.ReadDir(st.Root); err == nil {
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), flatPrefix) {
				continue
			}
			if seg, ok := st.segmentFromEntry(filepath.Join(st.Root, e.Name()), e, channel, date); ok {
				out = append(out, seg)
			}
		}
	}

	dir := st.DateDir(channel, date)
	if entries, err := os.ReadDir(dir); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if seg, ok := st.segmentFromEntry(filepath.Join(dir, e.Name()), e, channel, date); ok {
				out = append(out, seg)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SortKey() < out[j].SortKey() })
	return out
}

func (st *Store) segmentFromEntry(path string, e fs.DirEntry, channel int, date string) (Segment, bool) {
	name, ok := ParseName(path)
	if !ok || name.Date != date {
		return Segment{}, false
	}
	info, err := e.Info()
	if err != nil {
		return Segment{}, false
	}
	return Segment{
		Channel: channel,
		Date:    name.Date,
		Time:    name.Time,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Ext:     name.Ext,
	}, true
}

// TotalBytes walks the recording root and sums file sizes. Symlinks and
// unreadable entries are skipped.
func (st *Store) TotalBytes() int64 {
	var total int64
	filepath.WalkDir(st.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// AllMediaOldestFirst returns every media file under the root sorted by
// modification time ascending. Used by eviction to build its candidate list.
func (st *Store) AllMediaOldestFirst() []Segment {
	var out []Segment
	filepath.WalkDir(st.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !IsMediaFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		seg := Segment{Path: path, Size: info.Size(), ModTime: info.ModTime(), Ext: filepath.Ext(d.Name())}
		if name, ok := ParseName(path); ok {
			seg.Date = name.Date
			seg.Time = name.Time
			seg.Channel = name.Channel
		}
		out = append(out, seg)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.Before(out[j].ModTime) })
	return out
}

// Dates collects the nested date directories that exist locally. With
// channel 0 all channel directories are swept.
func (st *Store) Dates(channel int) map[string]bool {
	dates := make(map[string]bool)

	var chDirs []string
	if channel > 0 {
		chDirs = append(chDirs, st.ChannelDir(channel))
	} else {
		entries, err := os.ReadDir(st.Root)
		if err != nil {
			return dates
		}
		for _, e := range entries {
			if e.IsDir() && strings.HasPrefix(e.Name(), "ch") {
				chDirs = append(chDirs, filepath.Join(st.Root, e.Name()))
			}
		}
	}

	for _, dir := range chDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() && dateRe.MatchString(e.Name()) {
				dates[e.Name()] = true
			}
		}
	}
	return dates
}

// Latest returns the most recently modified nested segment for a channel
// across all dates, or ok=false when the channel has no recordings.
func (st *Store) Latest(channel int) (Segment, bool) {
	var (
		best  Segment
		found bool
	)
	chDir := st.ChannelDir(channel)
	dateDirs, err := os.ReadDir(chDir)
	if err != nil {
		return Segment{}, false
	}
	for _, dd := range dateDirs {
		if !dd.IsDir() || !dateRe.MatchString(dd.Name()) {
			continue
		}
		dir := filepath.Join(chDir, dd.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			seg, ok := st.segmentFromEntry(filepath.Join(dir, e.Name()), e, channel, dd.Name())
			if !ok {
				continue
			}
			if !found || seg.ModTime.After(best.ModTime) {
				best = seg
				found = true
			}
		}
	}
	return best, found
}

// RelPath converts an absolute segment path into the root-relative form used
// by the ledger and by API consumers.
func (st *Store) RelPath(path string) string {
	rel, err := filepath.Rel(st.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
