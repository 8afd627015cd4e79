package segment

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// NameKind distinguishes the two on-disk naming conventions.
type NameKind int

const (
	// NameNested is the current layout: ch{N}/{YYYY-MM-DD}/{HHMMSS}.ext.
	// The channel is not encoded in the filename; callers supply it from
	// directory context.
	NameNested NameKind = iota

	// NameFlat is the legacy layout: ch{N}_{YYYYMMDD}_{HHMMSS}.ext at the
	// recording root.
	NameFlat
)

// Name is the parsed form of a segment filename. Both conventions resolve to
// the same logical (channel, date, time) shape.
type Name struct {
	Kind    NameKind
	Channel int    // 0 for nested names (channel comes from the path)
	Date    string // YYYY-MM-DD
	Time    string // HH:MM:SS
	Ext     string // including the dot
}

var (
	flatRe   = regexp.MustCompile(`ch(\d+)_(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`)
	dateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe   = regexp.MustCompile(`^\d{6}$`)
	mediaExt = map[string]bool{".ts": true, ".mp4": true, ".mkv": true}
)

// ParseName extracts the (channel, date, time) identity from a segment path.
// It recognizes the flat legacy convention by filename alone and the nested
// convention by a YYYY-MM-DD parent directory. Unrecognized names return
// ok=false and are skipped by callers.
func ParseName(path string) (Name, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if !mediaExt[ext] {
		return Name{}, false
	}

	if m := flatRe.FindStringSubmatch(base); m != nil {
		ch, _ := strconv.Atoi(m[1])
		return Name{
			Kind:    NameFlat,
			Channel: ch,
			Date:    m[2] + "-" + m[3] + "-" + m[4],
			Time:    m[5] + ":" + m[6] + ":" + m[7],
			Ext:     ext,
		}, true
	}

	parent := filepath.Base(filepath.Dir(path))
	if !dateRe.MatchString(parent) {
		return Name{}, false
	}
	// The external uploader renames segments with an _uploaded suffix after
	// pushing them to the cloud; the identity is unchanged.
	stem := strings.TrimSuffix(base, ext)
	stem = strings.TrimSuffix(stem, "_uploaded")
	if !timeRe.MatchString(stem) {
		return Name{}, false
	}
	return Name{
		Kind: NameNested,
		Date: parent,
		Time: stem[0:2] + ":" + stem[2:4] + ":" + stem[4:6],
		Ext:  ext,
	}, true
}

// IsMediaFile reports whether the filename carries a recognized container
// extension, regardless of whether the name parses to an identity.
func IsMediaFile(name string) bool {
	return mediaExt[filepath.Ext(name)]
}
