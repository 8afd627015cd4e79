package ledger

import "sort"

// MaxBatchSeconds is the upload collaborator's per-video ceiling: 11.5 hours
// of footage per assembled upload.
const MaxBatchSeconds = 41400.0

// Batch is a chronological group of files whose combined duration fits under
// the batch ceiling. Part numbering is 1-based.
type Batch struct {
	Channel    string
	Date       string
	Files      []string
	Part       int
	TotalParts int
}

// SplitBatches groups files (sorted chronologically by name) into batches
// whose total probed duration stays within maxSeconds. A file longer than the
// ceiling still gets its own batch; the split point is always before the file
// that would overflow.
func SplitBatches(channel, date string, files []string, durationOf func(string) float64, maxSeconds float64) []Batch {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	var (
		groups  [][]string
		current []string
		total   float64
	)
	for _, f := range sorted {
		d := durationOf(f)
		if total+d > maxSeconds && len(current) > 0 {
			groups = append(groups, current)
			current = nil
			total = 0
		}
		current = append(current, f)
		total += d
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	batches := make([]Batch, 0, len(groups))
	for i, g := range groups {
		batches = append(batches, Batch{
			Channel:    channel,
			Date:       date,
			Files:      g,
			Part:       i + 1,
			TotalParts: len(groups),
		})
	}
	return batches
}
