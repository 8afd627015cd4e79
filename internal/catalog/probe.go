package catalog

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultProbeTimeout keeps the duration probe from blocking catalog
// requests; a timed-out probe yields an unknown duration.
const DefaultProbeTimeout = time.Second

// Prober resolves playback durations by shelling out to ffprobe.
type Prober struct {
	Bin     string
	Timeout time.Duration
}

func NewProber(bin string) Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return Prober{Bin: bin, Timeout: DefaultProbeTimeout}
}

// Duration probes the file's container duration in seconds.
func (p Prober) Duration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	s := strings.TrimSpace(string(out))
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("probe %s: no duration reported", path)
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("probe %s: bad duration %q: %w", path, s, err)
	}
	return d, nil
}
