// Package eviction keeps total recording storage under the configured
// limits. A single periodic loop measures usage and deletes the oldest
// segment files using a tiered, upload-aware policy: files already uploaded
// to the cloud go first, and a critical overage triggers an indiscriminate
// fallback so the disk can never fill.
package eviction

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"nvr-engine/internal/ledger"
	"nvr-engine/internal/platform/metrics"
	"nvr-engine/internal/segment"
)

const (
	// cleanupFraction is Stage 1's deletion target: 10% of the configured
	// soft limit, not of the current overage. Freeing a fixed slice of the
	// allocation guarantees headroom and avoids thrashing.
	cleanupFraction = 0.10

	// stage2Batch is the number of oldest files removed per pass when usage
	// stays above the critical limit after Stage 1.
	stage2Batch = 10

	bytesPerGB = 1 << 30
)

// Config are the storage limits and cadence for the engine.
type Config struct {
	SoftLimitGB int
	SlackGB     int // critical limit = soft + slack
	Interval    time.Duration
	UploadAware bool
}

// Summary is the read-only storage report exposed to API consumers.
type Summary struct {
	Summary string  `json:"summary"`
	UsedGB  float64 `json:"usedGB"`
	MaxGB   int     `json:"maxGB"`
}

// Engine runs the eviction policy over a segment store, consulting the
// ledger when upload-awareness is enabled.
type Engine struct {
	store *segment.Store
	led   *ledger.Ledger
	cfg   Config
	log   *slog.Logger
	met   *metrics.Metrics

	softBytes     int64
	criticalBytes int64
	targetBytes   int64
}

// NewEngine validates the limits and returns an engine. A critical limit at
// or below the soft limit would oscillate between the two stages, so it is
// rejected at startup.
func NewEngine(store *segment.Store, led *ledger.Ledger, cfg Config, log *slog.Logger, met *metrics.Metrics) (*Engine, error) {
	if cfg.SoftLimitGB <= 0 {
		return nil, fmt.Errorf("soft storage limit must be positive, got %d GB", cfg.SoftLimitGB)
	}
	if cfg.SlackGB <= 0 {
		return nil, fmt.Errorf("critical limit (%d GB) must exceed soft limit (%d GB)",
			cfg.SoftLimitGB+cfg.SlackGB, cfg.SoftLimitGB)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	soft := int64(cfg.SoftLimitGB) * bytesPerGB
	return &Engine{
		store:         store,
		led:           led,
		cfg:           cfg,
		log:           log,
		met:           met,
		softBytes:     soft,
		criticalBytes: int64(cfg.SoftLimitGB+cfg.SlackGB) * bytesPerGB,
		targetBytes:   int64(float64(soft) * cleanupFraction),
	}, nil
}

// Run loops until ctx is cancelled, executing one pass per interval. Pass
// failures are logged and retried on the next tick.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("eviction engine started",
		"soft_limit_gb", e.cfg.SoftLimitGB,
		"critical_limit_gb", e.cfg.SoftLimitGB+e.cfg.SlackGB,
		"upload_aware", e.cfg.UploadAware,
		"interval", e.cfg.Interval,
	)
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		e.Pass()
		select {
		case <-ctx.Done():
			e.log.Info("eviction engine stopped")
			return
		case <-ticker.C:
		}
	}
}

// Pass executes one eviction cycle. It is idempotent and safe to re-run even
// when nothing changed.
func (e *Engine) Pass() {
	e.met.IncEvictionPasses()

	usage := e.store.TotalBytes()
	if usage <= e.softBytes {
		return
	}

	e.log.Info("storage over soft limit",
		"used_gb", float64(usage)/bytesPerGB, "limit_gb", e.cfg.SoftLimitGB)

	freed := e.stageOne(e.eligible(time.Now()), usage)

	if !e.cfg.UploadAware {
		return
	}

	// Stage 2 exists because upload-awareness can leave files undeleted. If
	// usage is still above the critical limit, drop a small batch of the
	// oldest files regardless of upload status.
	if usage-freed > e.criticalBytes {
		e.met.IncEmergencyEvictions()
		e.log.Error("storage above critical limit after upload-aware pass, deleting oldest files unconditionally",
			"used_gb", float64(usage-freed)/bytesPerGB,
			"critical_gb", e.cfg.SoftLimitGB+e.cfg.SlackGB,
		)
		remaining := e.eligible(time.Now())
		if len(remaining) > stage2Batch {
			remaining = remaining[:stage2Batch]
		}
		e.deleteAll(remaining, math.MaxInt64)
	}
}

// stageOne deletes oldest-first until the target bytes are freed. With
// upload-awareness on, already-uploaded files are consumed first and
// non-uploaded files only cover the remainder.
func (e *Engine) stageOne(candidates []segment.Segment, usage int64) int64 {
	if !e.cfg.UploadAware {
		return e.deleteAll(candidates, e.targetBytes)
	}

	uploadedSet := e.led.UploadedSet()
	var uploaded, others []segment.Segment
	for _, c := range candidates {
		if uploadedSet[e.store.RelPath(c.Path)] {
			uploaded = append(uploaded, c)
		} else {
			others = append(others, c)
		}
	}

	freed := e.deleteAll(uploaded, e.targetBytes)
	if freed < e.targetBytes && usage-freed > e.softBytes {
		e.log.Warn("not enough uploaded files to reach target, deleting non-uploaded files",
			"remaining_mb", float64(e.targetBytes-freed)/(1<<20))
		freed += e.deleteAll(others, e.targetBytes-freed)
	}
	return freed
}

// eligible returns deletion candidates oldest-first, excluding files young
// enough to still be written to.
func (e *Engine) eligible(now time.Time) []segment.Segment {
	all := e.store.AllMediaOldestFirst()
	out := make([]segment.Segment, 0, len(all))
	for _, s := range all {
		if now.Sub(s.ModTime) < segment.LiveWindow {
			continue
		}
		out = append(out, s)
	}
	return out
}

// deleteAll removes files until target bytes are freed or candidates run
// out, returning the bytes actually freed. Files that vanished between
// listing and deletion count as already deleted.
func (e *Engine) deleteAll(candidates []segment.Segment, target int64) int64 {
	var freed int64
	for _, c := range candidates {
		if freed >= target {
			break
		}
		if err := os.Remove(c.Path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			e.log.Warn("failed to delete file", "path", c.Path, "error", err)
			continue
		}
		freed += c.Size
		e.met.IncFilesEvicted(c.Size)
		e.log.Info("deleted recording", "path", e.store.RelPath(c.Path),
			"size_mb", float64(c.Size)/(1<<20))
		e.pruneParent(c.Path)
	}
	return freed
}

// pruneParent removes the file's parent directory when it became empty,
// never touching the recording root itself.
func (e *Engine) pruneParent(path string) {
	parent := filepath.Dir(path)
	if parent == e.store.Root {
		return
	}
	entries, err := os.ReadDir(parent)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(parent)
}

// Usage returns the storage summary for read-only consumers.
func (e *Engine) Usage() Summary {
	usedGB := math.Round(float64(e.store.TotalBytes())/bytesPerGB*10) / 10
	return Summary{
		Summary: fmt.Sprintf("%.1f GB / %d GB", usedGB, e.cfg.SoftLimitGB),
		UsedGB:  usedGB,
		MaxGB:   e.cfg.SoftLimitGB,
	}
}
