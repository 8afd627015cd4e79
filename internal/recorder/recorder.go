// Package recorder supervises one external ffmpeg capture process per
// channel, writing HLS segments into the date-organized recording layout.
// Each channel runs an independent control loop; a crash or stall on one
// channel never affects another.
package recorder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"nvr-engine/internal/platform/metrics"
	"nvr-engine/internal/segment"
)

// State is the supervisor's per-channel lifecycle phase.
type State string

const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateCrashed  State = "CRASHED"
	StateStalled  State = "STALLED"
)

const (
	tickInterval   = 1 * time.Second
	stoppedIdle    = 2 * time.Second
	stallInterval  = 10 * time.Second
	termTimeout    = 5 * time.Second
	maxBackoff     = 30 * time.Second
	crashTailBytes = 1000
)

// backoffDelay grows with consecutive failures: a flat 2s for the first few,
// then 2s per failure capped at maxBackoff.
func backoffDelay(failures int) time.Duration {
	if failures < 5 {
		return 2 * time.Second
	}
	d := time.Duration(failures) * 2 * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// channelRecorder is the state owned by a single channel's control loop.
// Nothing here is shared across goroutines.
type channelRecorder struct {
	channel int
	source  string
	cfg     Config
	log     *slog.Logger
	met     *metrics.Metrics

	state         State
	proc          *exec.Cmd
	waitCh        chan error
	stderr        *bytes.Buffer
	failures      int
	currentDate   string
	lastFileCheck time.Time
}

func (r *channelRecorder) run(ctx context.Context) {
	r.state = StateStarting
	for {
		if ctx.Err() != nil {
			r.terminate()
			r.state = StateStopped
			r.log.Info("recorder shut down")
			return
		}
		r.tick(ctx)
	}
}

// tick performs one pass of the per-channel contract: directory upkeep, date
// rollover, stop-marker handling, spawn, crash classification, stall check.
func (r *channelRecorder) tick(ctx context.Context) {
	today := time.Now().Format("2006-01-02")
	outDir := filepath.Join(r.cfg.RecordDir, fmt.Sprintf("ch%d", r.channel), today)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		// Not fatal; retried next tick.
		r.log.Warn("cannot create output dir", "dir", outDir, "error", err)
		sleepCtx(ctx, tickInterval)
		return
	}

	// Midnight rollover: restart so new segments land in the new date dir.
	if r.currentDate != "" && r.currentDate != today && r.proc != nil {
		r.log.Info("date rollover, restarting capture")
		r.terminate()
		r.state = StateStarting
	}
	r.currentDate = today

	if IsStopped(r.cfg.ControlDir, r.channel) {
		if r.proc != nil {
			r.terminate()
			r.log.Info("capture stopped by control marker")
		}
		r.state = StateStopped
		r.failures = 0
		sleepCtx(ctx, stoppedIdle)
		return
	}

	if r.proc == nil {
		if err := r.spawn(outDir); err != nil {
			r.failures++
			delay := backoffDelay(r.failures)
			r.log.Error("capture failed to start", "error", err, "retry_in", delay)
			sleepCtx(ctx, delay)
			return
		}
		r.state = StateRunning
		r.lastFileCheck = time.Now()
		r.met.IncCaptureStarts()
		r.log.Info("capture started", "dir", outDir)
	}

	select {
	case err := <-r.waitCh:
		r.state = StateCrashed
		r.proc = nil
		r.failures++
		delay := backoffDelay(r.failures)
		tail := r.stderrTail()
		r.met.IncCaptureCrashes()
		r.log.Warn("capture exited, restarting",
			"error", err, "retry_in", delay, "consecutive_failures", r.failures, "stderr", tail)
		r.state = StateStarting
		sleepCtx(ctx, delay)
		return
	default:
	}

	if time.Since(r.lastFileCheck) > stallInterval {
		r.lastFileCheck = time.Now()
		if hasOutput(outDir) {
			// Clean health check; forget past failures.
			r.failures = 0
		} else {
			r.state = StateStalled
			r.met.IncCaptureStalls()
			r.log.Warn("no output files produced, restarting capture")
			r.terminate()
			r.state = StateStarting
			return
		}
	}

	sleepCtx(ctx, tickInterval)
}

func (r *channelRecorder) spawn(outDir string) error {
	args := BuildArgs(r.cfg.Encode, r.source, outDir, r.cfg.SegmentSeconds)
	cmd := exec.Command(r.cfg.Encode.FFmpegBin, args...)

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn ffmpeg: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	r.proc = cmd
	r.waitCh = waitCh
	r.stderr = stderr
	return nil
}

// terminate stops the capture process gracefully, escalating to SIGKILL
// after a bounded wait. The old process is always fully reaped before a
// replacement can start.
func (r *channelRecorder) terminate() {
	if r.proc == nil {
		return
	}
	_ = r.proc.Process.Signal(syscall.SIGTERM)
	select {
	case <-r.waitCh:
	case <-time.After(termTimeout):
		_ = r.proc.Process.Kill()
		<-r.waitCh
	}
	r.proc = nil
}

func (r *channelRecorder) stderrTail() string {
	if r.stderr == nil {
		return ""
	}
	s := r.stderr.String()
	if len(s) > crashTailBytes {
		s = s[len(s)-crashTailBytes:]
	}
	return s
}

// hasOutput reports whether the output directory holds at least one media
// file. Used as the stall health check.
func hasOutput(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && segment.IsMediaFile(e.Name()) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
