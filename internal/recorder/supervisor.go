package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"nvr-engine/internal/platform/metrics"
)

// Config carries everything the supervisor needs to run its channels.
type Config struct {
	RecordDir      string
	ControlDir     string
	SegmentSeconds int
	Channels       []int          // active (non-skipped) channel ids
	Sources        map[int]string // channel id -> RTSP source URL
	Encode         Encode
}

// Supervisor owns one control-loop goroutine per active channel.
type Supervisor struct {
	cfg Config
	log *slog.Logger
	met *metrics.Metrics
	wg  sync.WaitGroup
}

// NewSupervisor validates the configuration and returns a supervisor. An
// active channel without a capture source is a fatal startup condition: the
// system must know its inputs.
func NewSupervisor(cfg Config, log *slog.Logger, met *metrics.Metrics) (*Supervisor, error) {
	if cfg.SegmentSeconds <= 0 {
		return nil, fmt.Errorf("segment duration must be positive, got %d", cfg.SegmentSeconds)
	}
	for _, ch := range cfg.Channels {
		if cfg.Sources[ch] == "" {
			return nil, fmt.Errorf("channel %d has no capture source configured", ch)
		}
	}
	if met == nil {
		met = metrics.New()
	}
	return &Supervisor{cfg: cfg, log: log, met: met}, nil
}

// Start launches one recorder goroutine per channel. The goroutines run
// until ctx is cancelled; Wait blocks until they have all terminated their
// capture processes and returned.
func (s *Supervisor) Start(ctx context.Context) {
	for _, ch := range s.cfg.Channels {
		r := &channelRecorder{
			channel: ch,
			source:  s.cfg.Sources[ch],
			cfg:     s.cfg,
			log:     s.log.With("channel", ch),
			met:     s.met,
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			r.run(ctx)
		}()
		s.log.Info("recorder started", "channel", ch)
	}
	s.met.SetActiveChannels(len(s.cfg.Channels))
}

// Wait blocks until every channel loop has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
