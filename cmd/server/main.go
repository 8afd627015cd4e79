package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"nvr-engine/internal/api"
	"nvr-engine/internal/catalog"
	"nvr-engine/internal/eviction"
	"nvr-engine/internal/ledger"
	"nvr-engine/internal/platform/config"
	"nvr-engine/internal/platform/logger"
	"nvr-engine/internal/platform/metrics"
	"nvr-engine/internal/playlist"
	"nvr-engine/internal/recorder"
	"nvr-engine/internal/segment"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "2126")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	recordDir := config.GetEnv("RECORD_DIR", "./recordings")
	controlDir := config.GetEnv("CONTROL_DIR", "/tmp/nvr-control")
	numChannels := config.GetEnvInt("NUM_CHANNELS", 8)
	segmentSeconds := config.GetEnvInt("SEGMENT_DURATION", 600)

	log := logger.New(logLevel, logFormat)

	channels := activeChannels(numChannels, config.GetEnvIntList("SKIP_CHANNELS"))
	sources := make(map[int]string, len(channels))
	template := config.GetEnv("RTSP_URL_TEMPLATE", "")
	relayPort := config.GetEnvInt("RELAY_RTSP_PORT", 8554)
	for _, ch := range channels {
		sources[ch] = sourceURL(template, relayPort, ch)
	}

	if err := os.MkdirAll(recordDir, 0o755); err != nil {
		log.Error("cannot create recording root", "dir", recordDir, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(controlDir, 0o755); err != nil {
		log.Error("cannot create control dir", "dir", controlDir, "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	store := segment.NewStore(recordDir)
	led := ledger.New(recordDir)

	sup, err := recorder.NewSupervisor(recorder.Config{
		RecordDir:      recordDir,
		ControlDir:     controlDir,
		SegmentSeconds: segmentSeconds,
		Channels:       channels,
		Sources:        sources,
		Encode: recorder.Encode{
			FFmpegBin: config.GetEnv("FFMPEG_BIN", "ffmpeg"),
			Transcode: config.GetEnvBool("INLINE_TRANSCODING", false),
			Codec:     config.GetEnv("VIDEO_CODEC", "copy"),
			CRF:       config.GetEnv("VIDEO_CRF", "23"),
			Preset:    config.GetEnv("VIDEO_PRESET", "veryfast"),
			HWArgs:    config.GetEnv("FFMPEG_HW_ARGS", ""),
			VFArgs:    config.GetEnv("FFMPEG_VF_ARGS", ""),
		},
	}, log.With("component", "recorder"), met)
	if err != nil {
		log.Error("recorder configuration invalid", "error", err)
		os.Exit(1)
	}

	evict, err := eviction.NewEngine(store, led, eviction.Config{
		SoftLimitGB: config.GetEnvInt("MAX_STORAGE_GB", 500),
		SlackGB:     config.GetEnvInt("MAX_STORAGE_EXCEED_ALLOWED_GB", 10),
		Interval:    time.Duration(config.GetEnvInt("CLEANUP_INTERVAL", 60)) * time.Second,
		UploadAware: config.GetEnvBool("UPLOAD_AWARE_CLEANUP", false),
	}, log.With("component", "eviction"), met)
	if err != nil {
		log.Error("storage limits invalid", "error", err)
		os.Exit(1)
	}

	cache := catalog.NewDurationCache(filepath.Join(recordDir, "metadata_cache.json"))
	prober := catalog.NewProber(config.GetEnv("FFPROBE_BIN", "ffprobe"))
	cat := catalog.New(store, led, cache, prober, channels, controlDir,
		log.With("component", "catalog"), met)
	synth := playlist.NewSynthesizer(store, segmentSeconds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.Start(ctx)
	go evict.Run(ctx)

	h := api.NewHandler(cat, evict, synth, channels, log.With("component", "api"))
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Handle("/metrics", met.Handler())
	r.Route("/api", h.Routes)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("nvr engine started",
		"port", port,
		"record_dir", recordDir,
		"channels", len(channels),
		"segment_seconds", segmentSeconds,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping recorders")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	sup.Wait()
	log.Info("nvr engine stopped")
}

// activeChannels returns 1..n with the skipped ids removed.
func activeChannels(n int, skip []int) []int {
	skipped := make(map[int]bool, len(skip))
	for _, ch := range skip {
		skipped[ch] = true
	}
	var out []int
	for ch := 1; ch <= n; ch++ {
		if !skipped[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// sourceURL resolves a channel's RTSP source: an explicit template with a
// {channel} placeholder, or the local media-relay hub.
func sourceURL(template string, relayPort, channel int) string {
	if template != "" {
		return strings.ReplaceAll(template, "{channel}", fmt.Sprintf("%d", channel))
	}
	return fmt.Sprintf("rtsp://localhost:%d/cam%d", relayPort, channel)
}
