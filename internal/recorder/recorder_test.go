package recorder

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestBuildArgs_copy(t *testing.T) {
	enc := Encode{FFmpegBin: "ffmpeg", Codec: "copy"}
	args := BuildArgs(enc, "rtsp://localhost:8554/cam1", "/rec/ch1/2026-01-03", 600)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-rtsp_transport tcp") {
		t.Error("expected TCP transport")
	}
	if !strings.Contains(joined, "-i rtsp://localhost:8554/cam1") {
		t.Error("expected source after -i")
	}
	if !strings.Contains(joined, "-c:v copy") {
		t.Error("expected stream copy")
	}
	if !strings.Contains(joined, "-hls_segment_filename /rec/ch1/2026-01-03/%H%M%S.ts") {
		t.Error("expected strftime segment filename")
	}
	if !strings.Contains(joined, "-hls_flags append_list+program_date_time") {
		t.Error("expected program-date-time tagging")
	}
	if !strings.Contains(joined, "-hls_time 600") {
		t.Error("expected configured segment duration")
	}
	if strings.Contains(joined, "-crf") {
		t.Error("copy mode must not carry encode options")
	}
}

func TestBuildArgs_transcode(t *testing.T) {
	enc := Encode{
		FFmpegBin: "ffmpeg",
		Transcode: true,
		Codec:     "libx265",
		CRF:       "23",
		Preset:    "veryfast",
		VFArgs:    "scale=1280:-2",
	}
	args := BuildArgs(enc, "rtsp://cam", "/out", 600)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-c:v libx265") {
		t.Error("expected configured codec")
	}
	if !strings.Contains(joined, "-crf 23 -preset veryfast") {
		t.Error("expected crf/preset pair")
	}
	if !strings.Contains(joined, "-vf scale=1280:-2") {
		t.Error("expected filter args")
	}
	if !strings.Contains(joined, "-force_key_frames expr:gte(t,n_forced*600)") {
		t.Error("expected keyframes forced at segment boundaries")
	}
}

func TestBuildArgs_transcode_vaapi_uses_qp(t *testing.T) {
	enc := Encode{Transcode: true, Codec: "hevc_vaapi", CRF: "25", HWArgs: "-vaapi_device /dev/dri/renderD128"}
	args := BuildArgs(enc, "rtsp://cam", "/out", 600)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-rc_mode CQP") || !strings.Contains(joined, "-qp 25") {
		t.Error("vaapi encoders use CQP/qp instead of crf")
	}
	if strings.Contains(joined, "-preset") {
		t.Error("vaapi path must not set a preset")
	}
	// Hardware init must come before the input.
	if slices.Index(args, "-vaapi_device") > slices.Index(args, "-i") {
		t.Error("hardware args must precede -i")
	}
}

func TestBuildArgs_transcode_copy_codec_falls_back(t *testing.T) {
	enc := Encode{Transcode: true, Codec: "copy", CRF: "23", Preset: "veryfast"}
	args := BuildArgs(enc, "rtsp://cam", "/out", 600)
	if !strings.Contains(strings.Join(args, " "), "-c:v libx265") {
		t.Error("transcode with codec=copy should fall back to libx265")
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, 2 * time.Second},
		{4, 2 * time.Second},
		{5, 10 * time.Second},
		{10, 20 * time.Second},
		{30, 30 * time.Second}, // capped
	}
	for _, c := range cases {
		if got := backoffDelay(c.failures); got != c.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", c.failures, got, c.want)
		}
	}
}

func TestStopMarker(t *testing.T) {
	dir := t.TempDir()
	if IsStopped(dir, 1) {
		t.Error("channel should not start out stopped")
	}
	if err := SetStopped(dir, 1, true); err != nil {
		t.Fatal(err)
	}
	if !IsStopped(dir, 1) {
		t.Error("marker should stop the channel")
	}
	if IsStopped(dir, 2) {
		t.Error("marker must only affect its own channel")
	}
	if err := SetStopped(dir, 1, false); err != nil {
		t.Fatal(err)
	}
	if IsStopped(dir, 1) {
		t.Error("clearing the marker should resume the channel")
	}
	// Clearing twice is a no-op.
	if err := SetStopped(dir, 1, false); err != nil {
		t.Fatal(err)
	}
}

func TestHasOutput(t *testing.T) {
	dir := t.TempDir()
	if hasOutput(dir) {
		t.Error("empty dir has no output")
	}
	writeTestFile(t, dir+"/playlist.m3u8")
	if hasOutput(dir) {
		t.Error("a playlist alone is not capture output")
	}
	writeTestFile(t, dir+"/100000.ts")
	if !hasOutput(dir) {
		t.Error("a .ts segment counts as output")
	}
}

func TestNewSupervisor_missing_source_is_fatal(t *testing.T) {
	cfg := Config{
		RecordDir:      t.TempDir(),
		ControlDir:     t.TempDir(),
		SegmentSeconds: 600,
		Channels:       []int{1, 2},
		Sources:        map[int]string{1: "rtsp://cam1"},
	}
	if _, err := NewSupervisor(cfg, discardLogger(), nil); err == nil {
		t.Error("expected error for channel without a source")
	}

	cfg.Sources[2] = "rtsp://cam2"
	cfg.Encode.FFmpegBin = "ffmpeg"
	if _, err := NewSupervisor(cfg, discardLogger(), nil); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestNewSupervisor_rejects_bad_segment_duration(t *testing.T) {
	cfg := Config{SegmentSeconds: 0}
	if _, err := NewSupervisor(cfg, discardLogger(), nil); err == nil {
		t.Error("expected error for non-positive segment duration")
	}
}
