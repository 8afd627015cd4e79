package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"nvr-engine/internal/catalog"
	"nvr-engine/internal/eviction"
	"nvr-engine/internal/ledger"
	"nvr-engine/internal/platform/metrics"
	"nvr-engine/internal/playlist"
	"nvr-engine/internal/segment"
)

type noProbe struct{}

func (noProbe) Duration(ctx context.Context, path string) (float64, error) {
	return 0, errors.New("probing disabled in tests")
}

func newTestRouter(t *testing.T, root string) chi.Router {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	met := metrics.New()
	st := segment.NewStore(root)
	led := ledger.New(root)
	channels := []int{1, 2}

	cat := catalog.New(st, led, catalog.NewDurationCache(filepath.Join(t.TempDir(), "cache.json")),
		noProbe{}, channels, t.TempDir(), log, met)
	evict, err := eviction.NewEngine(st, led, eviction.Config{SoftLimitGB: 500, SlackGB: 10}, log, met)
	if err != nil {
		t.Fatal(err)
	}
	synth := playlist.NewSynthesizer(st, 600)

	r := chi.NewRouter()
	NewHandler(cat, evict, synth, channels, log).Routes(r)
	return r
}

func get(t *testing.T, r chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetRecordings_empty_is_json_array(t *testing.T) {
	r := newTestRouter(t, t.TempDir())
	rec := get(t, r, "/recordings/1/2026-01-03")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("no recordings must serialize as an empty array, got %q", got)
	}
}

func TestGetRecordings_lists_segments(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "ch1/2026-01-03/100000.ts")
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("data"), 0o644)
	old := time.Now().Add(-time.Hour)
	os.Chtimes(path, old, old)

	rec := get(t, newTestRouter(t, root), "/recordings/1/2026-01-03")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var recs []catalog.Recording
	if err := json.Unmarshal(rec.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Name != "ch1/2026-01-03/100000.ts" {
		t.Errorf("unexpected recordings payload: %+v", recs)
	}
}

func TestGetRecordings_rejects_bad_params(t *testing.T) {
	r := newTestRouter(t, t.TempDir())

	cases := []string{
		"/recordings/abc/2026-01-03", // not a number
		"/recordings/9/2026-01-03",   // not a configured channel
		"/recordings/1/garbage",      // not a date
		"/recordings/1/2026-1-3",     // wrong date shape
	}
	for _, path := range cases {
		if rec := get(t, r, path); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestGetDates(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "ch1/2026-01-03"), 0o755)
	r := newTestRouter(t, root)

	rec := get(t, r, "/dates?channel=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var dates []string
	if err := json.Unmarshal(rec.Body.Bytes(), &dates); err != nil {
		t.Fatal(err)
	}
	if len(dates) != 1 || dates[0] != "2026-01-03" {
		t.Errorf("unexpected dates %v", dates)
	}

	if rec := get(t, r, "/dates?channel=9"); rec.Code != http.StatusBadRequest {
		t.Errorf("unconfigured channel filter should 400, got %d", rec.Code)
	}
}

func TestGetStorage(t *testing.T) {
	rec := get(t, newTestRouter(t, t.TempDir()), "/storage")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var s eviction.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	if s.MaxGB != 500 {
		t.Errorf("expected configured limit in summary, got %+v", s)
	}
}

func TestGetChannels(t *testing.T) {
	rec := get(t, newTestRouter(t, t.TempDir()), "/channels")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var statuses map[int]catalog.ChannelStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatal(err)
	}
	if statuses[1].Status != "OFF" || statuses[2].Status != "OFF" {
		t.Errorf("channels with no recordings should report OFF, got %v", statuses)
	}
}

func TestGetPlaybackPlaylist(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ch1/2026-01-03")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "100000.ts"), []byte("x"), 0o644)

	rec := get(t, newTestRouter(t, root), "/playback/1/2026-01-03/playlist.m3u8")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("unexpected content type %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("playlists must not be cached, got %q", cc)
	}
	if !strings.HasPrefix(rec.Body.String(), "#EXTM3U\n") {
		t.Error("body should be an m3u8 playlist")
	}
	if !strings.Contains(rec.Body.String(), "/recordings/ch1/2026-01-03/100000.ts") {
		t.Error("playlist should reference the segment")
	}
}

func TestGetPlaybackSegments(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "ch1/2026-01-03")
	os.MkdirAll(dir, 0o755)
	os.WriteFile(filepath.Join(dir, "100000.ts"), []byte("x"), 0o644)

	rec := get(t, newTestRouter(t, root), "/playback/1/2026-01-03/segments")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Channel         int             `json:"channel"`
		Date            string          `json:"date"`
		SegmentDuration int             `json:"segment_duration"`
		Segments        []playlist.Item `json:"segments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Channel != 1 || payload.Date != "2026-01-03" || payload.SegmentDuration != 600 {
		t.Errorf("unexpected payload header: %+v", payload)
	}
	if len(payload.Segments) != 1 || payload.Segments[0].Time != "10:00:00" {
		t.Errorf("unexpected segments: %+v", payload.Segments)
	}
}
