// Package api is the thin read-only HTTP shell over the catalog, the
// eviction engine's storage summary, and the playlist synthesizer.
// Authentication and the media-relay proxy live in external collaborators.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"nvr-engine/internal/catalog"
	"nvr-engine/internal/eviction"
	"nvr-engine/internal/playlist"

	"github.com/go-chi/chi/v5"
)

const playlistContentType = "application/vnd.apple.mpegurl"

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Handler exposes the engine's read-only HTTP endpoints using go-chi.
type Handler struct {
	cat      *catalog.Catalog
	evict    *eviction.Engine
	synth    *playlist.Synthesizer
	channels map[int]bool
	log      *slog.Logger
}

// NewHandler returns a Handler over the given query surfaces. channels is
// the set of active (non-skipped) channel ids.
func NewHandler(cat *catalog.Catalog, evict *eviction.Engine, synth *playlist.Synthesizer,
	channels []int, log *slog.Logger) *Handler {
	active := make(map[int]bool, len(channels))
	for _, ch := range channels {
		active[ch] = true
	}
	return &Handler{cat: cat, evict: evict, synth: synth, channels: active, log: log}
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/channels", h.GetChannels)
	r.Get("/storage", h.GetStorage)
	r.Get("/dates", h.GetDates)
	r.Get("/recordings/{channel}/{date}", h.GetRecordings)
	r.Get("/playback/{channel}/{date}/playlist.m3u8", h.GetPlaybackPlaylist)
	r.Get("/playback/{channel}/{date}/segments", h.GetPlaybackSegments)
}

// GetChannels handles GET /channels: live status per active channel.
func (h *Handler) GetChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.cat.LiveChannels())
}

// GetStorage handles GET /storage: the storage usage summary.
func (h *Handler) GetStorage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.evict.Usage())
}

// GetDates handles GET /dates?channel=N: dates with recordings, newest
// first. Without a channel filter all channels are swept.
func (h *Handler) GetDates(w http.ResponseWriter, r *http.Request) {
	channel := 0
	if s := r.URL.Query().Get("channel"); s != "" {
		ch, ok := h.parseChannel(s)
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		channel = ch
	}
	dates := h.cat.Dates(channel)
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, dates)
}

// GetRecordings handles GET /recordings/{channel}/{date}: the reconciled
// recording list. "No recordings" is an empty list, not an error.
func (h *Handler) GetRecordings(w http.ResponseWriter, r *http.Request) {
	channel, date, ok := h.pathParams(w, r)
	if !ok {
		return
	}
	recs := h.cat.Recordings(r.Context(), channel, date)
	if recs == nil {
		recs = []catalog.Recording{}
	}
	writeJSON(w, recs)
}

// GetPlaybackPlaylist handles
// GET /playback/{channel}/{date}/playlist.m3u8?start=HH:MM:SS&end=HH:MM:SS.
// An empty window still returns a valid playlist.
func (h *Handler) GetPlaybackPlaylist(w http.ResponseWriter, r *http.Request) {
	channel, date, ok := h.pathParams(w, r)
	if !ok {
		return
	}
	body := h.synth.Build(channel, date, r.URL.Query().Get("start"), r.URL.Query().Get("end"))

	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// GetPlaybackSegments handles GET /playback/{channel}/{date}/segments: the
// raw segment list used by time-scroll UIs.
func (h *Handler) GetPlaybackSegments(w http.ResponseWriter, r *http.Request) {
	channel, date, ok := h.pathParams(w, r)
	if !ok {
		return
	}
	items := h.synth.SegmentsInRange(channel, date, "", "")
	if items == nil {
		items = []playlist.Item{}
	}
	writeJSON(w, map[string]any{
		"channel":          channel,
		"date":             date,
		"segment_duration": h.synth.SegmentSeconds(),
		"segments":         items,
	})
}

func (h *Handler) pathParams(w http.ResponseWriter, r *http.Request) (int, string, bool) {
	channel, ok := h.parseChannel(chi.URLParam(r, "channel"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return 0, "", false
	}
	date := chi.URLParam(r, "date")
	if !dateRe.MatchString(date) {
		w.WriteHeader(http.StatusBadRequest)
		return 0, "", false
	}
	return channel, date, true
}

// parseChannel accepts only configured, non-skipped channels.
func (h *Handler) parseChannel(s string) (int, bool) {
	ch, err := strconv.Atoi(s)
	if err != nil || !h.channels[ch] {
		return 0, false
	}
	return ch, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
