package segment

import "testing"

func TestParseName_flat(t *testing.T) {
	name, ok := ParseName("/rec/ch3_20260103_153024.mp4")
	if !ok {
		t.Fatal("flat name should parse")
	}
	if name.Kind != NameFlat {
		t.Errorf("expected NameFlat, got %v", name.Kind)
	}
	if name.Channel != 3 {
		t.Errorf("expected channel 3, got %d", name.Channel)
	}
	if name.Date != "2026-01-03" {
		t.Errorf("expected date 2026-01-03, got %s", name.Date)
	}
	if name.Time != "15:30:24" {
		t.Errorf("expected time 15:30:24, got %s", name.Time)
	}
	if name.Ext != ".mp4" {
		t.Errorf("expected ext .mp4, got %s", name.Ext)
	}
}

func TestParseName_nested(t *testing.T) {
	name, ok := ParseName("/rec/ch1/2026-01-03/100000.ts")
	if !ok {
		t.Fatal("nested name should parse")
	}
	if name.Kind != NameNested {
		t.Errorf("expected NameNested, got %v", name.Kind)
	}
	if name.Channel != 0 {
		t.Errorf("nested names carry no channel, got %d", name.Channel)
	}
	if name.Date != "2026-01-03" || name.Time != "10:00:00" {
		t.Errorf("got date=%s time=%s", name.Date, name.Time)
	}
}

func TestParseName_nested_uploaded_suffix(t *testing.T) {
	name, ok := ParseName("/rec/ch1/2026-01-03/100000_uploaded.ts")
	if !ok {
		t.Fatal("uploaded-renamed name should still parse")
	}
	if name.Time != "10:00:00" {
		t.Errorf("expected time 10:00:00, got %s", name.Time)
	}
}

func TestParseName_both_conventions_same_shape(t *testing.T) {
	flat, ok1 := ParseName("/rec/ch1_20260103_100000.ts")
	nested, ok2 := ParseName("/rec/ch1/2026-01-03/100000.ts")
	if !ok1 || !ok2 {
		t.Fatal("both conventions should parse")
	}
	if flat.Date != nested.Date || flat.Time != nested.Time {
		t.Errorf("conventions disagree: flat=%v nested=%v", flat, nested)
	}
}

func TestParseName_rejects(t *testing.T) {
	cases := []string{
		"/rec/ch1/2026-01-03/playlist.m3u8", // not a media container
		"/rec/ch1/2026-01-03/notatime.ts",   // bad time component
		"/rec/ch1/somedir/100000.ts",        // parent is not a date
		"/rec/metadata_cache.json",
		"/rec/youtube_uploads_2026-01-03.csv",
	}
	for _, c := range cases {
		if _, ok := ParseName(c); ok {
			t.Errorf("%s should not parse", c)
		}
	}
}

func TestIsMediaFile(t *testing.T) {
	if !IsMediaFile("100000.ts") || !IsMediaFile("a.mp4") || !IsMediaFile("a.mkv") {
		t.Error("media extensions should be recognized")
	}
	if IsMediaFile("playlist.m3u8") || IsMediaFile("notes.txt") {
		t.Error("non-media extensions should be rejected")
	}
}

func TestFormatSize(t *testing.T) {
	if got := FormatSize(512); got != "512.0 B" {
		t.Errorf("got %s", got)
	}
	if got := FormatSize(2 * 1024 * 1024); got != "2.0 MB" {
		t.Errorf("got %s", got)
	}
}
