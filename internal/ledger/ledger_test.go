package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLedgerFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUploadedSet(t *testing.T) {
	root := t.TempDir()
	writeLedgerFile(t, filepath.Join(root, ProcessedFileName),
		"video_path,size_mb,upload_status\n"+
			"ch1/2026-01-03/100000.ts,120.50,done\n"+
			"ch1/2026-01-03/101000.ts,118.00,\n"+
			"ch2/2026-01-03/100000.ts,99.10,done\n")

	set := New(root).UploadedSet()
	if len(set) != 2 {
		t.Fatalf("expected 2 uploaded paths, got %d", len(set))
	}
	if !set["ch1/2026-01-03/100000.ts"] || !set["ch2/2026-01-03/100000.ts"] {
		t.Errorf("unexpected set: %v", set)
	}
	if set["ch1/2026-01-03/101000.ts"] {
		t.Error("pending file must not be in the uploaded set")
	}
}

func TestUploadedSet_missing_file(t *testing.T) {
	set := New(t.TempDir()).UploadedSet()
	if len(set) != 0 {
		t.Errorf("missing ledger should yield empty set, got %v", set)
	}
}

func TestUploadedSet_skips_corrupt_lines(t *testing.T) {
	root := t.TempDir()
	writeLedgerFile(t, filepath.Join(root, ProcessedFileName),
		"video_path,size_mb,upload_status\n"+
			"only-one-column\n"+
			"ch1/2026-01-03/100000.ts,120.50,done\n")

	set := New(root).UploadedSet()
	if len(set) != 1 {
		t.Errorf("corrupt line should be skipped, got %v", set)
	}
}

func TestPendingByChannel(t *testing.T) {
	root := t.TempDir()
	writeLedgerFile(t, filepath.Join(root, ProcessedFileName),
		"video_path,size_mb,upload_status\n"+
			"ch1/2026-01-03/101000.ts,10.0,\n"+
			"ch1/2026-01-03/100000.ts,10.0,\n"+
			"ch2/2026-01-03/100000.ts,10.0,\n"+
			"ch1/2026-01-03/102000.ts,10.0,done\n")

	pending := New(root).PendingByChannel()
	if len(pending) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(pending))
	}
	ch1 := pending["ch1"]
	if len(ch1) != 2 {
		t.Fatalf("expected 2 pending files for ch1, got %d", len(ch1))
	}
	if ch1[0].Path != "ch1/2026-01-03/100000.ts" {
		t.Errorf("pending files should be sorted chronologically, got %s first", ch1[0].Path)
	}
}

func TestEntriesFor(t *testing.T) {
	root := t.TempDir()
	led := New(root)
	writeLedgerFile(t, led.DailyFile("2026-01-03"),
		"Main Gate,2026-01-03,10:00:00,https://youtu.be/abc,synced,Channel 1\n"+
			"Back Yard,2026-01-03,10:10:00,https://youtu.be/def,synced,Channel 2\n"+
			"bad line\n"+
			"Legacy,2026-01-03,11:00:00,https://youtu.be/ghi\n")

	entries := led.EntriesFor("2026-01-03", 1)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for channel 1, got %d", len(entries))
	}
	if entries[0].URL != "https://youtu.be/abc" || entries[0].Time != "10:00:00" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}

	// The legacy row without a camera column defaults to Unknown and never
	// matches a channel query.
	if got := led.EntriesFor("2026-01-03", 3); len(got) != 0 {
		t.Errorf("expected no entries for channel 3, got %d", len(got))
	}
}

func TestEntriesFor_missing_file(t *testing.T) {
	if got := New(t.TempDir()).EntriesFor("2026-01-03", 1); len(got) != 0 {
		t.Errorf("missing daily file should yield no entries, got %d", len(got))
	}
}

func TestDateFromFilename(t *testing.T) {
	if date, ok := DateFromFilename("youtube_uploads_2026-01-03.csv"); !ok || date != "2026-01-03" {
		t.Errorf("got %s ok=%v", date, ok)
	}
	for _, bad := range []string{
		"uploads_2026-01-03.csv",
		"youtube_uploads_20260103.csv",
		"youtube_uploads_2026-01-03.txt",
	} {
		if _, ok := DateFromFilename(bad); ok {
			t.Errorf("%s should not parse", bad)
		}
	}
}

func TestDailyDates(t *testing.T) {
	root := t.TempDir()
	led := New(root)
	writeLedgerFile(t, led.DailyFile("2026-01-03"), "x,2026-01-03,10:00:00,u,synced,Channel 1\n")
	writeLedgerFile(t, led.DailyFile("2026-01-05"), "x,2026-01-05,10:00:00,u,synced,Channel 1\n")
	writeLedgerFile(t, filepath.Join(root, "notes.csv"), "noise\n")

	dates := led.DailyDates()
	if len(dates) != 2 {
		t.Errorf("expected 2 dates, got %v", dates)
	}
}
