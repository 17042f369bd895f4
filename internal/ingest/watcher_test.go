package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.JPG", "a.png", "c.tif", ".hidden.png", "notes.txt", "scan.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "d.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ScanDirectory(dir, nil)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	want := []string{"a.png", "b.JPG", "c.tif"}
	if len(got) != len(want) {
		t.Fatalf("ScanDirectory = %v, want %v", got, want)
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Errorf("entry %d = %s, want %s", i, filepath.Base(got[i]), want[i])
		}
	}

	if _, err := ScanDirectory(filepath.Join(dir, "missing"), nil); err == nil {
		t.Error("ScanDirectory on a missing directory succeeded")
	}
}

func TestAllowedPath(t *testing.T) {
	tests := map[string]bool{
		"shot.png":        true,
		"shot.JPEG":       true,
		"shot.bmp":        true,
		"shot.tiff":       true,
		"shot.heic":       false,
		"shot":            false,
		".shot.png":       false,
		"dir/.shot.png":   false,
		"dir/sub/a.jpg":   true,
		"shot.png.part":   false,
		"screenshots.txt": false,
	}
	for path, want := range tests {
		if got := AllowedPath(path, nil); got != want {
			t.Errorf("AllowedPath(%q) = %v, want %v", path, got, want)
		}
	}
	if !AllowedPath("x.gif", map[string]struct{}{"gif": {}}) {
		t.Error("custom extension set ignored")
	}
}

func TestStartWatcher_EmitsNewImages(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{Dir: dir, Coalesce: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "shot.png")
	if err := os.WriteFile(want, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-events:
		if got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event for a new image")
	}

	// Create and write of the same file coalesce into one event.
	select {
	case extra := <-events:
		t.Fatalf("unexpected second event %q", extra)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	for range events {
	}
}

func TestStartWatcher_RequiresDir(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Fatal("StartWatcher without a directory succeeded")
	}
}
