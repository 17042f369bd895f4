package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// fakeExtractor returns a record per image unless an error is scripted for its name.
type fakeExtractor struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, img entity.SourceImage) (*core.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, img.Name)
	if err := f.errs[img.Name]; err != nil {
		return nil, err
	}
	concept := "30012"
	return &core.Extraction{
		Record:     &entity.Record{Timestamp: time.Now(), ImageFile: img.Name, Concept: &concept},
		BestSource: "gray-otsu/fake:psm6-spa",
		Candidates: 1,
	}, nil
}

func (f *fakeExtractor) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// memLedger keeps records and markers in memory; commitErr fails every commit.
type memLedger struct {
	mu        sync.Mutex
	markers   map[string]bool
	records   []*entity.Record
	commitErr error
}

func newMemLedger() *memLedger { return &memLedger{markers: map[string]bool{}} }

func (l *memLedger) IsProcessed(_ context.Context, name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markers[name], nil
}

func (l *memLedger) Commit(_ context.Context, rec *entity.Record) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.commitErr != nil {
		return 0, l.commitErr
	}
	if l.markers[rec.ImageFile] {
		return 0, fmt.Errorf("%s: %w", rec.ImageFile, common.ErrAlreadyProcessed)
	}
	l.markers[rec.ImageFile] = true
	l.records = append(l.records, rec)
	return int64(len(l.records)), nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

type dirs struct{ watch, archive string }

func newDirs(t *testing.T) dirs {
	t.Helper()
	root := t.TempDir()
	d := dirs{watch: filepath.Join(root, "screenshots"), archive: filepath.Join(root, "processed")}
	for _, p := range []string{d.watch, d.archive} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return d
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newTestController(d dirs, ex Extractor, l Ledger, opts ...Option) *Controller {
	return NewController(Config{WatchDir: d.watch, ArchiveDir: d.archive}, ex, l, nil, opts...)
}

func TestProcess_CommitsAndArchives(t *testing.T) {
	d := newDirs(t)
	ledger := newMemLedger()
	c := newTestController(d, &fakeExtractor{}, ledger)
	path := writeImage(t, d.watch, "a.png")

	if got := c.Process(context.Background(), path); got != constants.StateCommitted {
		t.Fatalf("state = %s, want %s", got, constants.StateCommitted)
	}
	if exists(path) || !exists(filepath.Join(d.archive, "a.png")) {
		t.Fatal("committed image was not moved to the archive")
	}
	if ledger.count() != 1 || !ledger.markers["a.png"] {
		t.Fatalf("ledger = %+v", ledger)
	}
	if s := c.Stats(); s.Discovered != 1 || s.Committed != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestProcess_ArchiveKeepsEarlierImage(t *testing.T) {
	d := newDirs(t)
	ledger := newMemLedger()
	c := newTestController(d, &fakeExtractor{}, ledger)

	for _, name := range []string{"a.png", "a-1.png"} {
		if err := os.WriteFile(filepath.Join(d.archive, name), []byte("earlier "+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	path := writeImage(t, d.watch, "a.png")
	if got := c.Process(context.Background(), path); got != constants.StateCommitted {
		t.Fatalf("state = %s, want %s", got, constants.StateCommitted)
	}

	for name, want := range map[string]string{
		"a.png":   "earlier a.png",
		"a-1.png": "earlier a-1.png",
		"a-2.png": "png bytes",
	} {
		got, err := os.ReadFile(filepath.Join(d.archive, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if exists(path) {
		t.Error("image left in the watch directory")
	}

	// A re-dropped file with a marker is skipped and archived under the next free name.
	path = writeImage(t, d.watch, "a.png")
	if got := c.Process(context.Background(), path); got != constants.StateSkipped {
		t.Fatalf("state = %s, want %s", got, constants.StateSkipped)
	}
	if !exists(filepath.Join(d.archive, "a-3.png")) || exists(path) {
		t.Error("re-dropped image was not archived as a-3.png")
	}
}

func TestProcess_Idempotent(t *testing.T) {
	d := newDirs(t)
	ledger := newMemLedger()
	ex := &fakeExtractor{}
	c := newTestController(d, ex, ledger)

	path := writeImage(t, d.watch, "a.png")
	c.Process(context.Background(), path)

	// Same filename dropped again, then discovered twice.
	writeImage(t, d.watch, "a.png")
	for i := 0; i < 2; i++ {
		if got := c.Process(context.Background(), path); got != constants.StateSkipped {
			t.Fatalf("attempt %d: state = %s, want %s", i, got, constants.StateSkipped)
		}
	}
	if ledger.count() != 1 {
		t.Fatalf("records = %d, want 1", ledger.count())
	}
	if len(ex.called()) != 1 {
		t.Fatalf("extractor called %d times, want 1", len(ex.called()))
	}
	if exists(path) {
		t.Fatal("leftover processed image was not archived")
	}
}

func TestProcess_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		extractErr error
		commitErr  error
	}{
		{name: "no text", extractErr: fmt.Errorf("4 combinations: %w", common.ErrNoTextExtracted)},
		{name: "no fields", extractErr: common.ErrNoFieldsResolved},
		{name: "validation", extractErr: common.NewAppError("VALIDATION_ERROR", "a.png", common.ErrValidation)},
		{name: "commit failure", commitErr: errors.New("disk I/O error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDirs(t)
			ledger := newMemLedger()
			ledger.commitErr = tt.commitErr
			ex := &fakeExtractor{errs: map[string]error{"a.png": tt.extractErr}}
			c := newTestController(d, ex, ledger)
			path := writeImage(t, d.watch, "a.png")

			if got := c.Process(context.Background(), path); got != constants.StateRejected {
				t.Fatalf("state = %s, want %s", got, constants.StateRejected)
			}
			if !exists(path) {
				t.Fatal("rejected image left the watch directory")
			}
			if ledger.markers["a.png"] || ledger.count() != 0 {
				t.Fatal("rejected image was written to the ledger")
			}
			if s := c.Stats(); s.Rejected != 1 {
				t.Errorf("stats = %+v", s)
			}
		})
	}
}

func TestProcess_RetryAfterRejection(t *testing.T) {
	d := newDirs(t)
	ledger := newMemLedger()
	ex := &fakeExtractor{errs: map[string]error{"a.png": common.ErrNoTextExtracted}}
	c := newTestController(d, ex, ledger)
	path := writeImage(t, d.watch, "a.png")

	if got := c.Process(context.Background(), path); got != constants.StateRejected {
		t.Fatalf("first attempt = %s", got)
	}
	ex.mu.Lock()
	delete(ex.errs, "a.png")
	ex.mu.Unlock()
	if got := c.Process(context.Background(), path); got != constants.StateCommitted {
		t.Fatalf("retry = %s", got)
	}
}

func TestProcess_CommitAlreadyProcessed(t *testing.T) {
	d := newDirs(t)
	ledger := newMemLedger()
	ledger.commitErr = fmt.Errorf("a.png: %w", common.ErrAlreadyProcessed)
	c := newTestController(d, &fakeExtractor{}, ledger)
	path := writeImage(t, d.watch, "a.png")

	if got := c.Process(context.Background(), path); got != constants.StateSkipped {
		t.Fatalf("state = %s, want %s", got, constants.StateSkipped)
	}
	if exists(path) {
		t.Fatal("image of a concurrent commit was not archived")
	}
}

func TestProcess_MissingFile(t *testing.T) {
	d := newDirs(t)
	ex := &fakeExtractor{}
	c := newTestController(d, ex, newMemLedger())

	if got := c.Process(context.Background(), filepath.Join(d.watch, "gone.png")); got != constants.StateSkipped {
		t.Fatalf("state = %s, want %s", got, constants.StateSkipped)
	}
	if len(ex.called()) != 0 {
		t.Fatal("extractor called for a missing file")
	}
}

func TestProcess_CancelDuringSettle(t *testing.T) {
	d := newDirs(t)
	ex := &fakeExtractor{}
	c := NewController(Config{WatchDir: d.watch, ArchiveDir: d.archive, SettleDelay: time.Hour}, ex, newMemLedger(), nil)
	path := writeImage(t, d.watch, "a.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := c.Process(ctx, path)
	if got.Terminal() {
		t.Fatalf("state = %s, want a non-terminal state", got)
	}
	if len(ex.called()) != 0 || !exists(path) {
		t.Fatal("cancelled attempt touched the image")
	}
}

func TestPrepare(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"creates missing", Config{WatchDir: filepath.Join(root, "w"), ArchiveDir: filepath.Join(root, "a")}, false},
		{"watch is a file", Config{WatchDir: file, ArchiveDir: filepath.Join(root, "a")}, true},
		{"same dir", Config{WatchDir: filepath.Join(root, "w"), ArchiveDir: filepath.Join(root, "w")}, true},
		{"empty", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewController(tt.cfg, &fakeExtractor{}, newMemLedger(), nil).Prepare()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Prepare() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// statusLog records health transitions.
type statusLog struct {
	mu     sync.Mutex
	states []bool
}

func (s *statusLog) set(serving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, serving)
}

func (s *statusLog) get() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.states...)
}

func TestRun_BacklogThenLive(t *testing.T) {
	d := newDirs(t)
	writeImage(t, d.watch, "b.png")
	writeImage(t, d.watch, "a.png")
	writeImage(t, d.watch, "notes.txt")

	ex := &fakeExtractor{}
	ledger := newMemLedger()
	status := &statusLog{}
	events := make(chan string, 4)
	var subscribedBeforeDrain bool
	watch := func(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
		subscribedBeforeDrain = len(ex.called()) == 0
		if cfg.Dir != d.watch {
			t.Errorf("watch dir = %q", cfg.Dir)
		}
		return events, nil, nil
	}
	c := newTestController(d, ex, ledger, WithWatcher(watch), WithStatus(status.set))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	events <- writeImage(t, d.watch, "c.png")
	waitFor(t, func() bool { return c.Stats().Committed == 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !subscribedBeforeDrain {
		t.Error("watcher subscribed after the backlog drain started")
	}
	calls := ex.called()
	if len(calls) != 3 || calls[0] != "a.png" || calls[1] != "b.png" || calls[2] != "c.png" {
		t.Errorf("extraction order = %v", calls)
	}
	if !exists(filepath.Join(d.watch, "notes.txt")) {
		t.Error("non-image file was touched")
	}
	got := status.get()
	if len(got) != 3 || got[0] || !got[1] || got[2] {
		t.Errorf("status transitions = %v, want [false true false]", got)
	}
}

func TestRun_SubscribeFailure(t *testing.T) {
	d := newDirs(t)
	watch := func(context.Context, WatchConfig) (<-chan string, <-chan error, error) {
		return nil, nil, errors.New("inotify limit reached")
	}
	c := newTestController(d, &fakeExtractor{}, newMemLedger(), WithWatcher(watch))
	if err := c.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded without a watcher")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
