package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// Config holds the intake directories and timings.
type Config struct {
	WatchDir    string
	ArchiveDir  string
	SettleDelay time.Duration
	Coalesce    time.Duration
	AllowedExts map[string]struct{}
}

// ConfigFrom maps the application watch settings.
func ConfigFrom(c common.WatchConfig) Config {
	return Config{
		WatchDir:    c.Dir,
		ArchiveDir:  c.ArchiveDir,
		SettleDelay: c.SettleDelay,
		Coalesce:    250 * time.Millisecond,
	}
}

// Controller moves each discovered image through
// DISCOVERED -> DEBOUNCED -> EXTRACTING -> COMMITTED | REJECTED (or SKIPPED).
// Images are handled one at a time in discovery order.
type Controller struct {
	cfg       Config
	extractor Extractor
	ledger    Ledger
	logger    *slog.Logger
	watch     WatchFunc
	status    func(serving bool)
	sleep     func(ctx context.Context, d time.Duration) error
	stats     counters
}

type Option func(*Controller)

// WithWatcher replaces the fsnotify subscription.
func WithWatcher(fn WatchFunc) Option {
	return func(c *Controller) { c.watch = fn }
}

// WithStatus registers a callback told whether live events are being consumed.
func WithStatus(fn func(serving bool)) Option {
	return func(c *Controller) { c.status = fn }
}

func NewController(cfg Config, extractor Extractor, ledger Ledger, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:       cfg,
		extractor: extractor,
		ledger:    ledger,
		logger:    logger,
		watch:     StartWatcher,
		status:    func(bool) {},
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats returns a snapshot of the attempt counters.
func (c *Controller) Stats() Stats { return c.stats.snapshot() }

// Prepare validates the watch and archive directories, creating them when missing.
func (c *Controller) Prepare() error {
	if err := ensureDir(c.cfg.WatchDir); err != nil {
		return common.NewAppError("FS_ERROR", "watch directory", err)
	}
	if err := ensureDir(c.cfg.ArchiveDir); err != nil {
		return common.NewAppError("FS_ERROR", "archive directory", err)
	}
	wd, _ := filepath.Abs(c.cfg.WatchDir)
	ad, _ := filepath.Abs(c.cfg.ArchiveDir)
	if wd == ad {
		return common.NewAppError("FS_ERROR", "archive directory must differ from watch directory", common.ErrInvalidInput)
	}
	return nil
}

// Run subscribes to the watch directory, drains the backlog and then consumes
// live events until ctx is cancelled. The image in flight when ctx ends still
// finishes its commit or rejection. Only infrastructure failures are returned.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Prepare(); err != nil {
		return err
	}

	// Subscribe first so files arriving during the backlog drain are queued.
	events, errs, err := c.watch(ctx, WatchConfig{
		Dir:         c.cfg.WatchDir,
		AllowedExts: c.cfg.AllowedExts,
		Coalesce:    c.cfg.Coalesce,
		Logger:      c.logger,
	})
	if err != nil {
		return common.NewAppError("FS_ERROR", "subscribe to watch directory", err)
	}
	c.status(false)
	defer c.status(false)

	backlog, err := ScanDirectory(c.cfg.WatchDir, c.cfg.AllowedExts)
	if err != nil {
		return common.NewAppError("FS_ERROR", "scan backlog", err)
	}
	c.logger.Info("draining backlog", "dir", c.cfg.WatchDir, "files", len(backlog))
	for _, path := range backlog {
		if ctx.Err() != nil {
			return nil
		}
		c.Process(ctx, path)
	}

	c.status(true)
	c.logger.Info("watching for screenshots", "dir", c.cfg.WatchDir, "stats", c.Stats())
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("ingestion stopped", "stats", c.Stats())
			return nil
		case path, ok := <-events:
			if !ok {
				c.logger.Info("watcher closed", "stats", c.Stats())
				return nil
			}
			c.Process(ctx, path)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.logger.Warn("watch error", "error", err)
		}
	}
}

// Process runs one attempt for the image at path and returns the state it ended in.
// Cancelling ctx during the settle delay abandons the attempt before the file is
// touched and returns StateDiscovered; after that the attempt runs to completion.
func (c *Controller) Process(ctx context.Context, path string) constants.State {
	name := filepath.Base(path)
	attempt := uuid.New()
	log := c.logger.With("file", name, "attempt_id", attempt)
	c.stats.discovered.Add(1)
	log.Debug("image discovered", "state", constants.StateDiscovered)

	if err := c.sleep(ctx, c.cfg.SettleDelay); err != nil {
		log.Info("attempt abandoned before settle", "state", constants.StateDiscovered)
		return constants.StateDiscovered
	}
	log.Debug("image settled", "state", constants.StateDebounced)

	work := common.WithImageFile(common.WithAttemptID(context.WithoutCancel(ctx), attempt), name)
	start := time.Now()

	done, err := c.ledger.IsProcessed(work, name)
	if err != nil {
		return c.reject(log, start, err)
	}
	if done {
		return c.skip(log, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("image no longer present", "state", constants.StateSkipped)
			c.stats.skipped.Add(1)
			return constants.StateSkipped
		}
		return c.reject(log, start, err)
	}

	log.Debug("extracting", "state", constants.StateExtracting)
	ex, err := c.extractor.Extract(work, entity.NewSourceImage(path, data))
	if err != nil {
		return c.reject(log, start, err)
	}

	id, err := c.ledger.Commit(work, ex.Record)
	if errors.Is(err, common.ErrAlreadyProcessed) {
		return c.skip(log, path)
	}
	if err != nil {
		return c.reject(log, start, err)
	}
	archived, err := c.archive(path)
	if err != nil {
		// The marker is committed; the next discovery of this file archives it.
		log.Error("failed to archive committed image", "error", err)
	}

	c.stats.committed.Add(1)
	log.Info("image committed",
		"state", constants.StateCommitted,
		"record_id", id,
		"found", ex.Record.Found(),
		"missing", ex.Record.Missing(),
		"best", ex.BestSource,
		"candidates", ex.Candidates,
		"archived", archived,
		"duration", time.Since(start),
	)
	return constants.StateCommitted
}

// skip handles an image whose marker already exists. A source file still in the
// watch directory is left over from a commit interrupted before its archive move.
func (c *Controller) skip(log *slog.Logger, path string) constants.State {
	c.stats.skipped.Add(1)
	if _, err := os.Stat(path); err == nil {
		if archived, err := c.archive(path); err != nil {
			log.Error("failed to archive processed image", "error", err)
		} else {
			log.Info("archived leftover processed image", "state", constants.StateSkipped, "archived", archived)
			return constants.StateSkipped
		}
	}
	log.Info("image already processed", "state", constants.StateSkipped)
	return constants.StateSkipped
}

func (c *Controller) reject(log *slog.Logger, start time.Time, err error) constants.State {
	c.stats.rejected.Add(1)
	attrs := []any{"state", constants.StateRejected, "duration", time.Since(start), "error", err}
	if common.IsRejection(err) {
		log.Warn("image rejected", attrs...)
	} else {
		log.Error("image rejected", attrs...)
	}
	return constants.StateRejected
}

// maxArchiveSuffix bounds the search for a free archive name.
const maxArchiveSuffix = 1000

// archive moves path into the archive directory without replacing an earlier
// image of the same name; "a.png" becomes "a-1.png", "a-2.png" and so on.
func (c *Controller) archive(path string) (string, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; i <= maxArchiveSuffix; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		target := filepath.Join(c.cfg.ArchiveDir, name)
		if _, err := os.Lstat(target); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", target, err)
		}
		if err := os.Rename(path, target); err != nil {
			return "", err
		}
		return target, nil
	}
	return "", fmt.Errorf("no free archive name for %s after %d attempts", base, maxArchiveSuffix)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
