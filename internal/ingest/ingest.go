package ingest

import (
	"context"
	"sync/atomic"

	"github.com/joseph-ayodele/sical-tracker/internal/core"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// Extractor turns one source image into a record.
type Extractor interface {
	Extract(ctx context.Context, img entity.SourceImage) (*core.Extraction, error)
}

// Ledger is the persistent side of ingestion: the processed markers and the
// transactional record commit.
type Ledger interface {
	IsProcessed(ctx context.Context, filename string) (bool, error)
	Commit(ctx context.Context, rec *entity.Record) (int64, error)
}

// Stats summarizes the attempts made since the controller started.
type Stats struct {
	Discovered uint64
	Committed  uint64
	Skipped    uint64
	Rejected   uint64
}

type counters struct {
	discovered atomic.Uint64
	committed  atomic.Uint64
	skipped    atomic.Uint64
	rejected   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Discovered: c.discovered.Load(),
		Committed:  c.committed.Load(),
		Skipped:    c.skipped.Load(),
		Rejected:   c.rejected.Load(),
	}
}
