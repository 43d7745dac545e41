// Package retention implements the rolling retention policy over stored
// snapshots: blobs older than a configured age are swept from the tenant's
// bucket on every scheduled cycle.
package retention

import (
	"context"
	"time"

	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

// DefaultMaxAgeDays is the retention window applied when the caller passes a
// non-positive age.
const DefaultMaxAgeDays = 3

// BackupLister is the transport surface the sweeper needs.
type BackupLister interface {
	List(ctx context.Context, companyID *int64, limit int) ([]models.BackupMetadata, error)
	Delete(ctx context.Context, companyID *int64, path string) error
}

// Sweeper deletes remote snapshots older than the retention window. It is a
// pure policy layer over the transport: idempotent and safe to call
// redundantly, from the scheduler after each fire and from manual cleanup.
type Sweeper struct {
	transport BackupLister
	logger    logging.Logger
	now       func() time.Time
}

// NewSweeper builds a sweeper over the given transport.
func NewSweeper(transport BackupLister, logger logging.Logger) *Sweeper {
	return &Sweeper{
		transport: transport,
		logger:    logger.With("component", "retention"),
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep deletes every blob of the tenant older than maxAgeDays and returns
// the number deleted. An empty candidate set is success with count 0. A
// listing failure aborts the sweep; a single delete failure is logged and
// skipped.
func (s *Sweeper) Sweep(ctx context.Context, companyID *int64, maxAgeDays int) (int, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	cutoff := s.now().AddDate(0, 0, -maxAgeDays)

	metas, err := s.transport.List(ctx, companyID, 0)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, meta := range metas {
		if !meta.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.transport.Delete(ctx, companyID, meta.FileName); err != nil {
			s.logger.Error(ctx, "failed to delete expired backup", "path", meta.FileName, "error", err.Error())
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info(ctx, "expired backups swept", "deleted", deleted, "max_age_days", maxAgeDays)
	}
	return deleted, nil
}
