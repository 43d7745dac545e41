// Package snapshot assembles versioned whole-tenant exports: every entity
// collection fetched concurrently into one document, plus the user-facing
// file export and a count summary for display.
package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

// Reader is the record source the builder fans out over. The mirror
// implements it; tests substitute fakes.
type Reader interface {
	GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error)
}

// Builder produces snapshot documents. Reads only, no side effects.
type Builder struct {
	reader Reader
	logger logging.Logger
	now    func() time.Time
}

// NewBuilder constructs a Builder over the given record source.
func NewBuilder(reader Reader, logger logging.Logger) *Builder {
	return &Builder{
		reader: reader,
		logger: logger.With("component", "snapshot"),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build fetches every entity collection concurrently and assembles one
// document. Business collections are filtered by companyID when given; the
// company and user directories are always exported in full so restores can
// administer all tenants from the admin context. Any single read failing
// aborts the whole build; partial snapshots are never returned.
func (b *Builder) Build(ctx context.Context, actorID *int64, companyID *int64) (*models.SnapshotDocument, error) {
	var mu sync.Mutex
	data := make(map[models.EntityType][]models.Record, len(models.AllEntityTypes()))

	g, ctx := errgroup.WithContext(ctx)
	for _, et := range models.AllEntityTypes() {
		filter := companyID
		if !et.TenantScoped() {
			filter = nil
		}
		g.Go(func() error {
			recs, err := b.reader.GetAll(ctx, et, filter)
			if err != nil {
				return fmt.Errorf("reading %s: %w", et, err)
			}
			if recs == nil {
				recs = []models.Record{}
			}
			mu.Lock()
			data[et] = recs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := &models.SnapshotDocument{
		Version:    models.SnapshotVersion,
		ExportDate: b.now().UTC(),
		ExportBy:   actorID,
		Data:       data,
	}
	b.logger.Info(ctx, "snapshot built", "records", doc.TotalRecords())
	return doc, nil
}

// Summary reduces a snapshot to per-collection record counts for display.
// Pure function of the document, no I/O.
func Summary(doc *models.SnapshotDocument) map[models.EntityType]int {
	out := make(map[models.EntityType]int, len(doc.Data))
	for et, recs := range doc.Data {
		out[et] = len(recs)
	}
	return out
}
