// Package mirror keeps the local record store and the remote relational
// store in step: reads prefer the remote copy and reconcile it into the
// local cache, writes land locally first and are pushed when connectivity
// allows. Strategy selection is an explicit connectivity probe, not a
// try/catch fallback, so tests can force either branch deterministically.
package mirror

import (
	"context"

	"github.com/mkalvis/stockvault/internal/models"
)

// RemoteRepository is the remote-store surface the mirror depends on.
// The production implementation is PostgresRepository.
type RemoteRepository interface {
	// Ping verifies connectivity. A nil error selects the remote-first
	// strategy for the following operation.
	Ping(ctx context.Context) error

	// GetAll returns every remote record of the entity type, filtered by
	// company when companyID is non-nil.
	GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error)

	// GetByID returns one record or common.ErrNotFound.
	GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error)

	// Upsert creates or replaces one record by (entity type, id).
	Upsert(ctx context.Context, et models.EntityType, rec *models.Record) error

	// UpsertBatch creates or replaces several records of one entity type
	// in a single transaction: either the whole batch lands or none of it.
	UpsertBatch(ctx context.Context, et models.EntityType, recs []*models.Record) error
}
