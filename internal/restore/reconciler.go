// Package restore rebuilds database state from a snapshot document. Imports
// are non-destructive: existing records are merged field by field and records
// absent from the snapshot are left alone, so replaying the same snapshot is
// a no-op.
package restore

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/mkalvis/stockvault/internal/common"
	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

// Store is the persistence surface an import writes through. A Mirror
// satisfies it, which routes restored records to the remote table when
// online and to the pending queue when not.
type Store interface {
	GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error)
	Upsert(ctx context.Context, et models.EntityType, rec *models.Record) error
}

// Downloader fetches a stored snapshot by path within a tenant partition.
type Downloader interface {
	Download(ctx context.Context, companyID *int64, path string) (*models.SnapshotDocument, error)
}

// ImportOptions control how an import treats existing data.
type ImportOptions struct {
	// Merge requests field-level merging into existing records. The engine
	// has always imported in merge mode regardless of this flag; passing
	// false only produces a warning. Kept for compatibility with stored
	// job definitions that still set it.
	Merge bool
}

// ImportResult summarises one completed import.
type ImportResult struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

// Reconciler applies snapshot documents to a store.
type Reconciler struct {
	store  Store
	logger logging.Logger
}

func NewReconciler(store Store, logger logging.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With("component", "restore"),
	}
}

// Import applies doc to the store, processing collections in dependency
// order. Records that fail individually are logged and skipped; the import
// continues. actorID, when set, is recorded on the result message only,
// the snapshot itself already carries its exporter.
func (r *Reconciler) Import(ctx context.Context, doc *models.SnapshotDocument, actorID *int64, opts ImportOptions) ImportResult {
	if err := doc.Validate(); err != nil {
		r.logger.Error(ctx, "import rejected", "error", err)
		return ImportResult{Message: fmt.Sprintf("invalid backup: %v", err)}
	}

	if !opts.Merge {
		r.logger.Warn(ctx, "merge=false requested, importing in merge mode anyway")
	}

	imported, skipped := 0, 0
	for _, et := range models.ImportOrder() {
		recs, ok := doc.Data[et]
		if !ok {
			continue
		}
		for i := range recs {
			if err := r.importRecord(ctx, et, &recs[i]); err != nil {
				r.logger.Error(ctx, "record import failed",
					"entity", et, "id", recs[i].ID, "error", err)
				skipped++
				continue
			}
			imported++
		}
	}

	msg := fmt.Sprintf("imported %d records", imported)
	if skipped > 0 {
		msg = fmt.Sprintf("imported %d records, skipped %d", imported, skipped)
	}
	r.logger.Info(ctx, "import finished",
		"imported", imported, "skipped", skipped, "actor", actorID)
	return ImportResult{Success: true, Imported: imported, Skipped: skipped, Message: msg}
}

// importRecord creates or merges a single record. For existing records only
// the fields the snapshot declares are overwritten, so columns added after
// the backup was taken keep their current values.
func (r *Reconciler) importRecord(ctx context.Context, et models.EntityType, incoming *models.Record) error {
	if et == models.EntityUsers {
		if err := hashUserPassword(incoming); err != nil {
			return err
		}
	}

	existing, err := r.store.GetByID(ctx, et, incoming.ID)
	switch {
	case err == nil:
		merged := mergeRecord(existing, incoming)
		return r.store.Upsert(ctx, et, merged)
	case errors.Is(err, common.ErrNotFound):
		rec := *incoming
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		rec.UpdatedAt = time.Now().UTC()
		return r.store.Upsert(ctx, et, &rec)
	default:
		return err
	}
}

// mergeRecord overlays the declared fields of incoming onto existing.
func mergeRecord(existing, incoming *models.Record) *models.Record {
	out := *existing
	out.Attrs = make(map[string]any, len(existing.Attrs)+len(incoming.Attrs))
	for k, v := range existing.Attrs {
		out.Attrs[k] = v
	}
	for k, v := range incoming.Attrs {
		out.Attrs[k] = v
	}
	if incoming.CompanyID != nil {
		out.CompanyID = incoming.CompanyID
	}
	if !incoming.CreatedAt.IsZero() {
		out.CreatedAt = incoming.CreatedAt
	}
	out.UpdatedAt = time.Now().UTC()
	return &out
}

// hashUserPassword replaces a plaintext password attribute with its bcrypt
// hash. Snapshots written by current versions already store hashes, which
// bcrypt happily re-hashes; older exports carried plaintext. A user record
// without a password attribute is left untouched so merging never blanks
// an existing credential.
func hashUserPassword(rec *models.Record) error {
	raw, ok := rec.Attrs["password"]
	if !ok {
		return nil
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		delete(rec.Attrs, "password")
		return nil
	}
	if _, err := bcrypt.Cost([]byte(s)); err == nil {
		return nil // already a bcrypt hash
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	rec.Attrs["password"] = string(hash)
	return nil
}

// ImportJSON decodes raw snapshot bytes and imports them.
func (r *Reconciler) ImportJSON(ctx context.Context, raw []byte, actorID *int64, opts ImportOptions) ImportResult {
	var doc models.SnapshotDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		r.logger.Error(ctx, "import rejected", "error", err)
		return ImportResult{Message: fmt.Sprintf("invalid backup: %v", err)}
	}
	return r.Import(ctx, &doc, actorID, opts)
}

// ImportFromCloud downloads a stored backup and imports it.
func (r *Reconciler) ImportFromCloud(ctx context.Context, dl Downloader, companyID *int64, path string, actorID *int64, opts ImportOptions) ImportResult {
	doc, err := dl.Download(ctx, companyID, path)
	if err != nil {
		r.logger.Error(ctx, "backup download failed", "path", path, "error", err)
		return ImportResult{Message: fmt.Sprintf("download failed: %v", err)}
	}
	return r.Import(ctx, doc, actorID, opts)
}
