// Package localstore implements the local record store: generic
// get/put/delete-by-id over locally persisted records, keyed by entity type
// and numeric id. Records written while the remote mirror is unreachable are
// flagged pending and pushed on the next successful sync.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pressly/goose/v3"

	"github.com/mkalvis/stockvault/internal/common"
	"github.com/mkalvis/stockvault/internal/dbx"
	"github.com/mkalvis/stockvault/internal/localstore/migrations"
	"github.com/mkalvis/stockvault/internal/models"
)

// Store is a SQLite-backed record store. One generic records table holds
// every entity collection; the JSON body is authoritative, the id and
// company_id columns exist for indexing only.
type Store struct {
	db *sql.DB
}

// Pending pairs a locally-mutated record with its entity type so sync can
// push it to the right remote collection.
type Pending struct {
	EntityType models.EntityType
	Record     models.Record
}

// Open opens (or creates) the SQLite database at dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating local store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open database handle. Used by tests.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for transaction composition via dbx.WithTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// GetAll returns every record of the given entity type. When companyID is
// non-nil the result is filtered to that tenant's rows.
func (s *Store) GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error) {
	query := `SELECT body FROM records WHERE entity_type = ?`
	args := []any{string(et)}
	if companyID != nil {
		query += ` AND company_id = ?`
		args = append(args, *companyID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s records: %w", et, err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var rec models.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s record: %w", et, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetByID returns a single record or common.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE entity_type = ? AND id = ?`, string(et), id)

	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}

	rec := &models.Record{}
	if err := json.Unmarshal(body, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s record %d: %w", et, id, err)
	}
	return rec, nil
}

// Put upserts a record and flags it pending (not yet pushed to the mirror).
func (s *Store) Put(ctx context.Context, et models.EntityType, rec *models.Record) error {
	return s.put(ctx, s.db, et, rec, true)
}

// PutSynced upserts a record already confirmed by the remote mirror,
// clearing any pending flag.
func (s *Store) PutSynced(ctx context.Context, et models.EntityType, rec *models.Record) error {
	return s.put(ctx, s.db, et, rec, false)
}

func (s *Store) put(ctx context.Context, db dbx.DBTX, et models.EntityType, rec *models.Record, pending bool) error {
	// stamp a copy: callers pass records they are still holding (cache
	// reconciliation passes the slice it returns), so the original must
	// keep the timestamps it arrived with
	stored := *rec
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", et, err)
	}

	query := `INSERT INTO records (entity_type, id, company_id, body, created_at, updated_at, pending)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(entity_type, id) DO UPDATE SET
				company_id = excluded.company_id,
				body = excluded.body,
				updated_at = excluded.updated_at,
				pending = excluded.pending
	`
	var companyID any
	if stored.CompanyID != nil {
		companyID = *stored.CompanyID
	}
	p := 0
	if pending {
		p = 1
	}
	_, err = db.ExecContext(ctx, query,
		string(et), stored.ID, companyID, body,
		stored.CreatedAt.Format(time.RFC3339), stored.UpdatedAt.Format(time.RFC3339), p)
	if err != nil {
		return fmt.Errorf("failed to upsert %s record: %w", et, err)
	}
	return nil
}

// DeleteByID removes a record. It expects exactly one row to be affected.
func (s *Store) DeleteByID(ctx context.Context, et models.EntityType, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE entity_type = ? AND id = ?`, string(et), id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}

// GetAllPending returns every record flagged as awaiting a push to the
// remote mirror, across all entity types, in dependency order.
func (s *Store) GetAllPending(ctx context.Context) ([]Pending, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_type, body FROM records WHERE pending = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending records: %w", err)
	}
	defer rows.Close()

	byType := make(map[models.EntityType][]models.Record)
	for rows.Next() {
		var et string
		var body []byte
		if err := rows.Scan(&et, &body); err != nil {
			return nil, err
		}
		var rec models.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode pending record: %w", err)
		}
		byType[models.EntityType(et)] = append(byType[models.EntityType(et)], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Push in the same dependency order restores use, so parents land first.
	var result []Pending
	for _, et := range models.ImportOrder() {
		for _, rec := range byType[et] {
			result = append(result, Pending{EntityType: et, Record: rec})
		}
	}
	return result, nil
}

// MarkSynced clears the pending flag on one record.
func (s *Store) MarkSynced(ctx context.Context, et models.EntityType, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE records SET pending = 0 WHERE entity_type = ? AND id = ?`, string(et), id)
	if err != nil {
		return fmt.Errorf("failed to mark record synced: %w", err)
	}
	return nil
}

// CountPending returns the number of records awaiting a push.
func (s *Store) CountPending(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE pending = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return n, nil
}
