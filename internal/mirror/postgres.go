package mirror

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
	"github.com/mkalvis/stockvault/internal/mirror/migrations"
	"github.com/mkalvis/stockvault/internal/models"
)

// PostgresRepository implements RemoteRepository over a dbx.DBTX
// (*sql.DB or *sql.Tx) using the same generic records table shape as the
// local store, with a jsonb body.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to the given handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// RunMigrations applies the mirror schema. Call once at startup while the
// remote is reachable; an offline start skips it and retries next session.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error) {
	query := `SELECT body FROM records WHERE entity_type = $1`
	args := []any{string(et)}
	if companyID != nil {
		query += ` AND company_id = $2`
		args = append(args, *companyID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *PostgresRepository) GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT body FROM records WHERE entity_type = $1 AND id = $2`, string(et), id)

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

func (r *PostgresRepository) Upsert(ctx context.Context, et models.EntityType, rec *models.Record) error {
	return upsertOne(ctx, r.db, et, rec)
}

// UpsertBatch writes several records in one transaction.
func (r *PostgresRepository) UpsertBatch(ctx context.Context, et models.EntityType, recs []*models.Record) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, rec := range recs {
			if err := upsertOne(ctx, tx, et, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertOne(ctx context.Context, db dbx.DBTX, et models.EntityType, rec *models.Record) error {
	// stamp a copy so the caller's record keeps its own timestamps
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

	query := `
		INSERT INTO records (entity_type, id, company_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (entity_type, id)
		DO UPDATE SET
			company_id = EXCLUDED.company_id,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at;
	`
	var companyID any
	if stored.CompanyID != nil {
		companyID = *stored.CompanyID
	}
	_, err = db.ExecContext(ctx, query, string(et), stored.ID, companyID, body, stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
