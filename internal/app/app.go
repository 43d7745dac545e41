// Package app wires the backup engine together: local store, remote mirror,
// object storage transport, scheduler and restore reconciler. It owns startup,
// graceful shutdown and the operations the daemon and the CLI expose.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mkalvis/stockvault/internal/cloudstore"
	"github.com/mkalvis/stockvault/internal/codec"
	"github.com/mkalvis/stockvault/internal/config"
	"github.com/mkalvis/stockvault/internal/localstore"
	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/mirror"
	"github.com/mkalvis/stockvault/internal/models"
	"github.com/mkalvis/stockvault/internal/restore"
	"github.com/mkalvis/stockvault/internal/retention"
	"github.com/mkalvis/stockvault/internal/scheduler"
	"github.com/mkalvis/stockvault/internal/snapshot"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	local      *localstore.Store
	remoteDB   *sql.DB
	mirror     *mirror.Mirror
	transport  *cloudstore.Transport
	builder    *snapshot.Builder
	sweeper    *retention.Sweeper
	scheduler  *scheduler.Scheduler
	reconciler *restore.Reconciler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	local, err := localstore.Open(ctx, cfg.LocalDSN)
	if err != nil {
		return nil, fmt.Errorf("local store init error: %w", err)
	}

	remoteDB, err := sql.Open("pgx", cfg.RemoteDSN)
	if err != nil {
		return nil, fmt.Errorf("remote db init error: %w", err)
	}

	repo := mirror.NewPostgresRepository(remoteDB)
	m := mirror.New(local, repo, mirror.NewSyncStatus(), cfg.CallTimeout, logger)

	// migrations are best effort at startup; the engine works offline and
	// retries them on the first successful reconnect
	migrateRemote(ctx, remoteDB, cfg.CallTimeout, logger)

	s3store, err := cloudstore.NewS3Store(ctx, cloudstore.S3Config{
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	transport := cloudstore.NewTransport(s3store, codec.Detect(cfg.DisableCompression), logger)
	builder := snapshot.NewBuilder(m, logger)
	sweeper := retention.NewSweeper(transport, logger)
	sched := scheduler.New(scheduler.NewRealClock(), builder, transport, sweeper,
		cfg.BackupTimes, cfg.RetentionDays, logger)
	reconciler := restore.NewReconciler(m, logger)

	return &App{
		config:     cfg,
		logger:     logger,
		local:      local,
		remoteDB:   remoteDB,
		mirror:     m,
		transport:  transport,
		builder:    builder,
		sweeper:    sweeper,
		scheduler:  sched,
		reconciler: reconciler,
	}, nil
}

func migrateRemote(ctx context.Context, db *sql.DB, timeout time.Duration, logger logging.Logger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Warn(ctx, "remote database unreachable, skipping migrations", "error", err)
		return
	}
	if err := mirror.RunMigrations(ctx, db); err != nil {
		logger.Warn(ctx, "remote migrations failed", "error", err)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the connectivity watcher and arms backup slots for the admin
// partition and every known company, then blocks until the context is
// cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	go app.mirror.StartWatcher(ctx, app.config.OnlineCheckInterval)

	if err := app.armTenants(ctx); err != nil {
		app.logger.Error(ctx, "arming backup slots failed", "error", err)
	}

	<-ctx.Done()

	app.logger.Info(ctx, "Shutting down...")
	app.scheduler.Stop()
	app.Close()
}

func (app *App) armTenants(ctx context.Context) error {
	if err := app.scheduler.AddTenant(nil); err != nil {
		return err
	}

	companies, err := app.mirror.GetAll(ctx, models.EntityCompanies, nil)
	if err != nil {
		return fmt.Errorf("listing companies: %w", err)
	}
	for _, c := range companies {
		id := c.ID
		if err := app.scheduler.AddTenant(&id); err != nil {
			return err
		}
	}
	app.logger.Info(ctx, "backup slots armed",
		"tenants", len(companies)+1, "slots", app.scheduler.SlotCount())
	return nil
}

// Close releases database handles. Safe to call more than once.
func (app *App) Close() {
	if app.local != nil {
		if err := app.local.Close(); err != nil {
			app.logger.Warn(context.Background(), "closing local store", "error", err)
		}
	}
	if app.remoteDB != nil {
		if err := app.remoteDB.Close(); err != nil {
			app.logger.Warn(context.Background(), "closing remote db", "error", err)
		}
	}
}

// Backup builds a snapshot of one partition and uploads it immediately,
// outside the scheduled slots.
func (app *App) Backup(ctx context.Context, companyID, actorID *int64) (cloudstore.UploadResult, error) {
	doc, err := app.builder.Build(ctx, actorID, companyID)
	if err != nil {
		return cloudstore.UploadResult{}, fmt.Errorf("building snapshot: %w", err)
	}
	return app.transport.Upload(ctx, doc, companyID, time.Now().Format("15:04")), nil
}

// Restore downloads a stored backup and imports it through the mirror.
func (app *App) Restore(ctx context.Context, companyID *int64, path string, actorID *int64, merge bool) restore.ImportResult {
	return app.reconciler.ImportFromCloud(ctx, app.transport, companyID, path, actorID,
		restore.ImportOptions{Merge: merge})
}

// RestoreFile imports a snapshot from a local export file.
func (app *App) RestoreFile(ctx context.Context, path string, actorID *int64, merge bool) (restore.ImportResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return restore.ImportResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return app.reconciler.ImportJSON(ctx, raw, actorID, restore.ImportOptions{Merge: merge}), nil
}

// List returns stored backups for one partition, newest first.
func (app *App) List(ctx context.Context, companyID *int64, limit int) ([]models.BackupMetadata, error) {
	return app.transport.List(ctx, companyID, limit)
}

// Sweep removes backups older than the configured retention window.
func (app *App) Sweep(ctx context.Context, companyID *int64) (int, error) {
	return app.sweeper.Sweep(ctx, companyID, app.config.RetentionDays)
}

// Export writes a snapshot of one partition to a local file and returns its
// path.
func (app *App) Export(ctx context.Context, companyID, actorID *int64) (string, error) {
	doc, err := app.builder.Build(ctx, actorID, companyID)
	if err != nil {
		return "", fmt.Errorf("building snapshot: %w", err)
	}
	return snapshot.WriteExportFile(doc, app.config.ExportDir, app.config.ProductName)
}

// Status reports current sync state.
func (app *App) Status() mirror.StatusSnapshot {
	return app.mirror.Status().Snapshot()
}

// PushPending flushes queued local writes to the mirror.
func (app *App) PushPending(ctx context.Context) error {
	return app.mirror.PushPending(ctx)
}
