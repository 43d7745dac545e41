package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mkalvis/stockvault/internal/common"
	"github.com/mkalvis/stockvault/internal/localstore"
	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

// Strategy is one resolved read/write path: remote-first when connectivity
// was confirmed, local-only otherwise.
type Strategy interface {
	GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error)
	GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error)
	Upsert(ctx context.Context, et models.EntityType, rec *models.Record) error
}

// Mirror coordinates the local store and the remote repository.
type Mirror struct {
	local   *localstore.Store
	remote  RemoteRepository
	status  *SyncStatus
	logger  logging.Logger
	timeout time.Duration
}

// New constructs a mirror. timeout is the per-call deadline applied to every
// remote operation, including the connectivity probe.
func New(local *localstore.Store, remote RemoteRepository, status *SyncStatus,
	timeout time.Duration, logger logging.Logger) *Mirror {
	return &Mirror{
		local:   local,
		remote:  remote,
		status:  status,
		logger:  logger.With("component", "mirror"),
		timeout: timeout,
	}
}

// Status exposes the shared sync status.
func (m *Mirror) Status() *SyncStatus {
	return m.status
}

// Local exposes the local store for callers that explicitly want the cache.
func (m *Mirror) Local() *localstore.Store {
	return m.local
}

// Probe checks remote connectivity under the call deadline and records the
// result in the sync status. The returned flag selects the strategy for the
// operation that follows.
func (m *Mirror) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	online := m.remote.Ping(ctx) == nil
	m.status.setOnline(online)
	return online
}

// strategy resolves the read/write path for one operation.
func (m *Mirror) strategy(ctx context.Context) Strategy {
	if m.Probe(ctx) {
		return &remoteFirst{m: m}
	}
	return &localOnly{local: m.local}
}

// GetAll reads one collection through the resolved strategy. A remote-first
// read that fails mid-flight degrades to the local cache.
func (m *Mirror) GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error) {
	recs, err := m.strategy(ctx).GetAll(ctx, et, companyID)
	if err != nil {
		m.logger.Warn(ctx, "remote read failed, serving local cache", "entity", et, "error", err.Error())
		return m.local.GetAll(ctx, et, companyID)
	}
	return recs, nil
}

// GetByID looks one record up through the resolved strategy.
func (m *Mirror) GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error) {
	rec, err := m.strategy(ctx).GetByID(ctx, et, id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		m.logger.Warn(ctx, "remote lookup failed, serving local cache", "entity", et, "id", id, "error", err.Error())
		return m.local.GetByID(ctx, et, id)
	}
	return rec, err
}

// Upsert writes through the resolved strategy. The record always lands in
// the local store; whether it is flagged pending depends on the push outcome.
func (m *Mirror) Upsert(ctx context.Context, et models.EntityType, rec *models.Record) error {
	if err := m.strategy(ctx).Upsert(ctx, et, rec); err != nil {
		return err
	}
	m.refreshPendingCount(ctx)
	return nil
}

// PushPending drains the locally-mutated backlog to the remote store as
// one transactional batch per entity type, in dependency order, retrying
// transient failures with fibonacci backoff. A batch that still fails stays
// pending in full for the next push without blocking later collections.
// Status is updated after every attempt.
func (m *Mirror) PushPending(ctx context.Context) error {
	if !m.Probe(ctx) {
		m.logger.Info(ctx, "push skipped, remote offline")
		return common.ErrTransportUnavailable
	}

	m.status.setSyncing(true)
	defer m.status.setSyncing(false)

	pending, err := m.local.GetAllPending(ctx)
	if err != nil {
		m.status.recordAttempt(SyncFailed, time.Now())
		return err
	}

	failed, pushed := 0, 0
	for _, batch := range batchByEntity(pending) {
		backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			if err := m.remote.UpsertBatch(callCtx, batch.entityType, batch.records); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			failed += len(batch.records)
			m.logger.Error(ctx, "failed to push batch",
				"entity", batch.entityType, "count", len(batch.records), "error", err.Error())
			continue
		}
		pushed += len(batch.records)
		for _, rec := range batch.records {
			if err := m.local.MarkSynced(ctx, batch.entityType, rec.ID); err != nil {
				m.logger.Error(ctx, "failed to mark record synced", "entity", batch.entityType, "id", rec.ID, "error", err.Error())
			}
		}
	}

	m.refreshPendingCount(ctx)
	if failed > 0 {
		m.status.recordAttempt(SyncFailed, time.Now())
		m.logger.Warn(ctx, "push finished with failures", "failed", failed, "pushed", pushed)
		return nil
	}
	m.status.recordAttempt(SyncSuccess, time.Now())
	if pushed > 0 {
		m.logger.Info(ctx, "pending records pushed", "count", pushed)
	}
	return nil
}

type pendingBatch struct {
	entityType models.EntityType
	records    []*models.Record
}

// batchByEntity folds the ordered pending list into per-entity batches,
// preserving the dependency order GetAllPending returns.
func batchByEntity(pending []localstore.Pending) []pendingBatch {
	var batches []pendingBatch
	for i := range pending {
		p := &pending[i]
		if len(batches) == 0 || batches[len(batches)-1].entityType != p.EntityType {
			batches = append(batches, pendingBatch{entityType: p.EntityType})
		}
		last := &batches[len(batches)-1]
		last.records = append(last.records, &p.Record)
	}
	return batches
}

// StartWatcher probes connectivity on an interval until ctx is cancelled,
// pushing the pending backlog whenever the mirror transitions back online.
func (m *Mirror) StartWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasOnline := m.Probe(ctx)

	for {
		select {
		case <-ticker.C:
			online := m.Probe(ctx)
			if online && !wasOnline {
				m.logger.Info(ctx, "remote back online, pushing backlog")
				if err := m.PushPending(ctx); err != nil {
					m.logger.Error(ctx, "backlog push failed", "error", err.Error())
				}
			}
			wasOnline = online
		case <-ctx.Done():
			return
		}
	}
}

func (m *Mirror) refreshPendingCount(ctx context.Context) {
	if n, err := m.local.CountPending(ctx); err == nil {
		m.status.setPending(n)
	}
}

// remoteFirst reads from the remote store, reconciling results into the
// local cache; writes land locally then push immediately.
type remoteFirst struct {
	m *Mirror
}

func (s *remoteFirst) GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.m.timeout)
	defer cancel()

	recs, err := s.m.remote.GetAll(callCtx, et, companyID)
	if err != nil {
		return nil, err
	}

	// reconcile the cache with the authoritative remote copy
	for i := range recs {
		if err := s.m.local.PutSynced(ctx, et, &recs[i]); err != nil {
			s.m.logger.Warn(ctx, "failed to cache record", "entity", et, "id", recs[i].ID, "error", err.Error())
		}
	}
	return recs, nil
}

func (s *remoteFirst) GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.m.timeout)
	defer cancel()
	return s.m.remote.GetByID(callCtx, et, id)
}

func (s *remoteFirst) Upsert(ctx context.Context, et models.EntityType, rec *models.Record) error {
	callCtx, cancel := context.WithTimeout(ctx, s.m.timeout)
	defer cancel()

	if err := s.m.remote.Upsert(callCtx, et, rec); err != nil {
		// remote write rejected mid-flight: keep the record pending locally
		s.m.logger.Warn(ctx, "remote write failed, queued locally", "entity", et, "id", rec.ID, "error", err.Error())
		return s.m.local.Put(ctx, et, rec)
	}
	return s.m.local.PutSynced(ctx, et, rec)
}

// localOnly serves reads from the cache and queues writes as pending.
type localOnly struct {
	local *localstore.Store
}

func (s *localOnly) GetAll(ctx context.Context, et models.EntityType, companyID *int64) ([]models.Record, error) {
	return s.local.GetAll(ctx, et, companyID)
}

func (s *localOnly) GetByID(ctx context.Context, et models.EntityType, id int64) (*models.Record, error) {
	return s.local.GetByID(ctx, et, id)
}

func (s *localOnly) Upsert(ctx context.Context, et models.EntityType, rec *models.Record) error {
	return s.local.Put(ctx, et, rec)
}
