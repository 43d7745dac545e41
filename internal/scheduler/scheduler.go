// Package scheduler fires snapshot creation at fixed times of day per
// tenant. Each (tenant, time-of-day) pair owns exactly one pending timer;
// a fire runs its build → upload → sweep chain to completion and re-arms
// for the same time 24h later no matter which step failed, so the loop is
// self-healing by construction. Delays are recomputed from wall clock on
// every arm, which also makes the schedule survive process restarts.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mkalvis/stockvault/internal/cloudstore"
	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

// SnapshotBuilder produces a full snapshot for one tenant.
type SnapshotBuilder interface {
	Build(ctx context.Context, actorID *int64, companyID *int64) (*models.SnapshotDocument, error)
}

// Uploader stores a snapshot in the tenant's bucket.
type Uploader interface {
	Upload(ctx context.Context, doc *models.SnapshotDocument, companyID *int64, timeOfDay string) cloudstore.UploadResult
}

// RetentionSweeper removes expired snapshots after a successful upload.
type RetentionSweeper interface {
	Sweep(ctx context.Context, companyID *int64, maxAgeDays int) (int, error)
}

type slotKey struct {
	tenant    string // "admin" or the company id
	timeOfDay string // "HH:MM"
}

type slot struct {
	companyID *int64
	timer     Timer
}

// Scheduler owns its timer map and lifecycle state; construct one per
// process and pass it by reference. Multiple independent instances are safe,
// which is what the tests rely on.
type Scheduler struct {
	mu      sync.Mutex
	slots   map[slotKey]*slot
	stopped bool

	clock         Clock
	builder       SnapshotBuilder
	uploader      Uploader
	sweeper       RetentionSweeper
	times         []string
	retentionDays int
	logger        logging.Logger
}

// New builds a scheduler firing at the given times of day ("HH:MM", 24h).
func New(clock Clock, builder SnapshotBuilder, uploader Uploader, sweeper RetentionSweeper,
	times []string, retentionDays int, logger logging.Logger) *Scheduler {
	return &Scheduler{
		slots:         make(map[slotKey]*slot),
		clock:         clock,
		builder:       builder,
		uploader:      uploader,
		sweeper:       sweeper,
		times:         times,
		retentionDays: retentionDays,
		logger:        logger.With("component", "scheduler"),
	}
}

func tenantKey(companyID *int64) string {
	if companyID == nil {
		return "admin"
	}
	return strconv.FormatInt(*companyID, 10)
}

// untilNext computes the delay from now until the next occurrence of the
// given time of day: today if still ahead, otherwise the same time tomorrow.
func untilNext(now time.Time, timeOfDay string) (time.Duration, error) {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", timeOfDay, err)
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now), nil
}

// AddTenant arms every configured time of day for one tenant. Arming an
// already-armed tenant is a no-op for the slots that exist.
func (s *Scheduler) AddTenant(companyID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("scheduler is stopped")
	}

	for _, tod := range s.times {
		key := slotKey{tenant: tenantKey(companyID), timeOfDay: tod}
		if _, ok := s.slots[key]; ok {
			continue
		}
		if err := s.armLocked(key, companyID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTenant disarms every slot of one tenant without disturbing others.
func (s *Scheduler) RemoveTenant(companyID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant := tenantKey(companyID)
	for key, sl := range s.slots {
		if key.tenant == tenant {
			sl.timer.Stop()
			delete(s.slots, key)
		}
	}
}

// Stop cancels every outstanding timer. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for key, sl := range s.slots {
		sl.timer.Stop()
		delete(s.slots, key)
	}
}

// SlotCount returns the number of armed slots.
func (s *Scheduler) SlotCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *Scheduler) armLocked(key slotKey, companyID *int64) error {
	delay, err := untilNext(s.clock.Now(), key.timeOfDay)
	if err != nil {
		return err
	}
	// a fire's deferred re-arm can race a RemoveTenant+AddTenant cycle;
	// each (tenant, time) pair owns exactly one live timer, so any slot
	// being replaced must have its timer stopped first
	if existing, ok := s.slots[key]; ok {
		existing.timer.Stop()
	}
	sl := &slot{companyID: companyID}
	sl.timer = s.clock.AfterFunc(delay, func() { s.fire(key, companyID) })
	s.slots[key] = sl
	s.logger.Info(context.Background(), "backup slot armed",
		"tenant", key.tenant, "time", key.timeOfDay, "delay", delay.String())
	return nil
}

// fire runs one build → upload → sweep chain. Re-arming happens in a defer:
// no failure in the chain can leave the slot disarmed.
func (s *Scheduler) fire(key slotKey, companyID *int64) {
	ctx := context.Background()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped {
			return
		}
		if _, ok := s.slots[key]; !ok {
			// tenant removed while firing
			return
		}
		if err := s.armLocked(key, companyID); err != nil {
			s.logger.Error(ctx, "failed to re-arm backup slot", "tenant", key.tenant, "time", key.timeOfDay, "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "scheduled backup firing", "tenant", key.tenant, "time", key.timeOfDay)

	doc, err := s.builder.Build(ctx, nil, companyID)
	if err != nil {
		s.logger.Error(ctx, "scheduled backup build failed", "tenant", key.tenant, "error", err.Error())
		return
	}

	res := s.uploader.Upload(ctx, doc, companyID, key.timeOfDay)
	if !res.Success {
		s.logger.Error(ctx, "scheduled backup upload failed", "tenant", key.tenant, "message", res.Message)
		return
	}

	deleted, err := s.sweeper.Sweep(ctx, companyID, s.retentionDays)
	if err != nil {
		s.logger.Error(ctx, "retention sweep failed", "tenant", key.tenant, "error", err.Error())
		return
	}

	s.logger.Info(ctx, "scheduled backup completed",
		"tenant", key.tenant, "path", res.Path, "swept", deleted)
}
