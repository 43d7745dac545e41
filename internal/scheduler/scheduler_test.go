package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalvis/stockvault/internal/cloudstore"
	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeTimer struct {
	deadline time.Time
	fn       func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	was := t.stopped
	t.stopped = true
	return !was
}

// fakeClock runs timers synchronously when advanced past their deadline.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.deadline.After(c.now) {
			due = append(due, t)
		} else if !t.stopped {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeBuilder struct {
	mu      sync.Mutex
	calls   int
	err     error
	lastID  *int64
	onBuild func()
}

func (b *fakeBuilder) Build(_ context.Context, _ *int64, companyID *int64) (*models.SnapshotDocument, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.lastID = companyID
	if b.onBuild != nil {
		b.onBuild()
	}
	if b.err != nil {
		return nil, b.err
	}
	return &models.SnapshotDocument{
		Version:    models.SnapshotVersion,
		ExportDate: time.Now(),
		Data:       map[models.EntityType][]models.Record{},
	}, nil
}

type fakeUploader struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (u *fakeUploader) Upload(_ context.Context, _ *models.SnapshotDocument, _ *int64, timeOfDay string) cloudstore.UploadResult {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.fail {
		return cloudstore.UploadResult{Success: false, Message: "upload rejected"}
	}
	return cloudstore.UploadResult{Success: true, Path: "p/" + timeOfDay}
}

type fakeSweeper struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeSweeper) Sweep(_ context.Context, _ *int64, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 0, nil
}

func newTestScheduler(clock Clock, b SnapshotBuilder, u Uploader, sw RetentionSweeper) *Scheduler {
	return New(clock, b, u, sw, []string{"09:00", "21:00"}, 3, testLogger())
}

func TestUntilNext(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		tod  string
		want time.Duration
	}{
		{
			name: "later today",
			now:  time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
			tod:  "09:00",
			want: time.Hour,
		},
		{
			name: "already passed, tomorrow",
			now:  time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC),
			tod:  "09:00",
			want: 22*time.Hour + 30*time.Minute,
		},
		{
			name: "exactly now, tomorrow",
			now:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			tod:  "09:00",
			want: 24 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := untilNext(tt.now, tt.tod)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := untilNext(time.Now(), "late")
	assert.Error(t, err)
}

func TestAddTenant_ArmsAllTimes(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	s := newTestScheduler(clock, &fakeBuilder{}, &fakeUploader{}, &fakeSweeper{})
	defer s.Stop()

	id := int64(7)
	require.NoError(t, s.AddTenant(&id))
	require.NoError(t, s.AddTenant(nil))

	assert.Equal(t, 4, s.SlotCount())

	// re-adding must not double-arm
	require.NoError(t, s.AddTenant(&id))
	assert.Equal(t, 4, s.SlotCount())
}

func TestFire_RunsChainAndRearms(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	b := &fakeBuilder{}
	u := &fakeUploader{}
	sw := &fakeSweeper{}
	s := newTestScheduler(clock, b, u, sw)
	defer s.Stop()

	id := int64(7)
	require.NoError(t, s.AddTenant(&id))

	clock.Advance(time.Hour) // 09:00 fires
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, u.calls)
	assert.Equal(t, 1, sw.calls)
	require.NotNil(t, b.lastID)
	assert.Equal(t, id, *b.lastID)
	assert.Equal(t, 2, s.SlotCount(), "slot re-armed after firing")

	clock.Advance(24 * time.Hour) // both slots fire again
	assert.Equal(t, 3, b.calls)
}

// A failing upload must not leave the slot disarmed.
func TestFire_SelfHealsOnUploadFailure(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	b := &fakeBuilder{}
	u := &fakeUploader{fail: true}
	sw := &fakeSweeper{}
	s := newTestScheduler(clock, b, u, sw)
	defer s.Stop()

	id := int64(7)
	require.NoError(t, s.AddTenant(&id))

	clock.Advance(time.Hour)
	assert.Equal(t, 1, u.calls)
	assert.Equal(t, 0, sw.calls, "sweep only runs after a successful upload")
	assert.Equal(t, 2, s.SlotCount(), "slot must be re-armed despite the failure")

	clock.Advance(24 * time.Hour)
	assert.Equal(t, 2, u.calls, "retried on the next cycle")
}

func TestFire_SelfHealsOnBuildFailure(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	b := &fakeBuilder{err: errors.New("read failed")}
	s := newTestScheduler(clock, b, &fakeUploader{}, &fakeSweeper{})
	defer s.Stop()

	require.NoError(t, s.AddTenant(nil))

	clock.Advance(time.Hour)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 2, s.SlotCount())
}

// Removing and re-adding a tenant while its slot is mid-fire must not leave
// two live timers for the same (tenant, time) pair.
func TestFire_TenantCycledMidFireKeepsOneTimer(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	b := &fakeBuilder{}
	u := &fakeUploader{}
	s := New(clock, b, u, &fakeSweeper{}, []string{"09:00"}, 3, testLogger())
	defer s.Stop()

	id := int64(7)
	b.onBuild = func() {
		s.RemoveTenant(&id)
		require.NoError(t, s.AddTenant(&id))
	}
	require.NoError(t, s.AddTenant(&id))

	clock.Advance(time.Hour) // 09:00 fires, tenant cycled mid-chain
	assert.Equal(t, 1, u.calls)
	assert.Equal(t, 1, s.SlotCount())
	assert.Equal(t, 1, clock.pendingCount(), "one live timer per slot")

	clock.Advance(24 * time.Hour)
	assert.Equal(t, 2, u.calls, "no duplicate fire on the next cycle")
}

func TestRemoveTenant_LeavesOthersArmed(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	s := newTestScheduler(clock, &fakeBuilder{}, &fakeUploader{}, &fakeSweeper{})
	defer s.Stop()

	a, b := int64(1), int64(2)
	require.NoError(t, s.AddTenant(&a))
	require.NoError(t, s.AddTenant(&b))
	require.Equal(t, 4, s.SlotCount())

	s.RemoveTenant(&a)
	assert.Equal(t, 2, s.SlotCount())
}

func TestStop_Idempotent(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	b := &fakeBuilder{}
	s := newTestScheduler(clock, b, &fakeUploader{}, &fakeSweeper{})

	id := int64(7)
	require.NoError(t, s.AddTenant(&id))

	s.Stop()
	s.Stop()
	assert.Equal(t, 0, s.SlotCount())
	assert.Equal(t, 0, clock.pendingCount())

	clock.Advance(48 * time.Hour)
	assert.Equal(t, 0, b.calls, "no fires after stop")

	assert.Error(t, s.AddTenant(&id), "stopped scheduler rejects new tenants")
}
