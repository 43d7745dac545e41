package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeTransport keeps backups in a map keyed by path.
type fakeTransport struct {
	backups  map[string]models.BackupMetadata
	listErr  error
	failPath string // Delete fails for this path
}

func (f *fakeTransport) List(_ context.Context, _ *int64, _ int) ([]models.BackupMetadata, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.BackupMetadata, 0, len(f.backups))
	for _, m := range f.backups {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeTransport) Delete(_ context.Context, _ *int64, path string) error {
	if path == f.failPath {
		return errors.New("delete rejected")
	}
	delete(f.backups, path)
	return nil
}

func newFakeTransport(ages map[string]time.Duration, now time.Time) *fakeTransport {
	backups := make(map[string]models.BackupMetadata, len(ages))
	for path, age := range ages {
		backups[path] = models.BackupMetadata{FileName: path, CreatedAt: now.Add(-age)}
	}
	return &fakeTransport{backups: backups}
}

func TestSweep_DeletesOnlyExpired(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := newFakeTransport(map[string]time.Duration{
		"old.json.gz":   4 * 24 * time.Hour,
		"fresh.json.gz": 0,
	}, now)

	id := int64(7)
	s := NewSweeper(tr, testLogger()).WithClock(func() time.Time { return now })

	deleted, err := s.Sweep(context.Background(), &id, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, oldExists := tr.backups["old.json.gz"]
	_, freshExists := tr.backups["fresh.json.gz"]
	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

func TestSweep_Idempotent(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := newFakeTransport(map[string]time.Duration{
		"a.json.gz": 5 * 24 * time.Hour,
		"b.json.gz": 6 * 24 * time.Hour,
	}, now)

	s := NewSweeper(tr, testLogger()).WithClock(func() time.Time { return now })

	deleted, err := s.Sweep(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	deleted, err = s.Sweep(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted, "second sweep with no new uploads deletes nothing")
}

func TestSweep_EmptySetIsSuccess(t *testing.T) {
	tr := &fakeTransport{backups: map[string]models.BackupMetadata{}}
	s := NewSweeper(tr, testLogger())

	deleted, err := s.Sweep(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestSweep_DefaultsAge(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := newFakeTransport(map[string]time.Duration{
		"old.json": 4 * 24 * time.Hour,
	}, now)
	s := NewSweeper(tr, testLogger()).WithClock(func() time.Time { return now })

	deleted, err := s.Sweep(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

// An object whose name does not follow the backup key scheme is listed with
// the store's own timestamp and is swept by age like any other.
func TestSweep_ForeignNamedObjectsSweptByAge(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := newFakeTransport(map[string]time.Duration{
		"manual-copy.json": 5 * 24 * time.Hour,
		"notes.txt":        time.Hour,
	}, now)

	s := NewSweeper(tr, testLogger()).WithClock(func() time.Time { return now })

	deleted, err := s.Sweep(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, oldExists := tr.backups["manual-copy.json"]
	_, freshExists := tr.backups["notes.txt"]
	assert.False(t, oldExists)
	assert.True(t, freshExists)
}

func TestSweep_ListFailureAborts(t *testing.T) {
	tr := &fakeTransport{listErr: errors.New("unreachable")}
	s := NewSweeper(tr, testLogger())

	deleted, err := s.Sweep(context.Background(), nil, 3)
	assert.Error(t, err)
	assert.Equal(t, 0, deleted)
}

func TestSweep_DeleteFailureSkipped(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	tr := newFakeTransport(map[string]time.Duration{
		"a.json": 4 * 24 * time.Hour,
		"b.json": 5 * 24 * time.Hour,
	}, now)
	tr.failPath = "a.json"

	s := NewSweeper(tr, testLogger()).WithClock(func() time.Time { return now })

	deleted, err := s.Sweep(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "only the successful delete is counted")
}
