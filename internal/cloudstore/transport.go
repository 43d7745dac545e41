package cloudstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mkalvis/stockvault/internal/codec"
	"github.com/mkalvis/stockvault/internal/common"
	"github.com/mkalvis/stockvault/internal/logging"
	"github.com/mkalvis/stockvault/internal/models"
)

// Transport moves snapshot blobs between the engine and the tenant bucket
// namespace. It does not block or retry: a transport failure is surfaced
// immediately and the scheduler retries on its next cycle.
type Transport struct {
	store  ObjectStore
	codec  codec.Codec
	logger logging.Logger
	now    func() time.Time
}

// UploadResult reports the outcome of one upload. Upload never fails with
// an error value; callers branch on Success and show Message verbatim.
type UploadResult struct {
	Success   bool
	Path      string
	Message   string
	SizeBytes int64
	Meta      models.BackupMetadata
}

// NewTransport builds a transport over the given object store and codec.
func NewTransport(store ObjectStore, c codec.Codec, logger logging.Logger) *Transport {
	return &Transport{
		store:  store,
		codec:  c,
		logger: logger.With("component", "cloudstore"),
		now:    time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (t *Transport) WithClock(now func() time.Time) *Transport {
	t.now = now
	return t
}

// ensureBucket verifies the tenant bucket. Privilege failures are logged and
// tolerated: the following operation proceeds optimistically.
func (t *Transport) ensureBucket(ctx context.Context, bucket string) error {
	err := t.store.EnsureBucket(ctx, bucket)
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrBucketPrivilege) {
		t.logger.Warn(ctx, "bucket privilege check failed, proceeding anyway", "bucket", bucket, "error", err.Error())
		return nil
	}
	return err
}

// Upload encodes and stores one snapshot under the tenant's bucket.
func (t *Transport) Upload(ctx context.Context, doc *models.SnapshotDocument, companyID *int64, timeOfDay string) UploadResult {
	bucket := BucketName(companyID)

	if err := t.ensureBucket(ctx, bucket); err != nil {
		return UploadResult{Success: false, Message: err.Error()}
	}

	data, contentType, err := t.codec.Encode(doc)
	if err != nil {
		return UploadResult{Success: false, Message: err.Error()}
	}

	now := t.now()
	key := ObjectKey(now, timeOfDay, t.codec.Ext())

	if err := t.store.Put(ctx, bucket, key, data, contentType); err != nil {
		return UploadResult{Success: false, Message: err.Error()}
	}

	meta, _ := ParseObjectKey(key, companyID, now, int64(len(data)))
	t.logger.Info(ctx, "snapshot uploaded", "bucket", bucket, "key", key, "size", len(data))

	return UploadResult{
		Success:   true,
		Path:      key,
		Message:   fmt.Sprintf("backup uploaded to %s/%s", bucket, key),
		SizeBytes: int64(len(data)),
		Meta:      meta,
	}
}

// List returns backup metadata for the tenant, newest first. Objects whose
// names do not match the naming pattern are still returned with best-effort
// metadata. A limit of 0 means no limit.
func (t *Transport) List(ctx context.Context, companyID *int64, limit int) ([]models.BackupMetadata, error) {
	bucket := BucketName(companyID)

	if err := t.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	objects, err := t.store.List(ctx, bucket, "")
	if err != nil {
		return nil, err
	}

	metas := make([]models.BackupMetadata, 0, len(objects))
	for _, obj := range objects {
		meta, ok := ParseObjectKey(obj.Key, companyID, obj.CreatedAt, obj.Size)
		if !ok {
			t.logger.Warn(ctx, "object name does not match backup pattern", "bucket", bucket, "key", obj.Key)
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})

	if limit > 0 && len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

// Download fetches one blob and decodes it back into a snapshot document.
// Typed failures: common.ErrNotFound, common.ErrDecompressionUnavailable,
// common.ErrTransportUnavailable.
func (t *Transport) Download(ctx context.Context, companyID *int64, path string) (*models.SnapshotDocument, error) {
	bucket := BucketName(companyID)

	if err := t.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	data, err := t.store.Get(ctx, bucket, path)
	if err != nil {
		return nil, err
	}

	doc, err := t.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes one blob from the tenant's bucket.
func (t *Transport) Delete(ctx context.Context, companyID *int64, path string) error {
	bucket := BucketName(companyID)

	if err := t.ensureBucket(ctx, bucket); err != nil {
		return err
	}
	return t.store.Remove(ctx, bucket, []string{path})
}
