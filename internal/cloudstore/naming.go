package cloudstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mkalvis/stockvault/internal/models"
)

const (
	adminBucket        = "backups-admin"
	tenantBucketPrefix = "backups-company-"

	// defaultTimeOfDay is assumed for objects whose names do not follow the
	// backup naming pattern.
	defaultTimeOfDay = "09:00"
)

// BucketName derives the tenant partition name. It is computed here and
// never accepted from callers, so no cross-tenant access is possible through
// the transport's public surface.
func BucketName(companyID *int64) string {
	if companyID == nil {
		return adminBucket
	}
	return fmt.Sprintf("%s%d", tenantBucketPrefix, *companyID)
}

// ObjectKey builds the blob path for a snapshot uploaded at time now for the
// given time of day: {date}/backup_{date}_{time-with-dashes}_{unixMillis}{ext}.
// The millisecond timestamp guarantees uniqueness; existing paths are never
// overwritten.
func ObjectKey(now time.Time, timeOfDay string, ext string) string {
	date := now.UTC().Format("2006-01-02")
	tod := strings.ReplaceAll(timeOfDay, ":", "-")
	return fmt.Sprintf("%s/backup_%s_%s_%d%s", date, date, tod, now.UnixMilli(), ext)
}

var backupNameRe = regexp.MustCompile(`^backup_(\d{4}-\d{2}-\d{2})_(\d{2}-\d{2})_(\d+)(\.json(?:\.gz)?)$`)

// ParseObjectKey recovers backup metadata from an object key. Keys matching
// the naming pattern round-trip exactly; anything else yields best-effort
// metadata from the object store's own timestamps (ok=false) so unparseable
// names never silently disappear from listings.
func ParseObjectKey(key string, companyID *int64, storeCreatedAt time.Time, size int64) (models.BackupMetadata, bool) {
	base := key
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		base = key[i+1:]
	}

	m := backupNameRe.FindStringSubmatch(base)
	if m == nil {
		return models.BackupMetadata{
			CompanyID:  companyID,
			BackupDate: storeCreatedAt.UTC().Format("2006-01-02"),
			BackupTime: defaultTimeOfDay,
			CreatedAt:  storeCreatedAt,
			FileName:   key,
			SizeBytes:  size,
			Compressed: strings.HasSuffix(base, ".gz"),
		}, false
	}

	ms, err := strconv.ParseInt(m[3], 10, 64)
	createdAt := storeCreatedAt
	if err == nil {
		createdAt = time.UnixMilli(ms).UTC()
	}

	return models.BackupMetadata{
		CompanyID:  companyID,
		BackupDate: m[1],
		BackupTime: strings.Replace(m[2], "-", ":", 1),
		CreatedAt:  createdAt,
		FileName:   key,
		SizeBytes:  size,
		Compressed: m[4] == ".json.gz",
	}, true
}
