package models

import "time"

// BackupMetadata describes one stored snapshot blob. There is no separate
// metadata table: every field is recovered from the object key and the object
// store's own listing, so the file name is the only index.
type BackupMetadata struct {
	CompanyID  *int64    `json:"company_id,omitempty"`
	BackupDate string    `json:"backup_date"` // YYYY-MM-DD
	BackupTime string    `json:"backup_time"` // HH:MM
	CreatedAt  time.Time `json:"created_at"`
	FileName   string    `json:"file_name"` // full object key within the tenant bucket
	SizeBytes  int64     `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
}
