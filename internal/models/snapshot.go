package models

import (
	"fmt"
	"time"

	"github.com/mkalvis/stockvault/internal/common"
)

// SnapshotVersion is the format version stamped on every export.
const SnapshotVersion = "1.0.0"

// SnapshotDocument is one complete point-in-time export. Every list in Data
// is a full set for its entity type at export time; the document is never
// incremental and never mutated after creation.
type SnapshotDocument struct {
	Version    string                  `json:"version"`
	ExportDate time.Time               `json:"export_date"`
	ExportBy   *int64                  `json:"export_by,omitempty"`
	Data       map[EntityType][]Record `json:"data"`
}

// Validate performs the structural checks an import requires. It does not
// inspect individual records.
func (d *SnapshotDocument) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: document is nil", common.ErrInvalidSnapshot)
	}
	if d.Version == "" {
		return fmt.Errorf("%w: missing version", common.ErrInvalidSnapshot)
	}
	if d.Data == nil {
		return fmt.Errorf("%w: missing data", common.ErrInvalidSnapshot)
	}
	return nil
}

// TotalRecords counts every record across all collections.
func (d *SnapshotDocument) TotalRecords() int {
	n := 0
	for _, recs := range d.Data {
		n += len(recs)
	}
	return n
}
