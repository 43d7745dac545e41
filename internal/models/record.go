package models

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Record is the generic representation of one business object. Entity-specific
// fields live in Attrs and round-trip through JSON untouched; only the keys a
// record actually declares are present there, which is what allows imports to
// merge without nulling out omitted fields.
//
// Identity is (entity type, ID). A nil CompanyID marks an admin/global record.
type Record struct {
	ID        int64
	CompanyID *int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Attrs     map[string]any
}

// HasAttr reports whether the record explicitly declares the given field.
func (r *Record) HasAttr(key string) bool {
	_, ok := r.Attrs[key]
	return ok
}

// SetAttr sets one entity-specific field, allocating Attrs if needed.
func (r *Record) SetAttr(key string, value any) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]any)
	}
	r.Attrs[key] = value
}

// MarshalJSON flattens Attrs beside the fixed fields, producing the same
// shape the record was parsed from.
func (r Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Attrs)+4)
	for k, v := range r.Attrs {
		m[k] = v
	}
	m["id"] = r.ID
	if r.CompanyID != nil {
		m["company_id"] = *r.CompanyID
	}
	if !r.CreatedAt.IsZero() {
		m["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		m["updated_at"] = r.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return json.Marshal(m)
}

// UnmarshalJSON extracts the fixed fields and keeps everything else in Attrs.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("record decode: %w", err)
	}

	*r = Record{}

	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &r.ID); err != nil {
			return fmt.Errorf("record id: %w", err)
		}
		delete(raw, "id")
	}
	if v, ok := raw["company_id"]; ok {
		if err := json.Unmarshal(v, &r.CompanyID); err != nil {
			return fmt.Errorf("record company_id: %w", err)
		}
		delete(raw, "company_id")
	}
	for key, dst := range map[string]*time.Time{"created_at": &r.CreatedAt, "updated_at": &r.UpdatedAt} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			if ts, err := time.Parse(time.RFC3339, s); err == nil {
				*dst = ts
			}
		}
		delete(raw, key)
	}

	if len(raw) > 0 {
		r.Attrs = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return fmt.Errorf("record field %q: %w", k, err)
			}
			r.Attrs[k] = val
		}
	}
	return nil
}
