package models

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUnmarshal_SplitsFixedAndAttrs(t *testing.T) {
	raw := []byte(`{"id":7,"company_id":3,"created_at":"2024-01-01T09:00:00Z","name":"Widget","price":19.5,"tags":["a","b"]}`)

	var r Record
	require.NoError(t, json.Unmarshal(raw, &r))

	assert.Equal(t, int64(7), r.ID)
	require.NotNil(t, r.CompanyID)
	assert.Equal(t, int64(3), *r.CompanyID)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), r.CreatedAt)

	assert.Equal(t, "Widget", r.Attrs["name"])
	assert.Equal(t, 19.5, r.Attrs["price"])
	assert.False(t, r.HasAttr("id"), "fixed fields must not leak into attrs")
	assert.False(t, r.HasAttr("company_id"))
}

func TestRecordRoundTrip_PreservesUnknownKeys(t *testing.T) {
	raw := []byte(`{"id":1,"gst_number":"22AAAAA0000A1Z5","opening_balance":1200}`)

	var r Record
	require.NoError(t, json.Unmarshal(raw, &r))

	out, err := json.Marshal(r)
	require.NoError(t, err)

	var r2 Record
	require.NoError(t, json.Unmarshal(out, &r2))
	assert.Equal(t, r.ID, r2.ID)
	assert.Equal(t, r.Attrs, r2.Attrs)
}

func TestRecordMarshal_OmitsNilCompanyAndZeroTimes(t *testing.T) {
	out, err := json.Marshal(Record{ID: 9})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Contains(t, m, "id")
	assert.NotContains(t, m, "company_id")
	assert.NotContains(t, m, "created_at")
	assert.NotContains(t, m, "updated_at")
}

func TestRecordUnmarshal_BadTimestampIsIgnored(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"created_at":"yesterday"}`), &r))
	assert.True(t, r.CreatedAt.IsZero())
	assert.False(t, r.HasAttr("created_at"))
}

func TestRecordSetAttr_AllocatesMap(t *testing.T) {
	var r Record
	r.SetAttr("name", "x")
	assert.Equal(t, "x", r.Attrs["name"])
}
