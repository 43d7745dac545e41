package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalvis/stockvault/internal/common"
)

func TestImportOrder_DependenciesBeforeDependents(t *testing.T) {
	order := ImportOrder()
	require.Len(t, order, 14)

	pos := make(map[EntityType]int, len(order))
	for i, et := range order {
		pos[et] = i
	}

	assert.Less(t, pos[EntityCompanies], pos[EntityUsers])
	assert.Less(t, pos[EntityCategories], pos[EntityProducts])
	assert.Less(t, pos[EntitySuppliers], pos[EntityPurchases])
	assert.Less(t, pos[EntityProducts], pos[EntitySales])
	assert.Less(t, pos[EntityProducts], pos[EntityStockAdjustments])
}

func TestImportOrder_ReturnsCopy(t *testing.T) {
	order := ImportOrder()
	order[0] = EntityType("mutated")
	assert.Equal(t, EntityCompanies, ImportOrder()[0])
}

func TestEntityTypeValid(t *testing.T) {
	assert.True(t, EntityProducts.Valid())
	assert.False(t, EntityType("invoices").Valid())
	assert.False(t, EntityType("").Valid())
}

func TestTenantScoped(t *testing.T) {
	assert.False(t, EntityCompanies.TenantScoped())
	assert.False(t, EntityUsers.TenantScoped())
	assert.True(t, EntityProducts.TenantScoped())
	assert.True(t, EntitySettings.TenantScoped())
}

func TestSnapshotValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     *SnapshotDocument
		wantErr bool
	}{
		{"nil document", nil, true},
		{"missing version", &SnapshotDocument{Data: map[EntityType][]Record{}}, true},
		{"missing data", &SnapshotDocument{Version: SnapshotVersion}, true},
		{"valid", &SnapshotDocument{Version: SnapshotVersion, Data: map[EntityType][]Record{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidSnapshot)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSnapshotTotalRecords(t *testing.T) {
	doc := &SnapshotDocument{
		Version: SnapshotVersion,
		Data: map[EntityType][]Record{
			EntityProducts:  {{ID: 1}, {ID: 2}},
			EntityCustomers: {{ID: 1}},
			EntitySettings:  {},
		},
	}
	assert.Equal(t, 3, doc.TotalRecords())
}
