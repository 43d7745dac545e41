// Package models defines the shared data types of the backup engine: the
// closed set of business entity types, the generic Record representation,
// the SnapshotDocument produced by exports, and the metadata describing a
// stored backup blob.
package models

// EntityType identifies one business collection. The set is closed: every
// component iterates over ImportOrder rather than accepting free-form names.
type EntityType string

const (
	EntityCompanies        EntityType = "companies"
	EntityUsers            EntityType = "users"
	EntityCategories       EntityType = "categories"
	EntitySubCategories    EntityType = "sub_categories"
	EntitySuppliers        EntityType = "suppliers"
	EntityCustomers        EntityType = "customers"
	EntitySalespersons     EntityType = "salespersons"
	EntityProducts         EntityType = "products"
	EntitySales            EntityType = "sales"
	EntityPurchases        EntityType = "purchases"
	EntityCommissions      EntityType = "commissions"
	EntityAssignments      EntityType = "assignments"
	EntityStockAdjustments EntityType = "stock_adjustments"
	EntitySettings         EntityType = "settings"
)

// importOrder lists every entity type in reference-dependency order:
// purchases reference products and suppliers, products reference categories,
// users reference companies. Restores must process collections in this order.
var importOrder = []EntityType{
	EntityCompanies,
	EntityUsers,
	EntityCategories,
	EntitySubCategories,
	EntitySuppliers,
	EntityCustomers,
	EntitySalespersons,
	EntityProducts,
	EntitySales,
	EntityPurchases,
	EntityCommissions,
	EntityAssignments,
	EntityStockAdjustments,
	EntitySettings,
}

// ImportOrder returns the full entity-type set in dependency order.
// The returned slice is a copy and safe to modify.
func ImportOrder() []EntityType {
	out := make([]EntityType, len(importOrder))
	copy(out, importOrder)
	return out
}

// AllEntityTypes returns every known entity type. The order matches
// ImportOrder so snapshots enumerate collections deterministically.
func AllEntityTypes() []EntityType {
	return ImportOrder()
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	for _, e := range importOrder {
		if t == e {
			return true
		}
	}
	return false
}

// TenantScoped reports whether collections of this type are filtered by
// company when building a tenant-scoped snapshot. The company and user
// directories are global: backup and restore administer all tenants from a
// single admin context and always export them in full.
func (t EntityType) TenantScoped() bool {
	switch t {
	case EntityCompanies, EntityUsers:
		return false
	default:
		return true
	}
}
