package reference

// Entity describes one reference table managed by the bulk reconciliation
// engine. The upload header names double as the database column names, so a
// descriptor fully determines both the CSV contract and the SQL.
type Entity struct {
	// Name keys the identifier counter row and appears in logs.
	Name string
	// Route is the URL segment for the entity's resource group.
	Route string
	// Table is the backing Postgres table.
	Table string
	// Plural is the noun used in response body keys, e.g.
	// "manufacturers_already_present".
	Plural string
	// KeyColumns is the natural-key tuple. Most entities match on a single
	// name column; lab tests match on a five-column tuple.
	KeyColumns []string
	// SuspendRemarks reports whether the suspend upload carries a remarks
	// column for this entity.
	SuspendRemarks bool
}

// RenameColumns returns the upload header names holding the desired new key
// values, one per key column.
func (e Entity) RenameColumns() []string {
	cols := make([]string, len(e.KeyColumns))
	for i, c := range e.KeyColumns {
		cols[i] = "new_" + c
	}
	return cols
}

// Entities returns the descriptors for every reference entity the platform
// manages.
func Entities() []Entity {
	return []Entity{
		{
			Name:           "manufacturer",
			Route:          "manufacturer",
			Table:          "manufacturers",
			Plural:         "manufacturers",
			KeyColumns:     []string{"manufacturer_name"},
			SuspendRemarks: true,
		},
		{
			Name:           "category",
			Route:          "category",
			Table:          "categories",
			Plural:         "categories",
			KeyColumns:     []string{"category_name"},
			SuspendRemarks: true,
		},
		{
			Name:           "specialization",
			Route:          "specialization",
			Table:          "specializations",
			Plural:         "specializations",
			KeyColumns:     []string{"specialization_name"},
			SuspendRemarks: true,
		},
		{
			Name:           "qualification",
			Route:          "qualification",
			Table:          "qualifications",
			Plural:         "qualifications",
			KeyColumns:     []string{"qualification_name"},
			SuspendRemarks: true,
		},
		{
			Name:           "service_category",
			Route:          "service_category",
			Table:          "service_categories",
			Plural:         "service_categories",
			KeyColumns:     []string{"service_category_name"},
			SuspendRemarks: false,
		},
		{
			Name:           "vitals",
			Route:          "vitals",
			Table:          "vitals",
			Plural:         "vitals",
			KeyColumns:     []string{"vital_name"},
			SuspendRemarks: false,
		},
		{
			Name:           "vital_frequency",
			Route:          "vital_frequency",
			Table:          "vital_frequencies",
			Plural:         "vital_frequencies",
			KeyColumns:     []string{"vital_frequency_name"},
			SuspendRemarks: true,
		},
		{
			Name:           "test",
			Route:          "test",
			Table:          "lab_tests",
			Plural:         "tests",
			KeyColumns:     []string{"test_name", "department", "sample", "method", "units"},
			SuspendRemarks: true,
		},
	}
}
