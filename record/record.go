// Package record defines the core data model for fetched survey data:
// Records (one row of source data), Datasets (ordered collections of
// Records), and alias-based lookup of logical attributes whose header
// names vary from sheet to sheet.
package record

// SheetNameField is the synthetic field stamped on every Record to tag
// which sheet it came from when multiple sources are merged.
const SheetNameField = "_sheet_name"

// Record is one row of source data as a field-name-to-value mapping.
// Field names are taken verbatim from the source's header row; there is
// no fixed schema. Lookups on missing fields return the empty string.
type Record map[string]string

// Get returns the value for a field, or empty string if absent.
func (r Record) Get(field string) string {
	return r[field]
}

// SheetName returns the provenance tag, or empty string if the Record
// was never stamped.
func (r Record) SheetName() string {
	return r[SheetNameField]
}

// Dataset is the full ordered collection of Records from one or more
// sources for a single query. Order follows source row order; it is
// irrelevant for aggregation but keeps sampling stable.
type Dataset struct {
	// Headers is the field-name set of the first contributing source,
	// in source column order. Merged sources may carry different
	// headers on their Records; MergedHeaders covers those.
	Headers []string

	// Records holds the rows in source order.
	Records []Record
}

// Len returns the number of Records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Merge appends another Dataset, unioning headers in first-seen order.
// Records keep their own field sets; downstream code tolerates missing
// fields via empty-string lookups.
func (d *Dataset) Merge(other *Dataset) {
	if other == nil {
		return
	}
	seen := make(map[string]bool, len(d.Headers))
	for _, h := range d.Headers {
		seen[h] = true
	}
	for _, h := range other.Headers {
		if !seen[h] {
			d.Headers = append(d.Headers, h)
			seen[h] = true
		}
	}
	d.Records = append(d.Records, other.Records...)
}

// BySheet groups Records by their provenance tag, preserving row order
// within each group. Records without a tag group under the empty key.
func (d *Dataset) BySheet() map[string][]Record {
	groups := make(map[string][]Record)
	for _, r := range d.Records {
		name := r.SheetName()
		groups[name] = append(groups[name], r)
	}
	return groups
}
