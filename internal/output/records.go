package output

// wellKnownListKeys are the payload keys FRED responses carry their record
// lists under, checked in order.
var wellKnownListKeys = []string{
	"observations",
	"seriess",
	"series",
	"categories",
	"releases",
	"release_dates",
	"sources",
	"tags",
	"shape_values",
	"regional_data",
	"series_data",
	"vintage_dates",
	"tables",
	"jobs",
	"projects",
	"files",
}

// ExtractRecords pulls the tabular record list out of a payload: either the
// payload itself when it is a list, or the first well-known list key found.
// Payloads with no record list return nil and are treated as structured
// documents by the router.
func ExtractRecords(data any) []map[string]any {
	switch v := data.(type) {
	case []map[string]any:
		return v
	case []any:
		return coerceRecords(v)
	case map[string]any:
		for _, key := range wellKnownListKeys {
			if raw, ok := v[key]; ok {
				if list, ok := raw.([]any); ok {
					return coerceRecords(list)
				}
				if list, ok := raw.([]map[string]any); ok {
					return list
				}
			}
		}
	}
	return nil
}

func coerceRecords(list []any) []map[string]any {
	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		} else {
			// Scalar lists (vintage dates) become single-column records.
			records = append(records, map[string]any{"value": item})
		}
	}
	return records
}
