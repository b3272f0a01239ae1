package output

import (
	"encoding/csv"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Flattener converts nested record structures into flat tabular rows.
// Nested maps flatten recursively with an underscore-joined key; list values
// (geometry coordinate arrays included) are rendered as one compact JSON
// string rather than expanded into columns.
type Flattener struct {
	separator string
}

func NewFlattener() *Flattener {
	return &Flattener{separator: "_"}
}

// Prepare returns the union of flat field names across all records in
// first-seen order, and one row per record. Fields absent from a record
// yield an empty value in its row.
func (f *Flattener) Prepare(records []map[string]any) ([]string, []map[string]string) {
	var fields []string
	seen := map[string]bool{}
	rows := make([]map[string]string, 0, len(records))

	for _, record := range records {
		flat := map[string]string{}
		f.flattenInto("", record, flat)
		for _, key := range sortedKeys(flat) {
			if !seen[key] {
				seen[key] = true
				fields = append(fields, key)
			}
		}
		rows = append(rows, flat)
	}
	return fields, rows
}

// ToCSV composes Prepare with a textual CSV rendering.
func (f *Flattener) ToCSV(records []map[string]any) (string, error) {
	fields, rows := f.Prepare(records)
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(fields); err != nil {
		return "", err
	}
	for _, row := range rows {
		line := make([]string, len(fields))
		for i, field := range fields {
			line[i] = row[field]
		}
		if err := w.Write(line); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

func (f *Flattener) flattenInto(prefix string, value map[string]any, out map[string]string) {
	for _, key := range sortedAnyKeys(value) {
		name := key
		if prefix != "" {
			name = prefix + f.separator + key
		}
		switch v := value[key].(type) {
		case map[string]any:
			f.flattenInto(name, v, out)
		default:
			out[name] = FormatScalar(v)
		}
	}
}

// FormatScalar renders a leaf value for a tabular cell. Lists become compact
// JSON; nil becomes the empty string.
func FormatScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedAnyKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
