package output

import (
	"encoding/json"
)

// charsPerToken is the serialized-size-to-token proxy. The estimate is a
// tunable heuristic; only monotonicity and threshold behavior matter.
const charsPerToken = 4

// TokenEstimator sizes candidate responses so the output router can decide
// between inline and file disposition. Estimates derive from a JSON
// serialization of each record, so identical input always yields an
// identical estimate (encoding/json emits map keys in sorted order).
type TokenEstimator struct {
	assumeContextUsed float64
	defaultSafeLimit  int
}

func NewTokenEstimator(assumeContextUsed float64, defaultSafeLimit int) *TokenEstimator {
	if assumeContextUsed < 0 || assumeContextUsed >= 1 {
		assumeContextUsed = 0.75
	}
	if defaultSafeLimit <= 0 {
		defaultSafeLimit = 50000
	}
	return &TokenEstimator{
		assumeContextUsed: assumeContextUsed,
		defaultSafeLimit:  defaultSafeLimit,
	}
}

// EstimateRecords returns the token weight of records, nested structures and
// coordinate arrays included.
func (e *TokenEstimator) EstimateRecords(records []map[string]any) int {
	total := 0
	for _, record := range records {
		total += e.EstimateValue(record)
	}
	return total
}

// EstimateValue sizes a single arbitrary value.
func (e *TokenEstimator) EstimateValue(value any) int {
	encoded, err := json.Marshal(value)
	if err != nil {
		// Unserializable values cannot be rendered inline either; weigh
		// them by their Go string form.
		return (len([]byte(jsonFallback(value))) + charsPerToken - 1) / charsPerToken
	}
	return (len(encoded) + charsPerToken - 1) / charsPerToken
}

// ShouldSaveToFile reports whether tokens exceed the available headroom:
// the limit scaled down by the assume-already-consumed fraction. A zero
// limit falls back to the configured default.
func (e *TokenEstimator) ShouldSaveToFile(tokens, limit int) bool {
	if limit <= 0 {
		limit = e.defaultSafeLimit
	}
	available := float64(limit) * (1 - e.assumeContextUsed)
	return float64(tokens) > available
}

func jsonFallback(value any) string {
	if s, ok := value.(interface{ String() string }); ok {
		return s.String()
	}
	return "unserializable"
}
