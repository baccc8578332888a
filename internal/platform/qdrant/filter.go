package qdrant

import "time"

// Filter is an AND-composed set of payload conditions, the only filter shape
// the counting queries need.
type Filter struct {
	must []map[string]any
}

func NewFilter() *Filter {
	return &Filter{}
}

// Match adds an exact equality condition on a payload key.
func (f *Filter) Match(key string, value any) *Filter {
	f.must = append(f.must, map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	})
	return f
}

// DatetimeRange adds a closed-interval datetime condition. Bounds are
// formatted at second granularity so counts are reproducible across runs.
func (f *Filter) DatetimeRange(key string, gte, lte time.Time) *Filter {
	f.must = append(f.must, map[string]any{
		"key": key,
		"range": map[string]any{
			"gte": gte.UTC().Format("2006-01-02T15:04:05Z"),
			"lte": lte.UTC().Format("2006-01-02T15:04:05Z"),
		},
	})
	return f
}

func (f *Filter) AsMap() map[string]any {
	if f == nil || len(f.must) == 0 {
		return nil
	}
	return map[string]any{"must": f.must}
}
