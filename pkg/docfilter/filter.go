// Package docfilter strips denied operators from document-store queries and
// enforces the row cap on aggregation pipelines.
package docfilter

import (
	"github.com/JonnyJiang123/smart-sql/pkg/core"
	"go.mongodb.org/mongo-driver/bson"
)

// DangerousOperators lists keys that are never forwarded to the server.
var DangerousOperators = []string{
	"$where",
	"$eval",
	"$function",
	"$javascript",
	"$mapReduce",
	"$group.$push",
	"$group.$addToSet",
	"$out",
	"$merge",
	"$bucketAuto",
}

var denied = func() map[string]struct{} {
	m := make(map[string]struct{}, len(DangerousOperators))
	for _, op := range DangerousOperators {
		m[op] = struct{}{}
	}
	return m
}()

// IsDangerous reports whether key is on the denylist.
func IsDangerous(key string) bool {
	_, ok := denied[key]
	return ok
}

// ContainsDangerous reports whether any key at any depth is denied.
func ContainsDangerous(doc bson.D) bool {
	for _, e := range doc {
		if IsDangerous(e.Key) || valueContainsDangerous(e.Value) {
			return true
		}
	}
	return false
}

func valueContainsDangerous(v any) bool {
	switch x := v.(type) {
	case bson.D:
		return ContainsDangerous(x)
	case bson.M:
		for k, val := range x {
			if IsDangerous(k) || valueContainsDangerous(val) {
				return true
			}
		}
	case bson.A:
		for _, item := range x {
			if valueContainsDangerous(item) {
				return true
			}
		}
	case []any:
		return valueContainsDangerous(bson.A(x))
	}
	return false
}

// Filter returns a copy of doc without denied keys. Order and all other
// values are preserved. A nil doc stays nil.
func Filter(doc bson.D) bson.D {
	if doc == nil {
		return nil
	}
	out := make(bson.D, 0, len(doc))
	for _, e := range doc {
		if IsDangerous(e.Key) {
			continue
		}
		out = append(out, bson.E{Key: e.Key, Value: filterValue(e.Value)})
	}
	return out
}

func filterValue(v any) any {
	switch x := v.(type) {
	case bson.D:
		return Filter(x)
	case bson.M:
		out := make(bson.M, len(x))
		for k, val := range x {
			if IsDangerous(k) {
				continue
			}
			out[k] = filterValue(val)
		}
		return out
	case bson.A:
		out := make(bson.A, len(x))
		for i, item := range x {
			out[i] = filterValue(item)
		}
		return out
	case []any:
		return filterValue(bson.A(x))
	}
	return v
}

// FilterPipeline filters every stage and normalizes the $limit stage.
// An existing $limit is clamped to core.MaxLimit; otherwise a
// {$limit: core.DefaultLimit} stage is appended.
func FilterPipeline(stages []bson.D) []bson.D {
	out := make([]bson.D, 0, len(stages)+1)
	hasLimit := false

	for _, stage := range stages {
		filtered := Filter(stage)
		if len(filtered) == 0 {
			continue
		}
		for i, e := range filtered {
			if e.Key == "$limit" {
				hasLimit = true
				filtered[i].Value = clampLimitValue(e.Value)
			}
		}
		out = append(out, filtered)
	}

	if !hasLimit {
		out = append(out, bson.D{{Key: "$limit", Value: int64(core.DefaultLimit)}})
	}
	return out
}

// clampLimitValue coerces a $limit argument to an integer within bounds.
func clampLimitValue(v any) int64 {
	var n int64
	switch x := v.(type) {
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		n = int64(x)
	case int:
		n = int64(x)
	default:
		return core.DefaultLimit
	}
	return min(n, core.MaxLimit)
}
