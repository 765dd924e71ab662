package ingest

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

const maxValueLen = 256

var thousand = decimal.NewFromInt(1000)

// sortedKeys gives a stable field order so payloads are reproducible.
func sortedKeys(row model.Row) []string {
	keys := lo.Keys(row)
	slices.Sort(keys)
	return keys
}

// keepValue drops internal-looking and oversized values.
func keepValue(v string) bool {
	return v != "" && v[0] != '_' && utf8.RuneCountInString(v) < maxValueLen
}

// isDimensionField excludes splunk's internal and derived fields.
func isDimensionField(key string) bool {
	return !strings.HasPrefix(key, "_") && key != "punct" && !strings.HasPrefix(key, "date_")
}

func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

// dimensions returns the row fields that are not claimed by claimed().
func dimensions(row model.Row, claimed func(key string) bool) map[string]string {
	return lo.MapKeys(
		lo.PickBy(row, func(k, v string) bool {
			return !claimed(k) && isDimensionField(k) && keepValue(v)
		}),
		func(_ string, k string) string { return sanitizeKey(k) },
	)
}

// parseMillis converts splunk's fractional-second _time into epoch millis.
func parseMillis(v string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid _time %q: %w", v, err)
	}
	return d.Mul(thousand).IntPart(), nil
}
