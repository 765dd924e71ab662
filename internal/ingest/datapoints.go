package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Metric types as they appear in the /v2/datapoint body.
const (
	MetricGauge             = "gauge"
	MetricCounter           = "counter"
	MetricCumulativeCounter = "cumulative_counter"
)

type metricField struct {
	prefix  string
	kind    string
	integer bool
}

var metricFields = []metricField{
	{prefix: "gauge_", kind: MetricGauge},
	{prefix: "counter_", kind: MetricCounter, integer: true},
	{prefix: "cumulative_counter_", kind: MetricCumulativeCounter, integer: true},
}

func metricFieldOf(key string) (metricField, bool) {
	for _, mf := range metricFields {
		if strings.HasPrefix(key, mf.prefix) {
			return mf, true
		}
	}
	return metricField{}, false
}

func isClaimedByDatapoint(key string) bool {
	_, ok := metricFieldOf(key)
	return ok || key == "_time"
}

// BuildDatapoints turns search rows into a /v2/datapoint body. Each
// gauge_*, counter_* and cumulative_counter_* field is one datapoint carrying
// the row's dimensions. Later rows go first, since ingest wants oldest to latest
// and search returns newest first.
func BuildDatapoints(rows []model.Row) (model.DatapointPayload, error) {
	payload := model.DatapointPayload{}

	for i, row := range rows {
		dims := dimensions(row, isClaimedByDatapoint)

		var ts int64
		if v := row["_time"]; v != "" {
			ms, err := parseMillis(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			ts = ms
		}

		byKind := map[string][]model.Datapoint{}
		for _, key := range sortedKeys(row) {
			value := row[key]
			mf, ok := metricFieldOf(key)
			if !ok || value == "" {
				continue
			}
			num, err := parseMetricValue(value, mf.integer)
			if err != nil {
				return nil, fmt.Errorf("row %d field %s: %w", i, key, err)
			}
			byKind[mf.kind] = append(byKind[mf.kind], model.Datapoint{
				Metric:     strings.TrimPrefix(key, mf.prefix),
				Value:      num,
				Timestamp:  ts,
				Dimensions: dims,
			})
		}

		for kind, dps := range byKind {
			payload[kind] = append(dps, payload[kind]...)
		}
	}
	return payload, nil
}

// parseMetricValue accepts integers for every metric type and decimals for
// gauges only.
func parseMetricValue(v string, integer bool) (json.Number, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(n, 10)), nil
	}
	if integer {
		return "", fmt.Errorf("counter value %q is not an integer", v)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return "", fmt.Errorf("gauge value %q is not a number", v)
	}
	return json.Number(d.String()), nil
}
