package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

func TestBuildDatapoints_FieldRules(t *testing.T) {
	rows := []model.Row{{
		"gauge_cpu.util":          "12.5",
		"counter_requests":        "42",
		"cumulative_counter_byte": "1000",
		"_time":                   "1700000000.123",
		"host":                    "web-1",
		"service.name":            "api",
		"_raw":                    "ignored",
		"punct":                   "::",
		"date_hour":               "12",
		"internal":                "_hidden",
		"long":                    strings.Repeat("x", 256),
		"empty":                   "",
	}}

	p, err := BuildDatapoints(rows)
	require.NoError(t, err)
	require.Len(t, p[MetricGauge], 1)
	require.Len(t, p[MetricCounter], 1)
	require.Len(t, p[MetricCumulativeCounter], 1)

	g := p[MetricGauge][0]
	assert.Equal(t, "cpu.util", g.Metric)
	assert.Equal(t, json.Number("12.5"), g.Value)
	assert.Equal(t, int64(1700000000123), g.Timestamp)
	assert.Equal(t, map[string]string{"host": "web-1", "service_name": "api"}, g.Dimensions)

	assert.Equal(t, "requests", p[MetricCounter][0].Metric)
	assert.Equal(t, json.Number("42"), p[MetricCounter][0].Value)
	assert.Equal(t, "byte", p[MetricCumulativeCounter][0].Metric)
}

func TestBuildDatapoints_LaterRowsFirst(t *testing.T) {
	rows := []model.Row{
		{"gauge_a": "1", "_time": "3"},
		{"gauge_a": "2", "_time": "2"},
		{"gauge_a": "3", "_time": "1"},
	}

	p, err := BuildDatapoints(rows)
	require.NoError(t, err)
	require.Len(t, p[MetricGauge], 3)
	assert.Equal(t, int64(1000), p[MetricGauge][0].Timestamp)
	assert.Equal(t, int64(2000), p[MetricGauge][1].Timestamp)
	assert.Equal(t, int64(3000), p[MetricGauge][2].Timestamp)
}

func TestBuildDatapoints_NoTimeOmitsTimestamp(t *testing.T) {
	p, err := BuildDatapoints([]model.Row{{"gauge_a": "7"}})
	require.NoError(t, err)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "timestamp")
}

func TestBuildDatapoints_CounterMustBeInteger(t *testing.T) {
	_, err := BuildDatapoints([]model.Row{{"counter_a": "1.5"}})
	require.Error(t, err)

	_, err = BuildDatapoints([]model.Row{{"gauge_a": "abc"}})
	require.Error(t, err)

	_, err = BuildDatapoints([]model.Row{{"gauge_a": "1", "_time": "yesterday"}})
	require.Error(t, err)
}

func TestBuildDatapoints_RowWithoutMetrics(t *testing.T) {
	p, err := BuildDatapoints([]model.Row{{"host": "a"}})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Count())
}
