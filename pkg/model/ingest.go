package model

import "encoding/json"

// Datapoint is one SignalFx datapoint.
type Datapoint struct {
	Metric     string            `json:"metric"`
	Value      json.Number       `json:"value"`
	Timestamp  int64             `json:"timestamp,omitempty"`
	Dimensions map[string]string `json:"dimensions"`
}

// DatapointPayload is the body of POST /v2/datapoint, keyed by metric type
// ("gauge", "counter", "cumulative_counter").
type DatapointPayload map[string][]Datapoint

// Count returns the number of datapoints across all metric types.
func (p DatapointPayload) Count() int {
	n := 0
	for _, dps := range p {
		n += len(dps)
	}
	return n
}

// Event is one SignalFx custom event.
type Event struct {
	Category   string            `json:"category"`
	EventType  string            `json:"eventType,omitempty"`
	Dimensions map[string]string `json:"dimensions"`
	Properties map[string]string `json:"properties"`
	Timestamp  *int64            `json:"timestamp"`
}

// Row is a single search result: field name to value.
type Row map[string]string
