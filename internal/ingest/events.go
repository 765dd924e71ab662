package ingest

import (
	"fmt"
	"strings"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// CategoryUserDefined is the only event category the forwarder sends.
const CategoryUserDefined = "USER_DEFINED"

const (
	eventPrefix    = "event_"
	propertyPrefix = "property_"
)

func isClaimedByEvent(key string) bool {
	return strings.HasPrefix(key, eventPrefix) || strings.HasPrefix(key, propertyPrefix) || key == "_time"
}

// BuildEvents turns search rows into a /v2/event body, one event per row.
// An event_* field names the event type; property_* fields become properties.
func BuildEvents(rows []model.Row) ([]model.Event, error) {
	events := make([]model.Event, 0, len(rows))

	for i, row := range rows {
		ev := model.Event{
			Category:   CategoryUserDefined,
			Dimensions: dimensions(row, isClaimedByEvent),
			Properties: map[string]string{},
		}

		for _, key := range sortedKeys(row) {
			value := row[key]
			if value == "" {
				continue
			}
			switch {
			case strings.HasPrefix(key, eventPrefix):
				ev.EventType = value
			case strings.HasPrefix(key, propertyPrefix):
				if keepValue(value) {
					ev.Properties[sanitizeKey(strings.TrimPrefix(key, propertyPrefix))] = value
				}
			case key == "_time":
				ms, err := parseMillis(value)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				ev.Timestamp = &ms
			}
		}
		events = append(events, ev)
	}
	return events, nil
}
