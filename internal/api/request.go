package api

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// SettingsRequest is the settings form as submitted by the page.
type SettingsRequest struct {
	IngestURL   string `json:"ingest_url" example:"https://ingest.us1.signalfx.com"`
	AccessToken string `json:"access_token" example:"************"`
}

// ForwardRequest carries search rows for the datapoint and event forwarders.
type ForwardRequest struct {
	Rows   []map[string]any `json:"rows" validate:"required,min=1,max=10000,dive,required"`
	DryRun bool             `json:"dry_run"`
	Debug  bool             `json:"debug"`
}

// toRow flattens a JSON row into search-result form. Scalars become their
// string form; nested objects and arrays are rejected.
func toRow(in map[string]any) (model.Row, error) {
	row := make(model.Row, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			row[k] = ""
		case string:
			row[k] = val
		case bool:
			row[k] = strconv.FormatBool(val)
		case float64:
			row[k] = decimal.NewFromFloat(val).String()
		default:
			return nil, fmt.Errorf("field %q: expected a string, number or boolean", k)
		}
	}
	return row, nil
}

// ValidateResponse reports per-field validity without touching the backend.
type ValidateResponse struct {
	Valid       bool `json:"valid"`
	IngestURL   bool `json:"ingest_url"`
	AccessToken bool `json:"access_token"`
}
