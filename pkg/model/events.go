package model

import (
	"time"

	"github.com/google/uuid"
)

// Settings event types.
const (
	EventSettingsSaved        = "settings.saved"
	EventSettingsSubmitFailed = "settings.submit_failed"
	EventSettingsFetchFailed  = "settings.fetch_failed"
)

// Envelope is the canonical settings event shared by the bus, the brokers
// and the audit store. It never carries the token value.
type Envelope struct {
	ID           uuid.UUID `json:"id"`
	EventType    string    `json:"event_type"`
	OccurredAt   time.Time `json:"occurred_at"`
	IngestURL    string    `json:"ingest_url,omitempty"`
	ConfigKey    string    `json:"config_key,omitempty"`
	TokenChanged bool      `json:"token_changed"`
	Stage        string    `json:"stage,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// NewEnvelope stamps a fresh id and time on an event of the given type.
func NewEnvelope(eventType string) *Envelope {
	return &Envelope{
		ID:         uuid.New(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// IsSubmitOutcome reports whether the envelope ends a submit, saved or failed.
func (e *Envelope) IsSubmitOutcome() bool {
	return e != nil && (e.EventType == EventSettingsSaved || e.EventType == EventSettingsSubmitFailed)
}

// Succeeded reports whether the envelope records a successful submit.
func (e *Envelope) Succeeded() bool {
	return e != nil && e.EventType == EventSettingsSaved
}
