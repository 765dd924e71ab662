package splunkd

import (
	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/backend"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Backend implements backend.Backend against one splunkd app namespace:
// the ingest URL lives in a KV store collection, the token in storage/passwords.
type Backend struct {
	client     *Client
	logger     *zap.Logger
	collection string
	lookup     string
	realm      string
	username   string
}

var _ backend.Backend = (*Backend)(nil)

// NewBackend binds the fixed collection and credential names to client.
func NewBackend(client *Client, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		client:     client,
		logger:     logger,
		collection: model.IngestConfigCollection,
		lookup:     model.IngestConfigLookup,
		realm:      model.TokenRealm,
		username:   model.TokenUsername,
	}
}
