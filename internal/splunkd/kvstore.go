package splunkd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// ReadIngestConfig returns the first row of the ingest config lookup, or nil
// when the collection is empty.
func (b *Backend) ReadIngestConfig(ctx context.Context) (*model.IngestConfig, error) {
	rows, err := b.client.Oneshot(ctx, readIngestConfigQuery(b.lookup))
	if err != nil {
		b.logger.Warn("splunkd.read_ingest_config_failed", zap.Error(err))
		return nil, fmt.Errorf("read ingest config: %w", err)
	}

	records := rows.Records()
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > 1 {
		b.logger.Warn("splunkd.ingest_config_multiple_rows",
			zap.Int("rows", len(records)))
	}
	return &model.IngestConfig{
		IngestURL: records[0]["ingest_url"],
		Key:       records[0]["_key"],
	}, nil
}

// CreateIngestConfig inserts a row; splunkd assigns the _key.
// POST storage/collections/data/{collection}/
func (b *Backend) CreateIngestConfig(ctx context.Context, ingestURL string) (*model.IngestConfig, error) {
	body := model.IngestConfig{IngestURL: ingestURL, Key: ""}

	var resp KVKeyResponse
	path := fmt.Sprintf("storage/collections/data/%s/", b.collection)
	if err := b.client.postJSON(ctx, path, body, &resp); err != nil {
		b.logger.Warn("splunkd.create_ingest_config_failed", zap.Error(err))
		return nil, fmt.Errorf("create ingest config: %w", err)
	}

	b.logger.Info("splunkd.ingest_config_created", zap.String("key", resp.Key))
	return &model.IngestConfig{IngestURL: ingestURL, Key: resp.Key}, nil
}

// UpdateIngestConfig rewrites the row with the given key through the lookup.
func (b *Backend) UpdateIngestConfig(ctx context.Context, key, ingestURL string) (*model.IngestConfig, error) {
	if key == "" {
		return nil, fmt.Errorf("update ingest config: empty _key")
	}
	if _, err := b.client.Oneshot(ctx, updateIngestConfigQuery(b.lookup, key, ingestURL)); err != nil {
		b.logger.Warn("splunkd.update_ingest_config_failed",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("update ingest config: %w", err)
	}

	b.logger.Info("splunkd.ingest_config_updated", zap.String("key", key))
	return &model.IngestConfig{IngestURL: ingestURL, Key: key}, nil
}
