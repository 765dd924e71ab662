// Package ingest converts search rows into SignalFx datapoints and events and
// sends them to the configured ingest endpoint.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/signalfx/sfx-forwarder-app/internal/metrics"
	"github.com/signalfx/sfx-forwarder-app/pkg/model"
)

// Kind selects the ingest API a batch of rows goes to.
type Kind string

const (
	KindDatapoints Kind = "datapoints"
	KindEvents     Kind = "events"
)

// Endpoint returns the ingest path for k.
func (k Kind) Endpoint() string {
	if k == KindEvents {
		return EventEndpoint
	}
	return DatapointEndpoint
}

// ErrBuild wraps row conversion failures; nothing was sent.
var ErrBuild = errors.New("build ingest payload")

// Options mirror the dry_run and debug arguments of the search commands.
type Options struct {
	DryRun bool
	Debug  bool
}

// ConfigResolver supplies the ingest URL and token.
type ConfigResolver interface {
	Resolve(ctx context.Context) (model.ForwarderConfig, error)
}

// Forwarder builds a payload from rows, sends it, and annotates the rows.
type Forwarder struct {
	resolver ConfigResolver
	sender   *Sender
	logger   *zap.Logger
}

func NewForwarder(resolver ConfigResolver, sender *Sender, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{resolver: resolver, sender: sender, logger: logger}
}

// Forward returns a copy of rows annotated with the ingest status. With
// Debug each row also gets the endpoint; event rows get response_error when
// ingest did not answer 200. A dry run builds the payload but sends nothing.
func (f *Forwarder) Forward(ctx context.Context, kind Kind, rows []model.Row, opts Options) ([]model.Row, error) {
	payload, items, err := build(kind, rows)
	if err != nil {
		metrics.IncForwardError(string(kind), "build")
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	out := make([]model.Row, len(rows))
	for i, row := range rows {
		cp := make(model.Row, len(row)+2)
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}

	if opts.DryRun && !opts.Debug {
		return out, nil
	}

	cfg, err := f.resolver.Resolve(ctx)
	if err != nil && !(opts.DryRun && errors.Is(err, ErrNoAccessToken)) {
		metrics.IncForwardError(string(kind), "resolve")
		return nil, fmt.Errorf("resolve forwarder config: %w", err)
	}

	if opts.Debug {
		endpoint := Target(cfg.IngestURL, kind.Endpoint())
		for _, row := range out {
			row["endpoint"] = endpoint
		}
	}
	if opts.DryRun {
		return out, nil
	}

	res, err := f.sender.Send(ctx, cfg, kind.Endpoint(), payload)
	if res == nil {
		metrics.IncForwardError(string(kind), "send")
		return nil, fmt.Errorf("send %s: %w", kind, err)
	}
	if err != nil {
		f.logger.Warn("ingest.send_failed", zap.String("kind", string(kind)), zap.Error(err))
	}

	metrics.AddForwarded(string(kind), res.StatusCode, items)
	status := strconv.Itoa(res.StatusCode)
	for _, row := range out {
		row["status"] = status
		if kind == KindEvents && res.StatusCode != 200 {
			row["response_error"] = string(res.Body)
		}
	}

	f.logger.Info("ingest.forwarded",
		zap.String("kind", string(kind)),
		zap.Int("rows", len(rows)),
		zap.Int("items", items),
		zap.Int("status", res.StatusCode))
	return out, nil
}

func build(kind Kind, rows []model.Row) (any, int, error) {
	switch kind {
	case KindDatapoints:
		p, err := BuildDatapoints(rows)
		if err != nil {
			return nil, 0, err
		}
		return p, p.Count(), nil
	case KindEvents:
		evs, err := BuildEvents(rows)
		if err != nil {
			return nil, 0, err
		}
		return evs, len(evs), nil
	default:
		return nil, 0, fmt.Errorf("unknown forward kind %q", kind)
	}
}
