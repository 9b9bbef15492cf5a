// Package tracelane is a resilient client for the Tracelane project-tracking
// REST API. It compiles structured queries to the service's textual grammar,
// retries transient failures with jittered backoff, caches the instance's
// valid record types, and assembles best-effort metadata when the instance's
// own metadata endpoints fall short.
package tracelane

import (
	"context"

	"github.com/tracelane/tracelane-go/api"
	"github.com/tracelane/tracelane-go/config"
	"github.com/tracelane/tracelane-go/metadata"
	"github.com/tracelane/tracelane-go/typecache"
)

// Client bundles the access layer: the API client plus the two pieces of
// process-wide state it consults, the record-type cache and the metadata
// engine.
type Client struct {
	API      *api.Client
	Types    *typecache.Cache
	Metadata *metadata.Engine
}

// New wires a client from configuration. The type cache is attached to the
// API client so queries against unknown record types fail fast without a
// round trip.
func New(cfg *config.Config) (*Client, error) {
	transport, err := api.NewTransport(cfg.APIURL, cfg.Token, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	apiClient := api.NewClient(transport, cfg.RetryPolicy())
	types := typecache.New(apiClient, cfg.TypeCacheTTL)
	apiClient.SetTypeValidator(types)

	return &Client{
		API:      apiClient,
		Types:    types,
		Metadata: metadata.NewEngine(apiClient),
	}, nil
}

// Warm populates the type cache ahead of the first query. Optional; the
// cache also populates lazily on first validation.
func (c *Client) Warm(ctx context.Context) error {
	return c.Types.EnsurePopulated(ctx)
}
