// Package docsearch is an embeddable multi-tenant full-text search engine
// over schemaless JSON documents.
//
// A Client owns a document store and a candidate cache. Queries rank a
// bounded window of each tenant's most recently updated documents.
//
//	c, err := docsearch.New(ctx, docsearch.WithSQLite("docs.db"))
//	...
//	page, err := c.Tenant("acme").Search("hello").Limit(10).Do(ctx)
package docsearch

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docsearch/internal/app"
	"github.com/kailas-cloud/docsearch/internal/config"
	healthuc "github.com/kailas-cloud/docsearch/internal/usecase/health"
)

// Client is the docsearch entry point.
type Client struct {
	app *app.App
}

// New opens the configured backends and applies the schema unless
// WithoutMigrations is given.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg config.Config
	cc := &clientConfig{migrate: true}
	for _, o := range opts {
		o.apply(&cfg, cc)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("docsearch: %w", err)
	}

	a, err := app.New(ctx, &cfg, cc.logger)
	if err != nil {
		return nil, fmt.Errorf("docsearch: %w", err)
	}

	c := &Client{app: a}
	if cc.migrate {
		if res := c.Migrate(ctx, false); !res.Success {
			_ = a.Close()
			return nil, fmt.Errorf("docsearch: migrate %s: %s", res.Backend, res.Error)
		}
	}
	return c, nil
}

// Close releases all resources.
func (c *Client) Close() error {
	return c.app.Close()
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.app.Store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Healthy reports whether the store and cache respond. A failing cache
// degrades queries but does not make the client unhealthy.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.app.Health.Check(ctx).Status != healthuc.Unhealthy
}

// Migrate applies or reverts the backend schema.
func (c *Client) Migrate(ctx context.Context, down bool) MigrationResult {
	return c.app.Documents.Migrate(ctx, down)
}

// Documents returns the document write and lookup service.
func (c *Client) Documents() *DocumentService {
	return &DocumentService{docs: c.app.Documents, bulk: c.app.Bulk}
}

// Tenant returns the query service scoped to one tenant.
func (c *Client) Tenant(name string) *TenantService {
	return &TenantService{tenant: name, svc: c.app.Search}
}
