// Package cache provides the report cache used to serve dashboard and
// daily summaries without recomputing aggregates on every request.
package cache

import (
	"context"
	"time"
)

// ReportCache stores serialized report payloads keyed per tenant.
// Implementations must be safe for concurrent use.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// Key builds a namespaced cache key for one tenant's report.
func Key(userID, report string) string {
	return "reports:" + userID + ":" + report
}

// Noop satisfies ReportCache while caching nothing. Used when no Redis
// address is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) {}
func (Noop) Invalidate(context.Context, ...string)              {}
