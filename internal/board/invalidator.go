package board

import (
	"context"
	"log/slog"
	"time"

	"github.com/imroc/req/v3"

	"github.com/syncforge/themesync/internal/version"
)

const invalidateTimeout = 5 * time.Second

// CacheInvalidator notifies the board application that a stylesheet changed
// so it can rebuild its cached CSS. Every call is best-effort: the board may
// be down, and a failed notification must never fail the import that
// triggered it.
type CacheInvalidator struct {
	client *req.Client
}

// NewCacheInvalidator creates an invalidator targeting the board's base URL.
func NewCacheInvalidator(baseURL string) *CacheInvalidator {
	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(invalidateTimeout).
		SetUserAgent("ThemeSync/" + version.Version)

	return &CacheInvalidator{client: client}
}

// StylesheetChanged fires the cache-invalidation notification for one
// theme/stylesheet pair. Errors are logged and swallowed.
func (ci *CacheInvalidator) StylesheetChanged(ctx context.Context, theme, name string) {
	res, err := ci.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"theme":      theme,
			"stylesheet": name,
		}).
		Post("/admin/cache/stylesheet")

	if err != nil {
		slog.Warn("cache invalidation failed", "theme", theme, "stylesheet", name, "error", err)
		return
	}
	if res.IsErrorState() {
		slog.Warn("cache invalidation rejected", "theme", theme, "stylesheet", name, "status", res.StatusCode)
		return
	}
	slog.Debug("cache invalidated", "theme", theme, "stylesheet", name)
}
