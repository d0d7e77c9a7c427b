package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/Sternrassler/pickup-client/pkg/cache"
	"golang.org/x/sync/errgroup"
)

// InstallReport summarizes a shell precache run.
type InstallReport struct {
	Cached []string
	Failed map[string]error
}

// Install opens the current cache and precaches the shell assets.
// Failing to open the cache is fatal. Individual asset failures are
// recorded in the report and logged but do not fail the install.
func (c *Controller) Install(ctx context.Context) (InstallReport, error) {
	report := InstallReport{Failed: make(map[string]error)}

	if len(c.config.ShellAssets) == 0 {
		return report, ErrNoShell
	}

	if err := c.store.Open(ctx, c.config.Version); err != nil {
		return report, fmt.Errorf("open cache %s: %w", c.config.Version, err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.PrecacheConcurrency)

	for _, asset := range c.config.ShellAssets {
		asset := asset
		g.Go(func() error {
			err := c.precache(gctx, asset)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				precacheTotal.WithLabelValues("failed").Inc()
				report.Failed[asset] = err
				c.logger.Warn().Err(err).Str("asset", asset).Msg("Failed to precache shell asset")
				return nil
			}
			precacheTotal.WithLabelValues("cached").Inc()
			report.Cached = append(report.Cached, asset)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}

	c.logger.Info().
		Int("cached", len(report.Cached)).
		Int("failed", len(report.Failed)).
		Msg("Shell precache complete")
	return report, nil
}

func (c *Controller) precache(ctx context.Context, asset string) error {
	target := c.resolve(asset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return err
	}
	if !cache.IsCacheableStatus(resp.StatusCode) {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return c.store.Put(ctx, c.config.Version, cache.KeyForRequest(req), entry)
}

// Activate deletes every cache whose name differs from the current version
// and then claims request handling. Deletion failures are returned after the
// claim so a later activation can finish the cleanup.
func (c *Controller) Activate(ctx context.Context) ([]string, error) {
	names, err := c.store.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}

	var deleted []string
	var errs []error
	for _, name := range names {
		if name == c.config.Version {
			continue
		}
		if _, err := c.store.DeleteCache(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete cache %s: %w", name, err))
			continue
		}
		cachesDeletedTotal.Inc()
		deleted = append(deleted, name)
	}

	c.active.Store(true)
	c.logger.Info().Strs("deleted", deleted).Msg("Controller activated")

	return deleted, errors.Join(errs...)
}
