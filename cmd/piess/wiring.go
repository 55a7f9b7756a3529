package main

import (
	"context"
	"log/slog"

	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/config"
	"github.com/CPowerMav/PieSS/internal/geo"
	"github.com/CPowerMav/PieSS/internal/scheduler"
	"github.com/CPowerMav/PieSS/internal/tle"
	"github.com/CPowerMav/PieSS/internal/visibility"
)

func newLoader(cfg config.TLEConfig, clk clock.Clock, logger *slog.Logger) *tle.Loader {
	var fetcher *tle.Fetcher
	if cfg.Fetch {
		fetcher = tle.NewFetcher(cfg.SourceURL, logger, cfg.ExtraURLs...).WithTimeout(cfg.Timeout)
	}
	logger.Info("TLE config",
		"norad_id", cfg.NORADID,
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraURLs,
		"fetch", cfg.Fetch,
		"cache_dir", cfg.CacheDir,
	)
	return tle.NewLoader(
		tle.LoaderConfig{NORADID: cfg.NORADID, Name: cfg.Name, RefreshInterval: cfg.RefreshInterval},
		fetcher,
		tle.NewCache(cfg.CacheDir, cfg.MaxFiles),
		tle.NewStore(),
		clk,
		logger,
	)
}

func newScheduler(cfg config.Config, logger *slog.Logger) *scheduler.Scheduler {
	filter := visibility.NewFilter(cfg.Visibility, logger)
	return scheduler.New(filter, cfg.Search.Horizon, logger)
}

// resolveLocation returns the configured site, or the detected one when
// detection is on. Detection failures fall back to the configured site.
func resolveLocation(ctx context.Context, cfg config.LocationConfig, logger *slog.Logger) geo.Location {
	if !cfg.Detect {
		logger.Info("using configured location", "location", cfg.Location.String())
		return cfg.Location
	}
	return geo.NewLocator(cfg.Timeout, logger, geo.DefaultProviders()...).LocateOrDefault(ctx, cfg.Location)
}
