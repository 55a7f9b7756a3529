package tle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/metrics"
)

var (
	// ErrDataUnavailable means no usable element set could be obtained from
	// the network or the cache.
	ErrDataUnavailable = errors.New("orbital elements unavailable")
	// ErrParse means element text was retrieved but the satellite could not
	// be found in it.
	ErrParse = errors.New("orbital elements unparseable")
)

// LoaderConfig selects the satellite and the refresh policy.
type LoaderConfig struct {
	NORADID         int
	Name            string
	RefreshInterval time.Duration
}

// Loader returns the element set for one satellite using a cache-first
// policy: a fresh cache file is used as is, a stale one triggers a network
// refresh, and the stale cache is still used when the refresh fails.
type Loader struct {
	cfg     LoaderConfig
	fetcher *Fetcher // nil disables network refresh
	cache   *Cache
	store   *Store
	clock   clock.Clock
	logger  *slog.Logger
}

// NewLoader creates a Loader. fetcher may be nil.
func NewLoader(cfg LoaderConfig, fetcher *Fetcher, cache *Cache, store *Store, clk clock.Clock, logger *slog.Logger) *Loader {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 12 * time.Hour
	}
	return &Loader{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		store:   store,
		clock:   clk,
		logger:  logger,
	}
}

// Load returns the element set to predict with.
func (l *Loader) Load(ctx context.Context) (ElementSet, error) {
	now := l.clock.Now()

	cached, cacheErr := l.loadCache()
	if cacheErr == nil && cached.Age(now) < l.cfg.RefreshInterval {
		l.logger.Debug("using cached elements",
			"fetched_at", cached.FetchedAt.UTC().Format(time.RFC3339),
			"age_s", int(cached.Age(now).Seconds()),
		)
		return l.publish(cached, now), nil
	}
	if cacheErr != nil && !errors.Is(cacheErr, ErrNoCache) {
		l.logger.Warn("ignoring unusable TLE cache", "dir", l.cache.Dir(), "error", cacheErr)
	}

	fresh, fetchErr := l.refresh(ctx, now)
	if fetchErr == nil {
		return l.publish(fresh, now), nil
	}

	if cacheErr == nil {
		l.logger.Warn("TLE refresh failed, using stale cache",
			"error", fetchErr,
			"age_s", int(cached.Age(now).Seconds()),
		)
		return l.publish(cached, now), nil
	}

	if errors.Is(fetchErr, ErrParse) {
		return ElementSet{}, fmt.Errorf("%w: %w", ErrDataUnavailable, fetchErr)
	}
	return ElementSet{}, fmt.Errorf("%w: no cache and refresh failed: %v", ErrDataUnavailable, fetchErr)
}

func (l *Loader) loadCache() (ElementSet, error) {
	data, ts, err := l.cache.LoadLatest()
	if err != nil {
		return ElementSet{}, err
	}
	entry, err := l.selectEntry(data)
	if err != nil {
		return ElementSet{}, err
	}
	return ElementSet{Entry: entry, FetchedAt: ts, Source: SourceCache}, nil
}

func (l *Loader) refresh(ctx context.Context, now time.Time) (ElementSet, error) {
	if l.fetcher == nil {
		return ElementSet{}, errors.New("network refresh disabled")
	}

	data, err := l.fetcher.Fetch(ctx)
	metrics.RecordTLEFetch(err)
	if err != nil {
		return ElementSet{}, err
	}

	entry, err := l.selectEntry(data)
	if err != nil {
		return ElementSet{}, err
	}

	if err := l.cache.Write(data, now); err != nil {
		l.logger.Warn("failed to write TLE cache", "dir", l.cache.Dir(), "error", err)
	}
	l.logger.Info("refreshed elements",
		"source_url", l.fetcher.SourceURL(),
		"norad_id", entry.NORADID,
		"epoch", entry.Epoch.Format(time.RFC3339),
	)
	return ElementSet{Entry: entry, FetchedAt: now, Source: SourceNetwork}, nil
}

func (l *Loader) selectEntry(data []byte) (TLEEntry, error) {
	entries, err := Parse(bytes.NewReader(data), l.logger)
	if err != nil {
		return TLEEntry{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	entry, ok := Select(entries, l.cfg.NORADID, l.cfg.Name)
	if !ok {
		return TLEEntry{}, fmt.Errorf("%w: satellite %d (%s) not found in %d entries",
			ErrParse, l.cfg.NORADID, l.cfg.Name, len(entries))
	}
	return entry, nil
}

func (l *Loader) publish(es ElementSet, now time.Time) ElementSet {
	if l.store != nil {
		l.store.Set(es)
	}
	metrics.SetTLEAge(es.Age(now))
	return es
}
