package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/gateway"
	"github.com/MrSnakeDoc/asksite/internal/logger"
	"github.com/MrSnakeDoc/asksite/internal/sources/watchlist"
)

// Registrar requests crawls for sites the registry does not know yet.
type Registrar interface {
	Register(ctx context.Context, info domain.SiteInfo) (gateway.CrawlReceipt, error)
}

// WatchlistResult summarizes one pass over the watch-list.
type WatchlistResult struct {
	Requested int
	Known     int
	Failed    int
}

// WatchlistSyncer requests crawls for every watch-list entry, on start and on file change
type WatchlistSyncer struct {
	loader   *watchlist.Loader
	sites    Registrar
	logger   logger.Logger
	changes  <-chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatchlistSyncer creates a new watch-list syncer. changes may be nil,
// in which case the file is only read on start.
func NewWatchlistSyncer(
	file string,
	sites Registrar,
	log logger.Logger,
	changes <-chan struct{},
) *WatchlistSyncer {
	return &WatchlistSyncer{
		loader:  watchlist.NewLoader(file),
		sites:   sites,
		logger:  log,
		changes: changes,
		stopCh:  make(chan struct{}),
	}
}

// Start syncs immediately, then again on every file change
func (ws *WatchlistSyncer) Start(ctx context.Context) error {
	if _, err := ws.Sync(ctx); err != nil {
		return fmt.Errorf("initial watch-list sync failed: %w", err)
	}

	if ws.changes == nil {
		return nil
	}

	go func() {
		for {
			select {
			case _, ok := <-ws.changes:
				if !ok {
					return
				}
				ws.logger.Info("watch-list changed")
				if _, err := ws.Sync(ctx); err != nil {
					ws.logger.Error("failed to sync watch-list",
						logger.Error(err))
				}
			case <-ws.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the syncer
func (ws *WatchlistSyncer) Stop() {
	ws.stopOnce.Do(func() { close(ws.stopCh) })
}

// Sync loads the watch-list and registers each entry. Sites that are already
// analyzed or already being crawled are counted as known, not as failures.
func (ws *WatchlistSyncer) Sync(ctx context.Context) (WatchlistResult, error) {
	config, err := ws.loader.Load()
	if err != nil {
		return WatchlistResult{}, err
	}

	infos, errs := watchlist.MapEntries(config)
	for _, err := range errs {
		ws.logger.Warn("skipping watch-list entry",
			logger.String("file", ws.loader.Path()),
			logger.Error(err))
	}

	res := WatchlistResult{Failed: len(errs)}
	for _, info := range infos {
		_, err := ws.sites.Register(ctx, info)
		switch {
		case err == nil:
			res.Requested++
		case errors.Is(err, domain.ErrAlreadyAnalyzed):
			res.Known++
		default:
			res.Failed++
			ws.logger.Warn("failed to request crawl for watch-list entry",
				logger.String("domain_url", info.DomainURL),
				logger.Error(err))
		}
	}

	ws.logger.Info("watch-list synced",
		logger.Int("requested", res.Requested),
		logger.Int("known", res.Known),
		logger.Int("failed", res.Failed))

	return res, nil
}
