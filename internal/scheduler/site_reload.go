package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/logger"
)

// SiteSource refreshes the registry from the backend.
type SiteSource interface {
	Refresh(ctx context.Context) ([]domain.Site, error)
}

// SiteReloader handles periodic reloading of the site list
type SiteReloader struct {
	sites         SiteSource
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
}

// NewSiteReloader creates a new site reloader
func NewSiteReloader(
	sites SiteSource,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SiteReloader {
	return &SiteReloader{
		sites:         sites,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the site list once, then keeps it fresh on every tick or manual trigger.
// A failed first load is not fatal: the registry keeps whatever the snapshot gave it.
func (sr *SiteReloader) Start(ctx context.Context) error {
	if err := sr.Reload(ctx); err != nil {
		sr.logger.Warn("initial site reload failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload sites",
						logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual reload triggered")
				if err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload sites",
						logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (sr *SiteReloader) Stop() {
	sr.stopOnce.Do(func() { close(sr.stopCh) })
}

// Reload fetches the site list from the backend
func (sr *SiteReloader) Reload(ctx context.Context) error {
	sr.logger.Debug("reloading sites from backend")

	sites, err := sr.sites.Refresh(ctx)
	if err != nil {
		return err
	}

	sr.logger.Info("loaded sites from backend",
		logger.Int("count", len(sites)))
	return nil
}
