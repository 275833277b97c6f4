package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/logger"
)

const (
	// DefaultStaleAfter is how long a crawl may go without new pages before polling stops
	DefaultStaleAfter = 2 * time.Hour
)

// CrawlTracker is the registry's crawl bookkeeping.
type CrawlTracker interface {
	TrackedCrawls() []string
	RefreshStats(ctx context.Context, domainURL string) (*domain.Site, error)
	PruneStale(staleAfter time.Duration) []string
}

// CrawlMonitor polls the progress of crawls requested by this process
type CrawlMonitor struct {
	crawls     CrawlTracker
	logger     logger.Logger
	interval   time.Duration
	staleAfter time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewCrawlMonitor creates a new crawl monitor
func NewCrawlMonitor(
	crawls CrawlTracker,
	log logger.Logger,
	interval time.Duration,
	staleAfter time.Duration,
) *CrawlMonitor {
	if staleAfter == 0 {
		staleAfter = DefaultStaleAfter
	}

	return &CrawlMonitor{
		crawls:     crawls,
		logger:     log,
		interval:   interval,
		staleAfter: staleAfter,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic polling
func (cm *CrawlMonitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(cm.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cm.Poll(ctx)
			case <-cm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the crawl monitor
func (cm *CrawlMonitor) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

// Poll refreshes the stats of every tracked crawl, then drops finished or stale ones.
// It returns the number of sites successfully refreshed.
func (cm *CrawlMonitor) Poll(ctx context.Context) int {
	urls := cm.crawls.TrackedCrawls()
	if len(urls) == 0 {
		cm.logger.Debug("no crawls to poll")
		return 0
	}

	refreshed := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			return refreshed
		}

		site, err := cm.crawls.RefreshStats(ctx, u)
		if err != nil {
			cm.logger.Warn("failed to poll crawl progress",
				logger.String("domain_url", u),
				logger.Error(err))
			continue
		}
		refreshed++

		cm.logger.Debug("crawl progress",
			logger.String("domain_url", site.DomainURL),
			logger.Int("visited", site.VisitedCount),
			logger.Int("failed", len(site.FailedURLs)),
			logger.Bool("finished", site.AnalysisFinished))
	}

	if pruned := cm.crawls.PruneStale(cm.staleAfter); len(pruned) > 0 {
		cm.logger.Info("stopped polling crawls",
			logger.Int("count", len(pruned)),
			logger.String("stale_after", cm.staleAfter.String()))
	}

	return refreshed
}
