package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/gateway"
	"github.com/MrSnakeDoc/asksite/internal/logger"
	"github.com/MrSnakeDoc/asksite/internal/metrics"
)

// Backend is the subset of the gateway the registry calls.
type Backend interface {
	Crawl(ctx context.Context, info domain.SiteInfo) (gateway.CrawlReceipt, error)
	ListWebsites(ctx context.Context) ([]domain.Site, error)
	GetWebsiteInfo(ctx context.Context, domainURL string) (domain.SiteStats, error)
}

// Snapshotter persists the site list after each successful refresh. Optional.
type Snapshotter interface {
	SaveSites(ctx context.Context, sites []domain.Site) error
}

// crawlJob tracks a crawl requested by this process until it finishes or goes stale.
type crawlJob struct {
	site        *domain.Site
	requestedAt time.Time
	lastGrowth  time.Time // last time VisitedCount increased
}

// Registry is the in-memory set of known sites.
//
// It is the only component allowed to request a crawl, and the only writer
// of its site set. Refresh replaces the set wholesale; crawls requested here
// are tracked separately so a refresh that does not list them yet cannot
// reopen the door to a duplicate request.
type Registry struct {
	mu          sync.RWMutex
	sites       map[string]*domain.Site // SiteKey -> Site
	order       []string                // SiteKeys in backend order
	crawls      map[string]*crawlJob    // SiteKey -> job
	lastRefresh time.Time

	backend  Backend
	snapshot Snapshotter
	logger   logger.Logger
	now      func() time.Time
}

func New(backend Backend, snapshot Snapshotter, log logger.Logger) *Registry {
	return &Registry{
		sites:    make(map[string]*domain.Site),
		crawls:   make(map[string]*crawlJob),
		backend:  backend,
		snapshot: snapshot,
		logger:   log.With(logger.String("component", "registry")),
		now:      time.Now,
	}
}

// Register requests a crawl for info unless the same (domain URL, host name)
// pair is already known, in which case it fails with domain.ErrAlreadyAnalyzed
// without touching the network.
func (r *Registry) Register(ctx context.Context, info domain.SiteInfo) (gateway.CrawlReceipt, error) {
	info.DomainURL = domain.AddHTTPS(info.DomainURL)
	if info.DomainURL == "" {
		return gateway.CrawlReceipt{}, fmt.Errorf("register: %w", domain.ErrInvalidURL)
	}
	if info.HostName == "" || info.DomainLimit == "" {
		derived, err := domain.DeriveSiteInfoFromURL(info.DomainURL)
		if err != nil {
			return gateway.CrawlReceipt{}, fmt.Errorf("register: %w", err)
		}
		if info.HostName == "" {
			info.HostName = derived.HostName
		}
		if info.DomainLimit == "" {
			info.DomainLimit = derived.DomainLimit
		}
	}
	key := domain.SiteKey(info.DomainURL)

	// Reserve under the lock so concurrent requests for one site issue one call.
	r.mu.Lock()
	if r.isKnownLocked(key, info.HostName) {
		r.mu.Unlock()
		r.logger.Info("crawl skipped, site already analyzed",
			logger.String("domain_url", info.DomainURL),
			logger.String("host_name", info.HostName))
		return gateway.CrawlReceipt{}, domain.ErrAlreadyAnalyzed
	}
	now := r.now()
	job := &crawlJob{
		site: &domain.Site{
			DomainURL:   info.DomainURL,
			HostName:    info.HostName,
			HostLogo:    domain.FaviconURL(info.DomainURL),
			DomainLimit: info.DomainLimit,
			CrawlTime:   now,
		},
		requestedAt: now,
		lastGrowth:  now,
	}
	r.crawls[key] = job
	tracked := len(r.crawls)
	r.mu.Unlock()

	receipt, err := r.backend.Crawl(ctx, info)
	if err != nil {
		r.mu.Lock()
		// Another request for the key may have replaced the reservation.
		if r.crawls[key] == job {
			delete(r.crawls, key)
		}
		tracked = len(r.crawls)
		r.mu.Unlock()
		metrics.CrawlsTracked.Set(float64(tracked))
		return gateway.CrawlReceipt{}, err
	}

	metrics.CrawlsTracked.Set(float64(tracked))
	r.logger.Info("crawl requested",
		logger.String("domain_url", info.DomainURL),
		logger.String("host_name", info.HostName),
		logger.String("domain_limit", info.DomainLimit))
	return receipt, nil
}

func (r *Registry) isKnownLocked(key, hostName string) bool {
	if s, ok := r.sites[key]; ok && strings.EqualFold(s.HostName, hostName) {
		return true
	}
	if job, ok := r.crawls[key]; ok && strings.EqualFold(job.site.HostName, hostName) {
		return true
	}
	return false
}

// Refresh replaces the known sites with the backend's list (last write wins)
// and returns the new set.
func (r *Registry) Refresh(ctx context.Context) ([]domain.Site, error) {
	sites, err := r.backend.ListWebsites(ctx)
	if err != nil {
		return nil, err
	}

	r.Replace(sites)

	if r.snapshot != nil {
		if err := r.snapshot.SaveSites(ctx, sites); err != nil {
			r.logger.Warn("failed to save site snapshot", logger.Error(err))
		}
	}

	return r.Sites(), nil
}

// Replace installs sites as the whole known set without a backend call.
// Tracked crawls the list reports as finished stop being tracked.
func (r *Registry) Replace(sites []domain.Site) {
	r.mu.Lock()

	r.sites = make(map[string]*domain.Site, len(sites))
	r.order = make([]string, 0, len(sites))
	for i := range sites {
		key := domain.SiteKey(sites[i].DomainURL)
		if _, dup := r.sites[key]; !dup {
			r.order = append(r.order, key)
		}
		r.sites[key] = sites[i].Clone()

		if sites[i].AnalysisFinished {
			delete(r.crawls, key)
		}
	}
	r.lastRefresh = r.now()
	count, tracked := len(r.sites), len(r.crawls)
	r.mu.Unlock()

	metrics.RegistrySites.Set(float64(count))
	metrics.CrawlsTracked.Set(float64(tracked))
	r.logger.Debug("site list replaced", logger.Int("count", count))
}

// Lookup returns the site for domainURL, including crawls requested here that
// the backend does not list yet, or nil.
func (r *Registry) Lookup(domainURL string) *domain.Site {
	key := domain.SiteKey(domainURL)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sites[key]; ok {
		return s.Clone()
	}
	if job, ok := r.crawls[key]; ok {
		return job.site.Clone()
	}
	return nil
}

// Sites returns the known sites in backend order.
func (r *Registry) Sites() []domain.Site {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Site, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.sites[key].Clone())
	}
	return out
}

// Count returns the number of known sites.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sites)
}

// LastRefresh returns when the site set was last replaced.
func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lastRefresh
}

// RefreshStats polls the crawl progress of one site and merges it in.
func (r *Registry) RefreshStats(ctx context.Context, domainURL string) (*domain.Site, error) {
	domainURL = domain.AddHTTPS(domainURL)
	stats, err := r.backend.GetWebsiteInfo(ctx, domainURL)
	if err != nil {
		return nil, err
	}

	key := domain.SiteKey(domainURL)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	site, ok := r.sites[key]
	if !ok {
		if job, tracked := r.crawls[key]; tracked {
			site = job.site
		} else {
			site = &domain.Site{DomainURL: domainURL, HostLogo: domain.FaviconURL(domainURL)}
			if stats.CompanyName == "" {
				if derived, err := domain.DeriveSiteInfoFromURL(domainURL); err == nil {
					site.HostName = derived.HostName
				}
			}
			r.sites[key] = site
			r.order = append(r.order, key)
			metrics.RegistrySites.Set(float64(len(r.sites)))
		}
	}

	if job, tracked := r.crawls[key]; tracked {
		if stats.VisitedCount > job.site.VisitedCount {
			job.lastGrowth = now
		}
		if job.site != site {
			job.site.ApplyStats(stats)
		}
	}
	site.ApplyStats(stats)

	return site.Clone(), nil
}

// TrackedCrawls returns the domain URLs of crawls still being tracked.
func (r *Registry) TrackedCrawls() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.crawls))
	for _, job := range r.crawls {
		out = append(out, job.site.DomainURL)
	}
	return out
}

// PruneStale stops tracking crawls whose page count has not grown within
// staleAfter, and crawls the registry now knows as finished. It returns the
// domain URLs it dropped.
func (r *Registry) PruneStale(staleAfter time.Duration) []string {
	now := r.now()

	r.mu.Lock()
	var dropped []string
	for key, job := range r.crawls {
		finished := false
		if s, ok := r.sites[key]; ok && s.AnalysisFinished {
			finished = true
		}
		if finished || now.Sub(job.lastGrowth) >= staleAfter {
			dropped = append(dropped, job.site.DomainURL)
			delete(r.crawls, key)
		}
	}
	tracked := len(r.crawls)
	r.mu.Unlock()

	metrics.CrawlsTracked.Set(float64(tracked))
	return dropped
}
