package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/logger"
)

// SnapshotSource reads a previously saved site list.
type SnapshotSource interface {
	LoadSites(ctx context.Context) ([]domain.Site, error)
}

// SiteIndex is the part of the registry a warm start writes to.
type SiteIndex interface {
	Count() int
	Replace(sites []domain.Site)
}

// SiteSyncer warm-starts the registry from the Redis snapshot on startup
type SiteSyncer struct {
	store  SnapshotSource
	index  SiteIndex
	logger logger.Logger
}

// NewSiteSyncer creates a new site syncer
func NewSiteSyncer(
	store SnapshotSource,
	idx SiteIndex,
	log logger.Logger,
) *SiteSyncer {
	return &SiteSyncer{
		store:  store,
		index:  idx,
		logger: log,
	}
}

// Sync loads the snapshot into an empty registry. A registry already filled
// by the backend is never overwritten with older data.
func (ss *SiteSyncer) Sync(ctx context.Context) error {
	if ss.index.Count() > 0 {
		ss.logger.Debug("registry already populated, skipping snapshot")
		return nil
	}

	ss.logger.Info("syncing sites from redis snapshot")

	sites, err := ss.store.LoadSites(ctx)
	if err != nil {
		return err
	}

	if len(sites) == 0 {
		ss.logger.Info("no sites found in redis")
		return nil
	}

	ss.index.Replace(sites)

	ss.logger.Info("synced sites from redis",
		logger.Int("count", len(sites)))

	return nil
}
