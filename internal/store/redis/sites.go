package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SaveSites replaces the snapshotted site list, keeping registry order.
// Sites dropped since the last snapshot are deleted.
func (s *Store) SaveSites(ctx context.Context, sites []domain.Site) error {
	previous, err := s.client.ZRange(ctx, KeySiteOrder, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to read site order: %w", err)
	}

	keep := make(map[string]struct{}, len(sites))
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, KeySiteOrder)

	for i := range sites {
		key := domain.SiteKey(sites[i].DomainURL)
		if key == "" {
			continue
		}
		if _, dup := keep[key]; dup {
			continue
		}
		keep[key] = struct{}{}

		data, err := json.Marshal(&sites[i])
		if err != nil {
			pipe.Discard()
			return fmt.Errorf("failed to marshal site %s: %w", key, err)
		}
		pipe.Set(ctx, SiteKey(key), data, s.ttl)
		pipe.ZAdd(ctx, KeySiteOrder, redis.Z{Score: float64(i), Member: key})
	}

	for _, key := range previous {
		if _, ok := keep[key]; !ok {
			pipe.Del(ctx, SiteKey(key))
		}
	}

	pipe.Expire(ctx, KeySiteOrder, s.ttl)
	pipe.Set(ctx, KeySitesSavedAt, strconv.FormatInt(time.Now().Unix(), 10), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save sites: %w", err)
	}
	return nil
}

// LoadSites returns the snapshotted site list in saved order.
// An empty or expired snapshot yields an empty slice.
func (s *Store) LoadSites(ctx context.Context) ([]domain.Site, error) {
	keys, err := s.client.ZRange(ctx, KeySiteOrder, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.Site{}, nil
		}
		return nil, fmt.Errorf("failed to get site order: %w", err)
	}
	if len(keys) == 0 {
		return []domain.Site{}, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = SiteKey(k)
	}

	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sites: %w", err)
	}

	sites := make([]domain.Site, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// expired independently of the order set
			continue
		}
		var site domain.Site
		if err := json.Unmarshal([]byte(raw), &site); err != nil {
			continue
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// SavedAt returns when the site snapshot was last written, or zero time.
func (s *Store) SavedAt(ctx context.Context) (time.Time, error) {
	raw, err := s.client.Get(ctx, KeySitesSavedAt).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to get snapshot time: %w", err)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot time %q: %w", raw, err)
	}
	return time.Unix(sec, 0), nil
}
