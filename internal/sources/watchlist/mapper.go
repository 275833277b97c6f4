package watchlist

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/asksite/internal/domain"
)

// MapEntries converts watch-list entries into crawl requests.
// Invalid entries are reported and skipped; duplicates (same SiteKey) keep the first one.
func MapEntries(config Config) ([]domain.SiteInfo, []error) {
	infos := make([]domain.SiteInfo, 0, len(config.Sites))
	seen := make(map[string]struct{}, len(config.Sites))
	var errs []error

	for i, e := range config.Sites {
		info, err := mapEntry(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}

		key := domain.SiteKey(info.DomainURL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		infos = append(infos, info)
	}

	return infos, errs
}

func mapEntry(e Entry) (domain.SiteInfo, error) {
	if strings.TrimSpace(e.URL) == "" {
		return domain.SiteInfo{}, fmt.Errorf("%w: url is empty", domain.ErrInvalidURL)
	}

	info, err := domain.DeriveSiteInfoFromURL(e.URL)
	if err != nil {
		return domain.SiteInfo{}, err
	}

	if name := strings.TrimSpace(e.HostName); name != "" {
		info.HostName = name
	}
	if limit := strings.TrimSpace(e.DomainLimit); limit != "" {
		info.DomainLimit = strings.TrimPrefix(strings.TrimPrefix(limit, "https://"), "http://")
	}

	return info, nil
}
