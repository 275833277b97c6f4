package redis

import "strings"

const (
	// KeyPrefixSite is the prefix for one snapshotted site, keyed by SiteKey
	KeyPrefixSite = "asksite:site:"
	// KeySiteOrder is the sorted set of snapshotted site keys, scored by position
	KeySiteOrder = "asksite:sites:order"
	// KeySitesSavedAt holds the unix time of the last snapshot
	KeySitesSavedAt = "asksite:sites:saved_at"
	// KeyPrefixHistory is the prefix for cached chat history per user
	KeyPrefixHistory = "asksite:history:"
)

// SiteKey returns the Redis key for a site by its normalized key
func SiteKey(key string) string {
	return KeyPrefixSite + key
}

// HistoryKey returns the Redis key for a user's cached history
func HistoryKey(userID string) string {
	return KeyPrefixHistory + strings.TrimSpace(userID)
}
