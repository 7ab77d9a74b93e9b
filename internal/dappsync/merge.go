// Package dappsync merges client dApp favorites/history into the wallet
// profile with last-write-wins semantics keyed by normalized URL.
package dappsync

import (
	"sort"
	"strings"
	"time"

	"github.com/statusmvp/wallet-auth/internal/identity"
)

// Collection caps; merged lists keep the newest entries.
const (
	MaxFavorites = 500
	MaxHistory   = 1000
)

// Merger applies LWW merges. The clock is injectable for tests.
type Merger struct {
	now func() int64
}

// New creates a Merger using wall-clock unix milliseconds.
func New() *Merger {
	return &Merger{now: func() int64 { return time.Now().UnixMilli() }}
}

// NewWithClock creates a Merger with a fixed clock, for tests.
func NewWithClock(now func() int64) *Merger {
	return &Merger{now: now}
}

// MergeFavorites folds incoming favorites into current. Ties on updatedAt
// favor the incoming item; the watermark absorbs every item timestamp plus
// the caller-supplied incomingUpdatedAt when present.
func (m *Merger) MergeFavorites(current identity.SyncFavorites, incoming []identity.FavoriteItem, incomingUpdatedAt *int64) identity.SyncFavorites {
	merged := map[string]identity.FavoriteItem{}
	order := []string{}
	maxUpdatedAt := current.UpdatedAt

	for _, item := range current.Items {
		norm, ok := m.normalizeFavorite(item)
		if !ok {
			continue
		}
		key := urlKey(norm.URL)
		if _, seen := merged[key]; !seen {
			order = append(order, key)
		}
		merged[key] = norm
		maxUpdatedAt = maxInt64(maxUpdatedAt, norm.UpdatedAt)
	}
	for _, item := range incoming {
		norm, ok := m.normalizeFavorite(item)
		if !ok {
			continue
		}
		key := urlKey(norm.URL)
		existing, seen := merged[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || norm.UpdatedAt >= existing.UpdatedAt {
			merged[key] = norm
		}
		maxUpdatedAt = maxInt64(maxUpdatedAt, norm.UpdatedAt)
	}
	if incomingUpdatedAt != nil {
		maxUpdatedAt = maxInt64(maxUpdatedAt, *incomingUpdatedAt)
	}

	items := make([]identity.FavoriteItem, 0, len(order))
	for _, key := range order {
		items = append(items, merged[key])
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].UpdatedAt > items[j].UpdatedAt })
	if len(items) > MaxFavorites {
		items = items[:MaxFavorites]
	}
	return identity.SyncFavorites{Items: items, UpdatedAt: maxUpdatedAt}
}

// MergeHistory folds incoming history into current, same rules as favorites.
func (m *Merger) MergeHistory(current identity.SyncHistory, incoming []identity.HistoryItem, incomingUpdatedAt *int64) identity.SyncHistory {
	merged := map[string]identity.HistoryItem{}
	order := []string{}
	maxUpdatedAt := current.UpdatedAt

	for _, item := range current.Items {
		norm, ok := m.normalizeHistory(item)
		if !ok {
			continue
		}
		key := urlKey(norm.URL)
		if _, seen := merged[key]; !seen {
			order = append(order, key)
		}
		merged[key] = norm
		maxUpdatedAt = maxInt64(maxUpdatedAt, norm.UpdatedAt)
	}
	for _, item := range incoming {
		norm, ok := m.normalizeHistory(item)
		if !ok {
			continue
		}
		key := urlKey(norm.URL)
		existing, seen := merged[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || norm.UpdatedAt >= existing.UpdatedAt {
			merged[key] = norm
		}
		maxUpdatedAt = maxInt64(maxUpdatedAt, norm.UpdatedAt)
	}
	if incomingUpdatedAt != nil {
		maxUpdatedAt = maxInt64(maxUpdatedAt, *incomingUpdatedAt)
	}

	items := make([]identity.HistoryItem, 0, len(order))
	for _, key := range order {
		items = append(items, merged[key])
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].UpdatedAt > items[j].UpdatedAt })
	if len(items) > MaxHistory {
		items = items[:MaxHistory]
	}
	return identity.SyncHistory{Items: items, UpdatedAt: maxUpdatedAt}
}

// normalizeFavorite drops blank URLs, trims the rest, and backfills a zero
// updatedAt with the current clock. Tombstones (deletedAt set) are carried.
func (m *Merger) normalizeFavorite(item identity.FavoriteItem) (identity.FavoriteItem, bool) {
	if strings.TrimSpace(item.URL) == "" {
		return identity.FavoriteItem{}, false
	}
	if item.UpdatedAt <= 0 {
		item.UpdatedAt = m.now()
	}
	item.URL = strings.TrimSpace(item.URL)
	item.Name = strings.TrimSpace(item.Name)
	item.IconURL = strings.TrimSpace(item.IconURL)
	return item, true
}

func (m *Merger) normalizeHistory(item identity.HistoryItem) (identity.HistoryItem, bool) {
	if strings.TrimSpace(item.URL) == "" {
		return identity.HistoryItem{}, false
	}
	if item.UpdatedAt <= 0 {
		item.UpdatedAt = m.now()
	}
	if item.VisitedAt <= 0 {
		item.VisitedAt = item.UpdatedAt
	}
	item.URL = strings.TrimSpace(item.URL)
	item.Title = strings.TrimSpace(item.Title)
	item.IconURL = strings.TrimSpace(item.IconURL)
	return item, true
}

// urlKey is the LWW identity of an item: trimmed, lowercased URL.
func urlKey(url string) string {
	return strings.ToLower(strings.TrimSpace(url))
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
