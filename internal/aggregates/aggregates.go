package aggregates

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tideline/tideline/internal/cache"
	"github.com/tideline/tideline/internal/config"
	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/ops"
)

// Cache namespaces; a relay-generation bump invalidates all of them at once
const (
	nsZaps     = "zaps"
	nsComments = "comments"
)

// Manager runs the batched secondary queries that enrich a primary event
// set: zap totals and comment counts. Results are cached per batch with a
// short TTL, and concurrent callers for the same batch share one in-flight
// relay query instead of issuing duplicates.
type Manager struct {
	querier    nostrclient.Querier
	cache      cache.Store
	generation func() uint64
	log        *ops.Logger

	zapGroup     singleflight.Group
	commentGroup singleflight.Group

	zapTTL     time.Duration
	commentTTL time.Duration
	timeout    time.Duration
}

// NewManager creates an aggregates manager
func NewManager(q nostrclient.Querier, cs cache.Store, generation func() uint64, cfg *config.Config, log *ops.Logger) *Manager {
	if generation == nil {
		generation = func() uint64 { return 0 }
	}
	timeout := 5 * time.Second
	if cfg.Relays.Policy.SecondaryTimeoutMs > 0 {
		timeout = time.Duration(cfg.Relays.Policy.SecondaryTimeoutMs) * time.Millisecond
	}
	return &Manager{
		querier:    q,
		cache:      cs,
		generation: generation,
		log:        log.WithComponent("aggregates"),
		zapTTL:     time.Duration(cfg.Caching.TTL.Zaps) * time.Second,
		commentTTL: time.Duration(cfg.Caching.TTL.Comments) * time.Second,
		timeout:    timeout,
	}
}

// batchKey is the literal id list; callers pass a stable ordering so
// identical batches share cache entries and in-flight queries
func batchKey(eventIDs []string) string {
	return strings.Join(eventIDs, ",")
}

// ZapTotals returns the summed zap amount in sats for each of the given
// event IDs. Events with no receipts are absent from the map; callers
// treat absence as zero.
func (m *Manager) ZapTotals(ctx context.Context, eventIDs []string) (map[string]int64, error) {
	if len(eventIDs) == 0 {
		return map[string]int64{}, nil
	}

	key := batchKey(eventIDs)
	gen := m.generation()

	if data, ok := m.cache.Get(ctx, nsZaps, key, gen); ok {
		var totals map[string]int64
		if err := json.Unmarshal(data, &totals); err == nil {
			m.log.LogCacheOperation(nsZaps, key, true)
			return totals, nil
		}
	}

	result, err, _ := m.zapGroup.Do(key, func() (interface{}, error) {
		totals, err := m.fetchZapTotals(ctx, eventIDs)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(totals); err == nil {
			m.cache.Set(ctx, nsZaps, key, gen, data, m.zapTTL)
		}
		return totals, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]int64), nil
}

// CommentCounts returns the number of comments per event ID, counting both
// structured comments and plain-note replies.
func (m *Manager) CommentCounts(ctx context.Context, eventIDs []string) (map[string]int, error) {
	if len(eventIDs) == 0 {
		return map[string]int{}, nil
	}

	key := batchKey(eventIDs)
	gen := m.generation()

	if data, ok := m.cache.Get(ctx, nsComments, key, gen); ok {
		var counts map[string]int
		if err := json.Unmarshal(data, &counts); err == nil {
			m.log.LogCacheOperation(nsComments, key, true)
			return counts, nil
		}
	}

	result, err, _ := m.commentGroup.Do(key, func() (interface{}, error) {
		counts, err := m.fetchCommentCounts(ctx, eventIDs)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(counts); err == nil {
			m.cache.Set(ctx, nsComments, key, gen, data, m.commentTTL)
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]int), nil
}
