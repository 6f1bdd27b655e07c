package aggregates

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	nostrclient "github.com/tideline/tideline/internal/nostr"
)

// fetchCommentCounts counts replies per target event. A comment can be a
// structured comment referencing the root with an upper-case E tag, or a
// plain note replying with a lower-case e tag, depending on the author's
// client; both queries run in parallel and their counts are summed.
func (m *Manager) fetchCommentCounts(ctx context.Context, eventIDs []string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var structured, plain []*nostr.Event
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		events, err := m.querier.Query(gctx, []nostr.Filter{{
			Kinds: []int{nostrclient.KindComment},
			Tags:  nostr.TagMap{"E": eventIDs},
		}})
		m.log.LogRelayQuery("comments", len(events), time.Since(start), err)
		if err != nil {
			return fmt.Errorf("query comments: %w", err)
		}
		structured = events
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		events, err := m.querier.Query(gctx, []nostr.Filter{{
			Kinds: []int{nostrclient.KindNote},
			Tags:  nostr.TagMap{"e": eventIDs},
		}})
		m.log.LogRelayQuery("replies", len(events), time.Since(start), err)
		if err != nil {
			return fmt.Errorf("query replies: %w", err)
		}
		plain = events
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, comment := range structured {
		if target := firstTagValue(comment, "E"); target != "" {
			counts[target]++
		}
	}
	for _, reply := range plain {
		if target := firstTagValue(reply, "e"); target != "" {
			counts[target]++
		}
	}
	return counts, nil
}
