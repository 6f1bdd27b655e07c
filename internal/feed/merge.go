package feed

import "github.com/nbd-wtf/go-nostr"

// Merge flattens pages in fetch order and drops duplicate events, keeping
// each event at the position of its first occurrence. Adjacent paginated
// queries and overlapping relay sets both produce duplicates; events
// without an ID are dropped outright.
func Merge(pages [][]*nostr.Event) []*nostr.Event {
	seen := make(map[string]struct{})
	merged := make([]*nostr.Event, 0)
	for _, page := range pages {
		for _, ev := range page {
			if ev == nil || ev.ID == "" {
				continue
			}
			if _, ok := seen[ev.ID]; ok {
				continue
			}
			seen[ev.ID] = struct{}{}
			merged = append(merged, ev)
		}
	}
	return merged
}
