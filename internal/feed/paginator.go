package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nbd-wtf/go-nostr"

	nostrclient "github.com/tideline/tideline/internal/nostr"
)

// Paginator issues cursor-based backward-in-time queries against the event
// store. The first fetch has no cursor; each subsequent fetch uses the
// created_at of the previous page's last event minus one second, so boundary
// events are not fetched twice. An empty page ends the stream.
type Paginator struct {
	mu      sync.Mutex
	querier nostrclient.Querier
	base    nostr.Filter
	limit   int

	// generation guards against a relay-set change racing an in-flight
	// fetch: a page fetched under an older generation is discarded
	generation func() uint64

	pages   [][]*nostr.Event
	cursor  *nostr.Timestamp
	done    bool
	started bool
}

func newPaginator(q nostrclient.Querier, base nostr.Filter, limit int, generation func() uint64) *Paginator {
	if generation == nil {
		generation = func() uint64 { return 0 }
	}
	return &Paginator{
		querier:    q,
		base:       base,
		limit:      limit,
		generation: generation,
	}
}

// NewFrontPage paginates the primary feed: thread posts plus top-level notes
func NewFrontPage(q nostrclient.Querier, limit int, generation func() uint64) *Paginator {
	return newPaginator(q, nostr.Filter{
		Kinds: []int{nostrclient.KindThread, nostrclient.KindNote},
	}, limit, generation)
}

// NewTagFeed paginates thread posts carrying the given hashtag
func NewTagFeed(q nostrclient.Querier, tag string, limit int, generation func() uint64) *Paginator {
	return newPaginator(q, nostr.Filter{
		Kinds: []int{nostrclient.KindThread},
		Tags:  nostr.TagMap{"t": []string{tag}},
	}, limit, generation)
}

// NewAuthorFeed paginates thread posts by a single author
func NewAuthorFeed(q nostrclient.Querier, pubkey string, limit int, generation func() uint64) *Paginator {
	return newPaginator(q, nostr.Filter{
		Kinds:   []int{nostrclient.KindThread},
		Authors: []string{pubkey},
	}, limit, generation)
}

// WithCursor seeds the paginator so its next fetch resumes strictly below
// the given timestamp. Used by stateless callers that carry the cursor
// between requests.
func (p *Paginator) WithCursor(until nostr.Timestamp) *Paginator {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = &until
	p.started = true
	return p
}

// Cursor returns the timestamp the next fetch would resume below
func (p *Paginator) Cursor() (nostr.Timestamp, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor == nil {
		return 0, false
	}
	return *p.cursor, true
}

// HasMore reports whether another page may exist
func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.done
}

// Pages returns the accumulated pages in fetch order
func (p *Paginator) Pages() [][]*nostr.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]*nostr.Event, len(p.pages))
	copy(out, p.pages)
	return out
}

// Events returns the merged, deduplicated accumulation of all fetched pages
func (p *Paginator) Events() []*nostr.Event {
	return Merge(p.Pages())
}

// Reset drops all accumulated state so the next fetch starts from the newest
// events again
func (p *Paginator) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = nil
	p.cursor = nil
	p.done = false
	p.started = false
}

// FetchNext fetches the next page, appends it to the accumulated state and
// returns it. After the stream ends it returns an empty page without
// querying the relays again.
func (p *Paginator) FetchNext(ctx context.Context) ([]*nostr.Event, error) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return nil, nil
	}
	filter := p.base
	filter.Limit = p.limit
	if p.started && p.cursor != nil {
		until := *p.cursor
		filter.Until = &until
	}
	gen := p.generation()
	p.mu.Unlock()

	raw, err := p.querier.Query(ctx, []nostr.Filter{filter})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	// Relays interleave arbitrarily; order the page newest-first so the
	// cursor lands on the oldest event of the page
	sort.SliceStable(raw, func(i, j int) bool {
		return raw[i].CreatedAt > raw[j].CreatedAt
	})

	page := make([]*nostr.Event, 0, len(raw))
	for _, ev := range raw {
		if isReply(ev) {
			continue
		}
		page = append(page, ev)
	}
	// Overlapping relays return the same event more than once per page
	page = Merge([][]*nostr.Event{page})

	p.mu.Lock()
	defer p.mu.Unlock()

	// A superseded fetch must not corrupt the accumulated state
	if p.generation() != gen {
		return nil, context.Canceled
	}

	p.started = true
	if len(page) == 0 {
		p.done = true
		return nil, nil
	}

	next := page[len(page)-1].CreatedAt - 1
	p.cursor = &next
	p.pages = append(p.pages, page)
	return page, nil
}

// isReply reports whether a plain note references another event, either via
// a marked NIP-10 reply/root tag or, for older clients, any bare e tag.
// Thread posts are always top-level and never excluded.
func isReply(ev *nostr.Event) bool {
	if ev.Kind != nostrclient.KindNote {
		return false
	}
	for _, tag := range ev.Tags {
		if len(tag) < 2 || tag[0] != "e" {
			continue
		}
		if len(tag) >= 4 && (tag[3] == "reply" || tag[3] == "root") {
			return true
		}
		// Bare e tag without marker: treated as a reply in the older
		// positional convention
		return true
	}
	return false
}
