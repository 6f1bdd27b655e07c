package nostr

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/tideline/tideline/internal/config"
	"github.com/tideline/tideline/internal/relays"
)

// Querier is the event-store capability the pipeline consumes: a batched
// query routed to the active read relays
type Querier interface {
	Query(ctx context.Context, filters []nostr.Filter) ([]*nostr.Event, error)
}

// Publisher sends a signed event to the active write relays
type Publisher interface {
	Publish(ctx context.Context, event *nostr.Event) error
}

// Client provides a high-level interface for interacting with Nostr relays.
// Every query carries its own fixed timeout on top of whatever deadline the
// caller supplies; whichever fires first aborts the query.
type Client struct {
	pool         *nostr.SimplePool
	relays       *relays.Store
	queryTimeout time.Duration
}

// New creates a new Nostr client routed through the given relay store
func New(ctx context.Context, store *relays.Store, policy *config.RelayPolicy) *Client {
	timeout := 8 * time.Second
	if policy != nil && policy.QueryTimeoutMs > 0 {
		timeout = time.Duration(policy.QueryTimeoutMs) * time.Millisecond
	}
	return &Client{
		pool:         nostr.NewSimplePool(ctx),
		relays:       store,
		queryTimeout: timeout,
	}
}

// Pool returns the underlying SimplePool for advanced operations
func (c *Client) Pool() *nostr.SimplePool {
	return c.pool
}

// Query fetches events matching the filters from all read relays and
// returns them once every relay reached EOSE or the timeout expired
func (c *Client) Query(ctx context.Context, filters []nostr.Filter) ([]*nostr.Event, error) {
	urls := c.relays.ReadURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("no read relays configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	events := make([]*nostr.Event, 0)
	for relayEvent := range c.pool.SubManyEose(ctx, urls, nostr.Filters(filters)) {
		if relayEvent.Event != nil {
			events = append(events, relayEvent.Event)
		}
	}

	if err := ctx.Err(); err == context.Canceled {
		return nil, err
	}
	return events, nil
}

// FetchEvent fetches a single event by ID from the read relays
func (c *Client) FetchEvent(ctx context.Context, eventID string) (*nostr.Event, error) {
	urls := c.relays.ReadURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("no read relays configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	result := c.pool.QuerySingle(ctx, urls, nostr.Filter{IDs: []string{eventID}})
	if result == nil || result.Event == nil {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	return result.Event, nil
}

// Publish sends an event to every write relay; it succeeds if at least
// one relay accepted the event
func (c *Client) Publish(ctx context.Context, event *nostr.Event) error {
	urls := c.relays.WriteURLs()
	if len(urls) == 0 {
		return fmt.Errorf("no write relays configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	var lastErr error
	successCount := 0
	for result := range c.pool.PublishMany(ctx, urls, *event) {
		if result.Error != nil {
			lastErr = result.Error
		} else {
			successCount++
		}
	}

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("failed to publish to any relay: %w", lastErr)
	}
	return nil
}

// Close closes all relay connections
func (c *Client) Close() {
	c.pool.Close("client shutting down")
}
