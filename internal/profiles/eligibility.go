package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/singleflight"

	"github.com/tideline/tideline/internal/cache"
	"github.com/tideline/tideline/internal/config"
	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/ops"
)

const nsEligibility = "eligibility"

// Profile is the parsed content of a profile-metadata event. Malformed
// content parses to the zero Profile, never to an error.
type Profile struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	About       string `json:"about"`
	Picture     string `json:"picture"`
	NIP05       string `json:"nip05"`
	Lud16       string `json:"lud16"`
	Lud06       string `json:"lud06"`
}

// Zappable reports whether the profile carries a lightning address in
// either recognized field
func (p Profile) Zappable() bool {
	return p.Lud16 != "" || p.Lud06 != ""
}

// BestName picks a display name: display_name, then name, then nip05,
// then the truncated pubkey
func (p Profile) BestName(pubkey string) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Name != "" {
		return p.Name
	}
	if p.NIP05 != "" {
		return p.NIP05
	}
	if len(pubkey) > 16 {
		return pubkey[:8] + "..." + pubkey[len(pubkey)-8:]
	}
	return pubkey
}

// Service resolves author profiles and zap eligibility via batched
// profile-metadata queries. Results are cached per author set with a
// short TTL since eligibility changes rarely.
type Service struct {
	querier    nostrclient.Querier
	cache      cache.Store
	generation func() uint64
	log        *ops.Logger

	group   singleflight.Group
	ttl     time.Duration
	timeout time.Duration
}

// NewService creates a profile service
func NewService(q nostrclient.Querier, cs cache.Store, generation func() uint64, cfg *config.Config, log *ops.Logger) *Service {
	if generation == nil {
		generation = func() uint64 { return 0 }
	}
	timeout := 5 * time.Second
	if cfg.Relays.Policy.SecondaryTimeoutMs > 0 {
		timeout = time.Duration(cfg.Relays.Policy.SecondaryTimeoutMs) * time.Millisecond
	}
	return &Service{
		querier:    q,
		cache:      cs,
		generation: generation,
		log:        log.WithComponent("profiles"),
		ttl:        time.Duration(cfg.Caching.TTL.Eligibility) * time.Second,
		timeout:    timeout,
	}
}

// authorSetKey produces a stable key for a set of authors: sorted and
// comma-joined, so identical sets share cache entries regardless of order
func authorSetKey(pubkeys []string) string {
	sorted := make([]string, len(pubkeys))
	copy(sorted, pubkeys)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// Fetch returns the latest parsed profile per author. Authors with no
// profile event, or only malformed ones, map to the zero Profile.
func (s *Service) Fetch(ctx context.Context, pubkeys []string) (map[string]Profile, error) {
	if len(pubkeys) == 0 {
		return map[string]Profile{}, nil
	}

	key := authorSetKey(pubkeys)
	gen := s.generation()

	if data, ok := s.cache.Get(ctx, nsEligibility, key, gen); ok {
		var profiles map[string]Profile
		if err := json.Unmarshal(data, &profiles); err == nil {
			s.log.LogCacheOperation(nsEligibility, key, true)
			return profiles, nil
		}
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		profiles, err := s.fetchLatest(ctx, pubkeys)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(profiles); err == nil {
			s.cache.Set(ctx, nsEligibility, key, gen, data, s.ttl)
		}
		return profiles, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string]Profile), nil
}

// ZappableAuthors returns the subset of the given authors whose latest
// profile carries a lightning address
func (s *Service) ZappableAuthors(ctx context.Context, pubkeys []string) (map[string]bool, error) {
	profiles, err := s.Fetch(ctx, pubkeys)
	if err != nil {
		return nil, err
	}
	zappable := make(map[string]bool)
	for pubkey, profile := range profiles {
		if profile.Zappable() {
			zappable[pubkey] = true
		}
	}
	return zappable, nil
}

// fetchLatest issues one batched profile-metadata query and keeps, per
// author, only the event with the greatest created_at
func (s *Service) fetchLatest(ctx context.Context, pubkeys []string) (map[string]Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	events, err := s.querier.Query(ctx, []nostr.Filter{{
		Kinds:   []int{nostrclient.KindProfileMetadata},
		Authors: pubkeys,
	}})
	s.log.LogRelayQuery("profiles", len(events), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}

	latest := make(map[string]*nostr.Event)
	for _, ev := range events {
		if existing, ok := latest[ev.PubKey]; !ok || ev.CreatedAt > existing.CreatedAt {
			latest[ev.PubKey] = ev
		}
	}

	profiles := make(map[string]Profile, len(latest))
	for pubkey, ev := range latest {
		var p Profile
		// Malformed content degrades to an empty, ineligible profile
		_ = json.Unmarshal([]byte(ev.Content), &p)
		profiles[pubkey] = p
	}
	return profiles, nil
}
