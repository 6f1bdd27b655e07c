package relays

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tideline/tideline/internal/config"
)

var (
	// ErrLastRelay is returned when a removal would leave zero relays
	ErrLastRelay = errors.New("cannot remove the last relay")
	// ErrRelayExists is returned when adding a relay already in the set
	ErrRelayExists = errors.New("relay already configured")
	// ErrRelayNotFound is returned when mutating a relay not in the set
	ErrRelayNotFound = errors.New("relay not configured")
	// ErrInvalidURL is returned for relay URLs that are not ws:// or wss://
	ErrInvalidURL = errors.New("invalid relay url")
)

// Relay describes one configured relay and its read/write role
type Relay struct {
	URL   string `json:"url"`
	Read  bool   `json:"read"`
	Write bool   `json:"write"`
}

// Metadata is the full relay configuration plus its last-modified time
type Metadata struct {
	Relays    []Relay `json:"relays"`
	UpdatedAt int64   `json:"updatedAt"`
}

// Store holds the active relay set. Mutations bump a generation counter
// that cache layers use to invalidate everything derived from relay data.
type Store struct {
	mu         sync.RWMutex
	relays     []Relay
	updatedAt  int64
	generation uint64
	now        func() time.Time
}

// NewStore creates a store seeded from configuration
func NewStore(cfg *config.Relays) *Store {
	s := &Store{now: time.Now}
	for _, e := range cfg.Defaults {
		u, err := Normalize(e.URL)
		if err != nil {
			continue
		}
		s.relays = append(s.relays, Relay{URL: u, Read: e.Read, Write: e.Write})
	}
	s.updatedAt = s.now().Unix()
	return s
}

// Normalize canonicalizes a relay URL: defaults the scheme to wss,
// lowercases the host and strips a bare trailing slash.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	if u.Scheme != "wss" && u.Scheme != "ws" {
		return "", fmt.Errorf("%w: scheme must be ws or wss: %s", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host: %s", ErrInvalidURL, raw)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String(), nil
}

// Generation returns the current relay-configuration generation.
// Every mutation bumps it; cached results stamped with an older
// generation are logically stale.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Metadata returns a copy of the current relay configuration
func (s *Store) Metadata() Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Relay, len(s.relays))
	copy(out, s.relays)
	return Metadata{Relays: out, UpdatedAt: s.updatedAt}
}

// ReadURLs returns the URLs of relays configured for reading
func (s *Store) ReadURLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, 0, len(s.relays))
	for _, r := range s.relays {
		if r.Read {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// WriteURLs returns the URLs of relays configured for writing
func (s *Store) WriteURLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, 0, len(s.relays))
	for _, r := range s.relays {
		if r.Write {
			urls = append(urls, r.URL)
		}
	}
	return urls
}

// Add appends a relay to the set. The URL is normalized and validated
// before any state changes.
func (s *Store) Add(rawURL string, read, write bool) (Metadata, error) {
	u, err := Normalize(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(u) >= 0 {
		return s.metadataLocked(), ErrRelayExists
	}
	s.relays = append(s.relays, Relay{URL: u, Read: read, Write: write})
	s.bumpLocked()
	return s.metadataLocked(), nil
}

// Remove deletes a relay from the set. Removing the last relay is
// rejected and leaves the configuration unchanged.
func (s *Store) Remove(rawURL string) (Metadata, error) {
	u, err := Normalize(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(u)
	if i < 0 {
		return s.metadataLocked(), ErrRelayNotFound
	}
	if len(s.relays) <= 1 {
		return s.metadataLocked(), ErrLastRelay
	}
	s.relays = append(s.relays[:i], s.relays[i+1:]...)
	s.bumpLocked()
	return s.metadataLocked(), nil
}

// Toggle adds the relay if absent, otherwise removes it. Mirrors the
// one-click relay picker behavior.
func (s *Store) Toggle(rawURL string) (Metadata, error) {
	u, err := Normalize(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(u)
	if i < 0 {
		s.relays = append(s.relays, Relay{URL: u, Read: true, Write: true})
		s.bumpLocked()
		return s.metadataLocked(), nil
	}
	if len(s.relays) <= 1 {
		return s.metadataLocked(), ErrLastRelay
	}
	s.relays = append(s.relays[:i], s.relays[i+1:]...)
	s.bumpLocked()
	return s.metadataLocked(), nil
}

// SetPolicy updates the read/write role of a configured relay
func (s *Store) SetPolicy(rawURL string, read, write bool) (Metadata, error) {
	u, err := Normalize(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(u)
	if i < 0 {
		return s.metadataLocked(), ErrRelayNotFound
	}
	s.relays[i].Read = read
	s.relays[i].Write = write
	s.bumpLocked()
	return s.metadataLocked(), nil
}

// Invalidate bumps the generation without changing the relay set,
// forcing every cached query result to be recomputed. Backs the
// user-facing refresh action.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpLocked()
}

func (s *Store) index(u string) int {
	for i, r := range s.relays {
		if r.URL == u {
			return i
		}
	}
	return -1
}

func (s *Store) bumpLocked() {
	s.generation++
	s.updatedAt = s.now().Unix()
}

func (s *Store) metadataLocked() Metadata {
	out := make([]Relay, len(s.relays))
	copy(out, s.relays)
	return Metadata{Relays: out, UpdatedAt: s.updatedAt}
}
