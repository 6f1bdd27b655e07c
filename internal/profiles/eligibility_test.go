package profiles

import (
	"context"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tideline/tideline/internal/cache"
	"github.com/tideline/tideline/internal/config"
	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/ops"
)

type fakeQuerier struct {
	events []*nostr.Event
	calls  int
}

func (f *fakeQuerier) Query(_ context.Context, _ []nostr.Filter) ([]*nostr.Event, error) {
	f.calls++
	return f.events, nil
}

func newTestService(q *fakeQuerier, cs cache.Store) *Service {
	cfg := config.Default()
	log := ops.NewLogger(&config.Logging{Level: "error", Format: "text"})
	return NewService(q, cs, nil, cfg, log)
}

func profileEvent(pubkey, content string, createdAt int64) *nostr.Event {
	return &nostr.Event{
		Kind:      nostrclient.KindProfileMetadata,
		PubKey:    pubkey,
		Content:   content,
		CreatedAt: nostr.Timestamp(createdAt),
	}
}

func TestZappable(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    bool
	}{
		{"lud16 address", Profile{Lud16: "alice@getalby.com"}, true},
		{"lud06 lnurl", Profile{Lud06: "lnurl1dp68gurn8ghj7"}, true},
		{"both", Profile{Lud16: "a@b.c", Lud06: "lnurl1"}, true},
		{"neither", Profile{Name: "bob"}, false},
		{"zero profile", Profile{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.Zappable(); got != tt.want {
				t.Errorf("Zappable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBestName(t *testing.T) {
	pubkey := "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"display name first", Profile{DisplayName: "Alice", Name: "alice"}, "Alice"},
		{"name second", Profile{Name: "alice", NIP05: "alice@nostr.example"}, "alice"},
		{"nip05 third", Profile{NIP05: "alice@nostr.example"}, "alice@nostr.example"},
		{"pubkey fallback", Profile{}, "3bf0c63f...aefa459d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.BestName(pubkey); got != tt.want {
				t.Errorf("BestName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchLastWriteWins(t *testing.T) {
	q := &fakeQuerier{events: []*nostr.Event{
		profileEvent("alice", `{"name":"old","lud16":""}`, 100),
		profileEvent("alice", `{"name":"current","lud16":"alice@getalby.com"}`, 200),
		profileEvent("alice", `{"name":"stale"}`, 150),
	}}
	s := newTestService(q, cache.Disabled{})

	profiles, err := s.Fetch(context.Background(), []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}
	got := profiles["alice"]
	if got.Name != "current" {
		t.Errorf("name = %q, want the newest event to win", got.Name)
	}
	if !got.Zappable() {
		t.Error("newest profile carries lud16, should be zappable")
	}
}

func TestFetchLatestWinsEvenWhenEmptier(t *testing.T) {
	q := &fakeQuerier{events: []*nostr.Event{
		profileEvent("alice", `{"lud16":"alice@getalby.com"}`, 100),
		profileEvent("alice", `{"name":"alice"}`, 200),
	}}
	s := newTestService(q, cache.Disabled{})

	profiles, err := s.Fetch(context.Background(), []string{"alice"})
	if err != nil {
		t.Fatal(err)
	}
	// The newer event dropped the lightning address; the old one is ignored
	if profiles["alice"].Zappable() {
		t.Error("stale profile must not keep an author eligible")
	}
}

func TestFetchMalformedContent(t *testing.T) {
	q := &fakeQuerier{events: []*nostr.Event{
		profileEvent("broken", `{not json`, 100),
	}}
	s := newTestService(q, cache.Disabled{})

	profiles, err := s.Fetch(context.Background(), []string{"broken"})
	if err != nil {
		t.Fatalf("malformed content must not fail the batch: %v", err)
	}
	if profiles["broken"].Zappable() {
		t.Error("malformed profile must be ineligible")
	}
}

func TestFetchMissingProfile(t *testing.T) {
	q := &fakeQuerier{}
	s := newTestService(q, cache.Disabled{})

	profiles, err := s.Fetch(context.Background(), []string{"ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := profiles["ghost"]; ok {
		t.Error("author with no profile event should be absent")
	}
}

func TestFetchEmptyInput(t *testing.T) {
	q := &fakeQuerier{}
	s := newTestService(q, cache.Disabled{})

	profiles, err := s.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 0 || q.calls != 0 {
		t.Errorf("empty input: profiles=%v calls=%d", profiles, q.calls)
	}
}

func TestFetchCachedAcrossOrderings(t *testing.T) {
	q := &fakeQuerier{events: []*nostr.Event{
		profileEvent("alice", `{"lud16":"alice@getalby.com"}`, 100),
		profileEvent("bob", `{}`, 100),
	}}
	s := newTestService(q, cache.NewMemory())
	ctx := context.Background()

	if _, err := s.Fetch(ctx, []string{"alice", "bob"}); err != nil {
		t.Fatal(err)
	}
	// Same set, different order: must hit the same cache entry
	if _, err := s.Fetch(ctx, []string{"bob", "alice"}); err != nil {
		t.Fatal(err)
	}
	if q.calls != 1 {
		t.Errorf("query count = %d, want 1", q.calls)
	}
}

func TestZappableAuthors(t *testing.T) {
	q := &fakeQuerier{events: []*nostr.Event{
		profileEvent("alice", `{"lud16":"alice@getalby.com"}`, 100),
		profileEvent("bob", `{"name":"bob"}`, 100),
	}}
	s := newTestService(q, cache.Disabled{})

	zappable, err := s.ZappableAuthors(context.Background(), []string{"alice", "bob", "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	if !zappable["alice"] {
		t.Error("alice has a lightning address and should be zappable")
	}
	if zappable["bob"] || zappable["ghost"] {
		t.Errorf("zappable = %v, only alice qualifies", zappable)
	}
}
