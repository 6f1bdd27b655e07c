package feed

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestParseSortMode(t *testing.T) {
	tests := []struct {
		input string
		want  SortMode
		ok    bool
	}{
		{"hot", SortHot, true},
		{"recent", SortRecent, true},
		{"top", SortTop, true},
		{"", "", false},
		{"HOT", "", false},
		{"newest", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseSortMode(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSortMode(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRankRecent(t *testing.T) {
	old := &nostr.Event{ID: "old", CreatedAt: 100}
	mid := &nostr.Event{ID: "mid", CreatedAt: 200}
	fresh := &nostr.Event{ID: "new", CreatedAt: 300}

	ranked := rankAt([]*nostr.Event{old, fresh, mid}, SortRecent, nil, 1000)

	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankTop(t *testing.T) {
	a := &nostr.Event{ID: "a", CreatedAt: 100}
	b := &nostr.Event{ID: "b", CreatedAt: 200}
	c := &nostr.Event{ID: "c", CreatedAt: 300}
	totals := map[string]int64{"a": 500, "b": 2000}

	ranked := rankAt([]*nostr.Event{a, b, c}, SortTop, totals, 1000)

	// c has no receipts and ranks as zero
	want := []string{"b", "a", "c"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankHotFreshBeatsStale(t *testing.T) {
	now := int64(100 * 3600)
	fresh := &nostr.Event{ID: "fresh", CreatedAt: nostr.Timestamp(now - 3600)}
	stale := &nostr.Event{ID: "stale", CreatedAt: nostr.Timestamp(now - 72*3600)}

	// Equal zap totals: age decay decides
	totals := map[string]int64{"fresh": 5000, "stale": 5000}
	ranked := rankAt([]*nostr.Event{stale, fresh}, SortHot, totals, now)

	if ranked[0].ID != "fresh" {
		t.Errorf("fresh post should outrank stale at equal zaps, got %s first", ranked[0].ID)
	}
}

func TestRankHotZapsBeatRecency(t *testing.T) {
	now := int64(100 * 3600)
	quiet := &nostr.Event{ID: "quiet", CreatedAt: nostr.Timestamp(now - 3600)}
	popular := &nostr.Event{ID: "popular", CreatedAt: nostr.Timestamp(now - 4*3600)}

	// A large enough total overcomes a few hours of decay
	totals := map[string]int64{"popular": 1_000_000}
	ranked := rankAt([]*nostr.Event{quiet, popular}, SortHot, totals, now)

	if ranked[0].ID != "popular" {
		t.Errorf("heavily zapped post should outrank a quiet newer one, got %s first", ranked[0].ID)
	}
}

func TestRankStableOnTies(t *testing.T) {
	now := int64(1000)
	a := &nostr.Event{ID: "a", CreatedAt: 500}
	b := &nostr.Event{ID: "b", CreatedAt: 500}
	c := &nostr.Event{ID: "c", CreatedAt: 500}

	ranked := rankAt([]*nostr.Event{a, b, c}, SortHot, nil, now)

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Errorf("tie broke input order: ranked[%d] = %s, want %s", i, ranked[i].ID, id)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	a := &nostr.Event{ID: "a", CreatedAt: 100}
	b := &nostr.Event{ID: "b", CreatedAt: 200}
	input := []*nostr.Event{a, b}

	rankAt(input, SortRecent, nil, 1000)

	if input[0].ID != "a" || input[1].ID != "b" {
		t.Error("Rank must sort a copy, not the caller's slice")
	}
}

func TestHotScoreMinimumPoints(t *testing.T) {
	now := int64(10 * 3600)
	ev := &nostr.Event{ID: "a", CreatedAt: nostr.Timestamp(now - 3600)}

	// Zero and tiny totals floor at one point, so score depends only on age
	zero := HotScore(ev, 0, now)
	tiny := HotScore(ev, 500, now)
	if zero != tiny {
		t.Errorf("totals below the dampening floor should score equally: %v vs %v", zero, tiny)
	}

	big := HotScore(ev, 100_000, now)
	if big <= zero {
		t.Errorf("larger total must score higher: %v <= %v", big, zero)
	}
}
