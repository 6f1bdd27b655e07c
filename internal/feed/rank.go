package feed

import (
	"math"
	"sort"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// SortMode selects the feed ordering
type SortMode string

const (
	SortHot    SortMode = "hot"
	SortRecent SortMode = "recent"
	SortTop    SortMode = "top"
)

// ParseSortMode maps a user-supplied string to a SortMode
func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(s) {
	case SortHot, SortRecent, SortTop:
		return SortMode(s), true
	default:
		return "", false
	}
}

// gravity penalizes age super-linearly, front-page style
const gravity = 1.8

// HotScore computes the hot ranking score for an event: zap-weighted
// popularity decayed by age. The sat total is dampened by a further factor
// of 1000 so a single large zap cannot pin a post to the top indefinitely.
func HotScore(ev *nostr.Event, zapTotal int64, now int64) float64 {
	ageInHours := float64(now-int64(ev.CreatedAt)) / 3600
	points := math.Max(1, float64(zapTotal)/1000)
	return points / math.Pow(ageInHours+2, gravity)
}

// Rank orders events under the given sort mode. The sort is stable, so
// events that compare equal keep their input order. Events absent from
// zapTotals rank as if their total were zero.
func Rank(events []*nostr.Event, mode SortMode, zapTotals map[string]int64) []*nostr.Event {
	return rankAt(events, mode, zapTotals, time.Now().Unix())
}

func rankAt(events []*nostr.Event, mode SortMode, zapTotals map[string]int64, now int64) []*nostr.Event {
	sorted := make([]*nostr.Event, len(events))
	copy(sorted, events)

	switch mode {
	case SortRecent:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt > sorted[j].CreatedAt
		})
	case SortTop:
		sort.SliceStable(sorted, func(i, j int) bool {
			return zapTotals[sorted[i].ID] > zapTotals[sorted[j].ID]
		})
	case SortHot:
		scores := make(map[string]float64, len(sorted))
		for _, ev := range sorted {
			scores[ev.ID] = HotScore(ev, zapTotals[ev.ID], now)
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return scores[sorted[i].ID] > scores[sorted[j].ID]
		})
	}
	return sorted
}
