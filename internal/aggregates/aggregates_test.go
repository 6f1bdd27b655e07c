package aggregates

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/nbd-wtf/go-nostr"

	"github.com/tideline/tideline/internal/cache"
	"github.com/tideline/tideline/internal/config"
	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/ops"
)

type fakeQuerier struct {
	fn    func(filters []nostr.Filter) ([]*nostr.Event, error)
	calls int32
}

func (f *fakeQuerier) Query(_ context.Context, filters []nostr.Filter) ([]*nostr.Event, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(filters)
}

func newTestManager(q nostrclient.Querier, cs cache.Store, generation func() uint64) *Manager {
	cfg := config.Default()
	log := ops.NewLogger(&config.Logging{Level: "error", Format: "text"})
	return NewManager(q, cs, generation, cfg, log)
}

func zapReceipt(target string, tags ...nostr.Tag) *nostr.Event {
	all := nostr.Tags{{"e", target}}
	all = append(all, tags...)
	return &nostr.Event{Kind: nostrclient.KindZapReceipt, Tags: all}
}

func TestZapTotals(t *testing.T) {
	q := &fakeQuerier{fn: func(filters []nostr.Filter) ([]*nostr.Event, error) {
		return []*nostr.Event{
			// 210n BTC = 21000 msat = 21 sats
			zapReceipt("a", nostr.Tag{"bolt11", "lnbc210n1pexample"}),
			// no invoice, amount tag in msat: 5 sats
			zapReceipt("a", nostr.Tag{"amount", "5000"}),
		}, nil
	}}
	m := newTestManager(q, cache.Disabled{}, nil)

	totals, err := m.ZapTotals(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if totals["a"] != 26 {
		t.Errorf("totals[a] = %d, want 26", totals["a"])
	}
	if _, ok := totals["b"]; ok {
		t.Error("event with no receipts must be absent from the map")
	}
}

func TestZapTotalsEmptyInput(t *testing.T) {
	q := &fakeQuerier{}
	m := newTestManager(q, cache.Disabled{}, nil)

	totals, err := m.ZapTotals(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(totals) != 0 {
		t.Errorf("totals = %v, want empty", totals)
	}
	if q.calls != 0 {
		t.Error("empty batch must not query the relays")
	}
}

func TestZapTotalsCached(t *testing.T) {
	q := &fakeQuerier{fn: func([]nostr.Filter) ([]*nostr.Event, error) {
		return []*nostr.Event{zapReceipt("a", nostr.Tag{"amount", "1000"})}, nil
	}}
	m := newTestManager(q, cache.NewMemory(), nil)
	ctx := context.Background()

	if _, err := m.ZapTotals(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	totals, err := m.ZapTotals(ctx, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if totals["a"] != 1 {
		t.Errorf("totals[a] = %d, want 1", totals["a"])
	}
	if q.calls != 1 {
		t.Errorf("query count = %d, want 1 (second call served from cache)", q.calls)
	}
}

func TestZapTotalsGenerationInvalidates(t *testing.T) {
	gen := uint64(0)
	q := &fakeQuerier{}
	m := newTestManager(q, cache.NewMemory(), func() uint64 { return gen })
	ctx := context.Background()

	m.ZapTotals(ctx, []string{"a"})
	gen++
	m.ZapTotals(ctx, []string{"a"})

	if q.calls != 2 {
		t.Errorf("query count = %d, want 2 after generation bump", q.calls)
	}
}

func TestReceiptSats(t *testing.T) {
	tests := []struct {
		name string
		tags nostr.Tags
		want int64
	}{
		{
			name: "bolt11 invoice",
			tags: nostr.Tags{{"bolt11", "lnbc210n1pexample"}},
			want: 21,
		},
		{
			name: "bolt11 wins over amount tag",
			tags: nostr.Tags{{"bolt11", "lnbc210n1pexample"}, {"amount", "99000"}},
			want: 21,
		},
		{
			name: "amount fallback when invoice is garbage",
			tags: nostr.Tags{{"bolt11", "not-an-invoice"}, {"amount", "5000"}},
			want: 5,
		},
		{
			name: "amount tag only",
			tags: nostr.Tags{{"amount", "21000"}},
			want: 21,
		},
		{
			name: "sub-sat amount rounds down to zero",
			tags: nostr.Tags{{"amount", "900"}},
			want: 0,
		},
		{
			name: "nothing parseable contributes zero",
			tags: nostr.Tags{{"bolt11", "junk"}, {"amount", "junk"}},
			want: 0,
		},
		{
			name: "no amount information at all",
			tags: nostr.Tags{},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt := &nostr.Event{Kind: nostrclient.KindZapReceipt, Tags: tt.tags}
			if got := receiptSats(receipt); got != tt.want {
				t.Errorf("receiptSats = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseInvoiceMsat(t *testing.T) {
	tests := []struct {
		invoice string
		want    int64
		wantErr bool
	}{
		{"lnbc1m1pexample", 100_000_000, false},     // 1 mBTC
		{"lnbc21u1pexample", 2_100_000, false},      // 21 uBTC
		{"lnbc210n1pexample", 21_000, false},        // 210 nBTC
		{"lnbc10p1pexample", 1, false},              // 10 pBTC = 1 msat
		{"lnbc1", 100_000_000_000, false},           // bare amount is whole BTC
		{"LNBC210N1PEXAMPLE", 21_000, false},        // case-insensitive
		{"fee-free lightning", 0, true},             // no invoice present
	}

	for _, tt := range tests {
		got, err := parseInvoiceMsat(tt.invoice)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseInvoiceMsat(%q) expected error", tt.invoice)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseInvoiceMsat(%q): %v", tt.invoice, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseInvoiceMsat(%q) = %d, want %d", tt.invoice, got, tt.want)
		}
	}
}

func TestCommentCounts(t *testing.T) {
	q := &fakeQuerier{fn: func(filters []nostr.Filter) ([]*nostr.Event, error) {
		switch filters[0].Kinds[0] {
		case nostrclient.KindComment:
			return []*nostr.Event{
				{Kind: nostrclient.KindComment, Tags: nostr.Tags{{"E", "a"}}},
				{Kind: nostrclient.KindComment, Tags: nostr.Tags{{"E", "a"}}},
			}, nil
		case nostrclient.KindNote:
			return []*nostr.Event{
				{Kind: nostrclient.KindNote, Tags: nostr.Tags{{"e", "a"}}},
				{Kind: nostrclient.KindNote, Tags: nostr.Tags{{"e", "b"}}},
			}, nil
		}
		return nil, nil
	}}
	m := newTestManager(q, cache.Disabled{}, nil)

	counts, err := m.CommentCounts(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if counts["a"] != 3 {
		t.Errorf("counts[a] = %d, want 3 (both representations summed)", counts["a"])
	}
	if counts["b"] != 1 {
		t.Errorf("counts[b] = %d, want 1", counts["b"])
	}
	if _, ok := counts["c"]; ok {
		t.Error("uncommented event must be absent from the map")
	}
	if q.calls != 2 {
		t.Errorf("query count = %d, want 2 (structured and plain run separately)", q.calls)
	}
}

func TestCommentCountsEmptyInput(t *testing.T) {
	q := &fakeQuerier{}
	m := newTestManager(q, cache.Disabled{}, nil)

	counts, err := m.CommentCounts(context.Background(), []string{})
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 0 || q.calls != 0 {
		t.Errorf("empty batch: counts=%v calls=%d", counts, q.calls)
	}
}
