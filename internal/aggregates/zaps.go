package aggregates

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	nostrclient "github.com/tideline/tideline/internal/nostr"
)

// fetchZapTotals queries zap receipts referencing any of the target events
// and reduces them into a per-event sum in sats
func (m *Manager) fetchZapTotals(ctx context.Context, eventIDs []string) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	receipts, err := m.querier.Query(ctx, []nostr.Filter{{
		Kinds: []int{nostrclient.KindZapReceipt},
		Tags:  nostr.TagMap{"e": eventIDs},
	}})
	m.log.LogRelayQuery("zap_receipts", len(receipts), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query zap receipts: %w", err)
	}

	totals := make(map[string]int64)
	for _, receipt := range receipts {
		target := firstTagValue(receipt, "e")
		if target == "" {
			continue
		}
		totals[target] += receiptSats(receipt)
	}
	return totals, nil
}

// receiptSats computes the amount a single receipt contributes, in sats.
// The bolt11 invoice is authoritative; the amount tag is a fallback for
// receipts whose invoice cannot be decoded. Both carry millisats, so the
// result is msat / 1000. Unparseable receipts contribute zero rather than
// failing the batch.
func receiptSats(receipt *nostr.Event) int64 {
	if invoice := firstTagValue(receipt, "bolt11"); invoice != "" {
		if msat, err := parseInvoiceMsat(invoice); err == nil {
			return msat / 1000
		}
	}
	if amount := firstTagValue(receipt, "amount"); amount != "" {
		if msat, err := strconv.ParseInt(amount, 10, 64); err == nil {
			return msat / 1000
		}
	}
	return 0
}

// firstTagValue returns the value of the first tag with the given name
func firstTagValue(ev *nostr.Event, name string) string {
	for _, tag := range ev.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1]
		}
	}
	return ""
}

var invoiceAmountRe = regexp.MustCompile(`lnbc(\d+)([munp]?)`)

// parseInvoiceMsat extracts the amount in millisats from a bolt11 invoice.
// Format: lnbc{amount}{multiplier}..., amount denominated in bitcoin with
// an optional metric multiplier.
func parseInvoiceMsat(invoice string) (int64, error) {
	matches := invoiceAmountRe.FindStringSubmatch(strings.ToLower(invoice))
	if len(matches) < 2 {
		return 0, fmt.Errorf("could not parse invoice amount")
	}

	amount, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, err
	}

	multiplier := ""
	if len(matches) >= 3 {
		multiplier = matches[2]
	}

	// 1 BTC = 100,000,000,000 msat
	switch multiplier {
	case "m": // millibitcoin
		amount = amount * 100_000_000
	case "u": // microbitcoin
		amount = amount * 100_000
	case "n": // nanobitcoin
		amount = amount * 100
	case "p": // picobitcoin = 0.1 msat
		amount = amount / 10
	default:
		amount = amount * 100_000_000_000
	}

	return amount, nil
}
