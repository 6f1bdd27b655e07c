package compose

import (
	"github.com/nbd-wtf/go-nostr"

	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/relays"
)

// NewRelayListEvent builds an unsigned relay-list event announcing the
// user's relay preferences. Relays used for both reading and writing get
// a bare r tag; single-role relays carry an explicit marker. Relays with
// neither role are omitted.
func NewRelayListEvent(meta relays.Metadata) *nostr.Event {
	tags := make(nostr.Tags, 0, len(meta.Relays))
	for _, r := range meta.Relays {
		switch {
		case r.Read && r.Write:
			tags = append(tags, nostr.Tag{"r", r.URL})
		case r.Read:
			tags = append(tags, nostr.Tag{"r", r.URL, "read"})
		case r.Write:
			tags = append(tags, nostr.Tag{"r", r.URL, "write"})
		}
	}
	return &nostr.Event{
		Kind:      nostrclient.KindRelayList,
		CreatedAt: nostr.Now(),
		Tags:      tags,
		Content:   "",
	}
}
