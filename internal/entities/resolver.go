package entities

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Ref is a resolved navigable identifier: a thread or a profile
type Ref struct {
	Type string // "note" or "profile"
	ID   string // event id or pubkey, hex
}

// ParseRef decodes a NIP-19 identifier and dispatches it by prefix.
// note and nevent point at threads; npub and nprofile point at profiles.
// Malformed identifiers return an error the caller renders as not-found.
func ParseRef(code string) (*Ref, error) {
	prefix, decoded, err := nip19.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %w", err)
	}

	switch prefix {
	case "note":
		return &Ref{Type: "note", ID: decoded.(string)}, nil
	case "nevent":
		pointer := decoded.(nostr.EventPointer)
		return &Ref{Type: "note", ID: pointer.ID}, nil
	case "npub":
		return &Ref{Type: "profile", ID: decoded.(string)}, nil
	case "nprofile":
		pointer := decoded.(nostr.ProfilePointer)
		return &Ref{Type: "profile", ID: pointer.PublicKey}, nil
	default:
		return nil, fmt.Errorf("unsupported identifier type: %s", prefix)
	}
}

// NoteCode encodes an event id as a shareable note identifier
func NoteCode(eventID string) (string, error) {
	return nip19.EncodeNote(eventID)
}

// ProfileCode encodes a pubkey as a shareable npub identifier
func ProfileCode(pubkey string) (string, error) {
	return nip19.EncodePublicKey(pubkey)
}

// Regular expression to match nostr: URIs embedded in post content
var nostrEntityRegex = regexp.MustCompile(`nostr:(npub1[a-z0-9]+|nprofile1[a-z0-9]+|note1[a-z0-9]+|nevent1[a-z0-9]+)`)

// FindEntities finds all NIP-19 entities in text, without the nostr: prefix
func FindEntities(text string) []string {
	matches := nostrEntityRegex.FindAllString(text, -1)
	entities := make([]string, len(matches))
	for i, match := range matches {
		entities[i] = strings.TrimPrefix(match, "nostr:")
	}
	return entities
}

// ReplaceEntities rewrites nostr: URIs in text using the formatter.
// Identifiers that fail to decode are left as-is.
func ReplaceEntities(text string, formatter func(*Ref, string) string) string {
	return nostrEntityRegex.ReplaceAllStringFunc(text, func(match string) string {
		code := strings.TrimPrefix(match, "nostr:")
		ref, err := ParseRef(code)
		if err != nil {
			return match
		}
		return formatter(ref, code)
	})
}
