package compose

import (
	"errors"
	"strings"

	"github.com/nbd-wtf/go-nostr"

	nostrclient "github.com/tideline/tideline/internal/nostr"
)

// ErrTitleRequired is returned when a thread post has no title
var ErrTitleRequired = errors.New("title is required")

// MaxHashtags caps the number of t tags on a post
const MaxHashtags = 5

// NewThreadPost builds an unsigned thread event. Link posts put the URL
// first in the content and reference it with an r tag; hashtags are
// normalized, deduplicated and capped. Signing is the caller's concern.
func NewThreadPost(title, content, url string, hashtags []string) (*nostr.Event, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	content = strings.TrimSpace(content)
	url = strings.TrimSpace(url)

	tags := nostr.Tags{{"title", title}}
	for _, t := range normalizeHashtags(hashtags) {
		tags = append(tags, nostr.Tag{"t", t})
	}
	if url != "" {
		tags = append(tags, nostr.Tag{"r", url})
	}

	body := content
	if url != "" {
		body = url
		if content != "" {
			body += "\n\n" + content
		}
	}

	return &nostr.Event{
		Kind:      nostrclient.KindThread,
		CreatedAt: nostr.Now(),
		Tags:      tags,
		Content:   body,
	}, nil
}

// normalizeHashtags lowercases tags, strips everything outside [a-z0-9],
// drops empties and duplicates and keeps at most MaxHashtags
func normalizeHashtags(hashtags []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(hashtags))
	for _, raw := range hashtags {
		tag := normalizeHashtag(raw)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
		if len(out) == MaxHashtags {
			break
		}
	}
	return out
}

func normalizeHashtag(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
