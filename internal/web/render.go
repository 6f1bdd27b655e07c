package web

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/tideline/tideline/internal/entities"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
)

// renderContent converts post content to HTML. Embedded nostr: URIs are
// rewritten to in-app links before markdown conversion so they render as
// navigable anchors instead of dead URIs.
func renderContent(content string) string {
	linked := entities.ReplaceEntities(content, func(ref *entities.Ref, code string) string {
		label := code
		if len(label) > 16 {
			label = label[:16] + "..."
		}
		if ref.Type == "profile" {
			return "[" + label + "](/p/" + code + ")"
		}
		return "[" + label + "](/e/" + code + ")"
	})

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(linked), &buf); err != nil {
		return ""
	}
	return buf.String()
}
