// Package convert turns external learning material (webpages, documents) into
// markdown study content. Two converter backends are provided: a direct HTTP +
// goquery/html-to-markdown pipeline for webpages, and an MCP stdio client for
// document formats handled by markdownify-style servers.
package convert

import "context"

// Document is the normalized conversion output. ContentMarkdown carries the
// study material; Metadata describes its origin (title, url or source).
type Document struct {
	ContentMarkdown string         `json:"content_markdown"`
	Metadata        map[string]any `json:"metadata"`
}

// Converter converts an external reference (URL, file path) to a Document.
type Converter interface {
	Convert(ctx context.Context, ref string) (*Document, error)
}
