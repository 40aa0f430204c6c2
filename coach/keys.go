// Package coach assembles the learning-coach agent network: a root agent that
// delegates to a summarization specialist, which in turn gathers study
// material through conversion and search connectors. The package also fixes
// the canonical session-state keys that bridge heterogeneous tool results to
// the summarization step.
package coach

import (
	"github.com/studymesh/studymesh/tool"
)

// Canonical session-state keys forming the producer/consumer contract between
// connectors and the summarizer.
const (
	// KeyResults holds search hits: a list of {title, url, snippet} entries.
	KeyResults = "results"
	// KeyContentMarkdown holds converted study material as markdown text.
	KeyContentMarkdown = "content_markdown"
	// KeyMetadata holds origin metadata for converted content (title, url,
	// file type).
	KeyMetadata = "metadata"
)

// NewSearchNormalizer recognizes search-shaped tool results. Services
// disagree on the field name for the hit list, so both spellings map to
// KeyResults.
func NewSearchNormalizer() *tool.Normalizer {
	return tool.NewNormalizer("search",
		tool.FieldMapping{Canonical: KeyResults, Sources: []string{"results", "hits"}},
	)
}

// NewConversionNormalizer recognizes conversion-shaped tool results.
// Markdownify-style servers return "content_markdown" while PDF readers use
// plain "content" for the same payload.
func NewConversionNormalizer() *tool.Normalizer {
	return tool.NewNormalizer("conversion",
		tool.FieldMapping{Canonical: KeyContentMarkdown, Sources: []string{"content_markdown", "content"}},
		tool.FieldMapping{Canonical: KeyMetadata, Sources: []string{"metadata"}},
	)
}
