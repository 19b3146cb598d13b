// Package llmtext renders the plain-text export of a document.
package llmtext

import (
	"strings"

	"github.com/dgallion1/docsite/internal/richtext"
)

// DocsPrefix is the site path under which documents are browsable.
const DocsPrefix = "/docs"

// URL returns the site URL of a document. An empty docPath addresses the
// category landing page.
func URL(categorySlug, docPath string) string {
	if docPath == "" {
		return DocsPrefix + "/" + categorySlug
	}
	return DocsPrefix + "/" + categorySlug + "/" + docPath
}

// Render builds the export body:
//
//	# <title>
//	URL: <url>
//
//	<content as Markdown>
func Render(title, url string, content *richtext.Root) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\nURL: ")
	b.WriteString(url)
	b.WriteString("\n\n")
	b.WriteString(richtext.Markdown(content))
	return b.String()
}
