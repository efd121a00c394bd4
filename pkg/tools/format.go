package tools

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/mikeboe/paper-search/pkg/papers"
)

// Doc renders one <doc> block. Attribute values are escaped so a tag
// scanner can always recover id and title; the body is left as is.
func Doc(id, title, body string) string {
	return fmt.Sprintf("<doc id=\"%s\" title=\"%s\">\n%s\n</doc>", html.EscapeString(id), html.EscapeString(title), body)
}

// FormatKeywordResults renders one doc per paper with its snippets, one per line.
func FormatKeywordResults(results []papers.KeywordResult) string {
	docs := make([]string, 0, len(results))
	for _, r := range results {
		snippets := make([]string, 0, len(r.Occurrences))
		for _, occ := range r.Occurrences {
			snippets = append(snippets, occ.Snippet)
		}
		docs = append(docs, Doc(r.UniversalID, r.Title, strings.Join(snippets, "\n")))
	}
	return strings.Join(docs, "\n\n")
}

// FormatEmbeddingResults renders one doc per paper with its abstract.
func FormatEmbeddingResults(results []papers.EmbeddingResult) string {
	docs := make([]string, 0, len(results))
	for _, r := range results {
		docs = append(docs, Doc(r.UniversalID, r.Title, r.Abstract))
	}
	return strings.Join(docs, "\n\n")
}

// FormatPage renders a page titled "Page N" under the paper's universal id.
func FormatPage(page *papers.Page) string {
	return Doc(page.UniversalID, fmt.Sprintf("Page %d", page.PageNumber), page.Text)
}

var docIDPattern = regexp.MustCompile(`<doc id="([^"]+)"`)

// DocIDs returns the id attribute of every <doc> block in content, in order.
func DocIDs(content string) []string {
	var ids []string
	for _, m := range docIDPattern.FindAllStringSubmatch(content, -1) {
		ids = append(ids, html.UnescapeString(m[1]))
	}
	return ids
}
