package papers

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSnippetWindow is the snippet length in characters.
const DefaultSnippetWindow = 400

const ellipsis = "..."

// ExtractSnippets returns one window of text around the first occurrence of
// each whitespace-separated term of keyword. When no term occurs it falls
// back to the start of the text. The result is never empty.
func ExtractSnippets(text, keyword string, windowSize int) []string {
	if windowSize <= 0 {
		windowSize = DefaultSnippetWindow
	}

	runes := []rune(text)
	lower := lowerRunes(runes)
	lowerText := string(lower)

	var snippets []string
	for _, term := range strings.Fields(string(lowerRunes([]rune(keyword)))) {
		byteIdx := strings.Index(lowerText, term)
		if byteIdx == -1 {
			continue
		}
		idx := utf8.RuneCountInString(lowerText[:byteIdx])

		start := max(0, idx-windowSize/2)
		end := min(len(runes), start+windowSize)

		snippet := string(runes[start:end])
		if start > 0 {
			snippet = ellipsis + snippet
		}
		if end < len(runes) {
			snippet += ellipsis
		}
		snippets = append(snippets, snippet)
	}

	if len(snippets) == 0 {
		end := min(len(runes), windowSize)
		snippet := string(runes[:end])
		if len(runes) > windowSize {
			snippet += ellipsis
		}
		return []string{snippet}
	}
	return snippets
}

// lowerRunes lowercases rune by rune so offsets line up with the input.
func lowerRunes(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// SnippetTerms reduces a web-search style query to the positive terms worth
// centring a snippet on: quotes are dropped, as are negated terms and "or".
func SnippetTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(query) {
		if strings.HasPrefix(f, "-") || strings.EqualFold(f, "or") {
			continue
		}
		f = strings.Trim(f, `"`)
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}
