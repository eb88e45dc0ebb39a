package export

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest extracted text accepted from readability.
// Shorter results usually mean the main content was not found.
const minContentLength = 50

// readableContent returns the main content of rawHTML, or rawHTML itself
// with ok=false when readability cannot find it.
func readableContent(rawHTML, sourceURL string, logger *slog.Logger) (string, bool) {
	parsed, err := nurl.Parse(sourceURL)
	if err != nil {
		logger.Warn("readability: invalid source URL", "url", sourceURL, "error", err)
		return rawHTML, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		logger.Warn("readability: extraction failed", "url", sourceURL, "error", err)
		return rawHTML, false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return rawHTML, false
	}
	return article.Content, true
}
