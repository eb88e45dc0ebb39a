// Package export renders captured portal pages into readable Markdown.
package export

import (
	"fmt"
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/use-agent/portalshot/artifact"
)

// Exporter turns an artifact's markup into Markdown. It is safe for
// concurrent use.
type Exporter struct {
	conv     *converter.Converter
	selector string
	logger   *slog.Logger
}

// New returns an Exporter. A non-empty selector narrows the markup to the
// matching elements before conversion.
func New(selector string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		conv:     newMarkdownConverter(),
		selector: selector,
		logger:   logger,
	}
}

// newMarkdownConverter keeps grade tables intact; the portal renders most
// of its content as tables.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// Markdown renders a. The title becomes a top-level heading unless the body
// already opens with it.
func (e *Exporter) Markdown(a *artifact.Artifact) (string, error) {
	markup := a.Markup()
	if e.selector != "" {
		narrowed, err := ContentRoot(markup, e.selector)
		if err != nil {
			return "", fmt.Errorf("export: content root %q: %w", e.selector, err)
		}
		markup = narrowed
	}

	content, ok := readableContent(markup, a.URL(), e.logger)
	if !ok {
		e.logger.Debug("export: using full markup", "url", a.URL())
	}

	md, err := e.conv.ConvertString(content, converter.WithDomain(origin(a.URL())))
	if err != nil {
		return "", fmt.Errorf("export: convert: %w", err)
	}
	md = strings.TrimSpace(md)

	if title := strings.TrimSpace(a.Title()); title != "" && !strings.HasPrefix(md, "# "+title) {
		md = "# " + title + "\n\n" + md
	}
	return md + "\n", nil
}

// origin is scheme://host of raw, used to absolutise relative links.
func origin(raw string) string {
	u, err := nurl.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
