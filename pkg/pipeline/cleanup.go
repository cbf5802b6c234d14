package pipeline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"scrape-gate/pkg/config"
	"scrape-gate/pkg/utils"
)

var (
	htmlTagPattern   = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)
	inlineSpaceRuns  = regexp.MustCompile(`[ \t\f\v]+`)
	excessBlankLines = regexp.MustCompile(`\n{3,}`)
)

// nonContentSelectors are removed before text is extracted from HTML.
const nonContentSelectors = "script, style, noscript, nav, header, footer, aside, iframe, form"

// Cleaner post-processes text-mode output. The zero value does nothing.
type Cleaner struct {
	stripHTML     bool
	stripMarkdown bool
}

// NewCleaner builds a Cleaner from config.
func NewCleaner(cfg config.TextCleanupConfig) *Cleaner {
	return &Cleaner{stripHTML: cfg.StripHTML, stripMarkdown: cfg.StripMarkdown}
}

// Enabled reports whether any cleanup step is active.
func (c *Cleaner) Enabled() bool {
	return c != nil && (c.stripHTML || c.stripMarkdown)
}

// Clean applies the enabled steps in order: HTML first, then markdown.
func (c *Cleaner) Clean(s string) (string, error) {
	if !c.Enabled() {
		return s, nil
	}
	var err error
	if c.stripHTML && htmlTagPattern.MatchString(s) {
		if s, err = StripHTML(s); err != nil {
			return "", err
		}
	}
	if c.stripMarkdown {
		s = StripMarkdown(s)
	}
	return normalizeWhitespace(s), nil
}

// StripHTML drops non-content elements and returns the remaining text.
func StripHTML(s string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("%w: HTML cleanup: %w", utils.ErrParsing, err)
	}
	doc.Find(nonContentSelectors).Remove()
	// Block elements end a line so paragraphs do not run together.
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, sel *goquery.Selection) {
		sel.AfterHtml("\n")
	})
	return doc.Find("body").Text(), nil
}

// StripMarkdown renders markdown to plain text: emphasis, links, headings
// and code fences lose their markup, block structure becomes blank lines.
func StripMarkdown(s string) string {
	src := []byte(s)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				buf.WriteString("\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.ThematicBreak:
			if !entering {
				buf.WriteString("\n\n")
			}
		case *ast.TextBlock, *ast.List:
			// tight list items
			if !entering {
				buf.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// normalizeWhitespace trims every line, collapses inline runs of spaces and
// keeps at most one blank line between blocks.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpaceRuns.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = excessBlankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
