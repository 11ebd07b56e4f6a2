package paraphrase

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/models"
)

var (
	thinkRe      = regexp.MustCompile(models.ThinkTag)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Cleaner post-processes generated text before it is stored.
type Cleaner struct {
	stripThink bool
	md         goldmark.Markdown
}

func NewCleaner(cfg config.CleanupConfig) *Cleaner {
	c := &Cleaner{stripThink: cfg.StripThink}
	if cfg.StripMarkdown {
		c.md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))
	}
	return c
}

func (c *Cleaner) Clean(s string) string {
	if c.stripThink {
		s = thinkRe.ReplaceAllString(s, "")
	}
	if c.md != nil {
		s = PlainText(c.md, []byte(s))
	}
	return strings.TrimSpace(s)
}

// PlainText renders markdown as plain text: emphasis, headings and code fences are dropped,
// list items keep a "- " or "N. " marker.
func PlainText(md goldmark.Markdown, src []byte) string {
	doc := md.Parser().Parse(text.NewReader(src))
	var buf bytes.Buffer

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.Kind() {
			case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
				buf.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.URL(src))
		case *ast.ListItem:
			buf.WriteString(listMarker(node))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			buf.WriteByte('\n')
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	lines := strings.Split(buf.String(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	out := blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out)
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "- "
	}
	n := list.Start
	for s := item.PreviousSibling(); s != nil; s = s.PreviousSibling() {
		n++
	}
	return fmt.Sprintf("%d. ", n)
}
