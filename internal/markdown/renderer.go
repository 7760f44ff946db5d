// Package markdown turns model output into styled, sanitised HTML for the
// chat UI and into ANSI text for the terminal client.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Renderer converts markdown to HTML. A call with the same source as the
// previous call returns the cached result without rendering again.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy

	mu      sync.Mutex
	last    string
	lastOut string
	primed  bool
	renders int
}

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithInlineParsers(util.Prioritized(extension.NewTaskCheckBoxParser(), 0)),
			parser.WithASTTransformers(util.Prioritized(styleTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(util.Prioritized(checkBoxRenderer{}, 500)),
		),
	)
	return &Renderer{md: md, policy: newPolicy()}
}

// Render returns the HTML for source.
func (r *Renderer) Render(source string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.primed && source == r.last {
		return r.lastOut, nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	out := r.policy.Sanitize(buf.String())

	r.last, r.lastOut, r.primed = source, out, true
	r.renders++
	return out, nil
}

// Renders reports how many times the markdown pipeline actually ran.
func (r *Renderer) Renders() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

type styleTransformer struct{}

func (styleTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if style, ok := styles[n.Kind()]; ok {
			style(n)
		}
		return ast.WalkContinue, nil
	})
}

// checkBoxRenderer writes task list checkboxes with their attributes. They
// are always disabled.
type checkBoxRenderer struct{}

func (checkBoxRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(east.KindTaskCheckBox, renderCheckBox)
}

func renderCheckBox(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*east.TaskCheckBox)
	_, _ = w.WriteString(`<input type="checkbox" disabled=""`)
	if n.IsChecked {
		_, _ = w.WriteString(` checked=""`)
	}
	if n.Attributes() != nil {
		html.RenderAttributes(w, n, html.GlobalAttributeFilter)
	}
	_, _ = w.WriteString("> ")
	return ast.WalkContinue, nil
}

var (
	targetBlank = regexp.MustCompile(`^_blank$`)
	alignment   = regexp.MustCompile(`^(left|right|center)$`)
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"p", "br", "ol", "ul", "li", "strong", "em", "del", "blockquote", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6", "pre", "code",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(targetBlank).OnElements("a")
	p.AllowAttrs("align").Matching(alignment).OnElements("th", "td")
	p.AllowAttrs("type", "checked", "disabled").OnElements("input")
	p.AllowAttrs("class").Globally()
	p.RequireNoReferrerOnLinks(true)
	return p
}
