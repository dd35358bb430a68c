/*
Package mdast is an AST adapter: it wraps an external Markdown parser
(github.com/yuin/goldmark) behind the three operations the rest of this
module actually needs — Parse, Stringify and Fingerprint — and
re-expresses goldmark's own AST as this repo's own stable Node shape,
which is what the RGA-tree builder (package doctree) walks.

goldmark's AST is read-only and HTML-oriented: it has no "render back to
Markdown" pass, and its node types aren't designed to survive being spliced
apart and reassembled by a CRDT. Rather than fight that, this package
converts once, at the boundary, into a small tree of uniform Nodes, and
ships its own minimal Markdown renderer for the reverse direction.

Inline formatting (emphasis, strong, code spans, autolinks) is not
decomposed into further nodes: collaborative editing at the character
level inside a run of text is out of scope here, so it is captured
verbatim as part of a single "text" leaf's raw Markdown. Only links and
images are split out as their own nodes, since a link's URL is an
addressable attribute and an image is structurally its own leaf, distinct
from plain text.
*/
package mdast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Node is this package's stable representation of a Markdown AST node. A
// Parent has non-nil Children (even if empty); a Leaf has nil Children and
// carries its content directly in Raw.
type Node struct {
	// Type names the node kind: "root", "heading", "paragraph", "list",
	// "listItem", "blockquote", "link", "text", "image", "code",
	// "thematicBreak", "html".
	Type string
	// Attributes holds every non-Children property of the node (heading
	// depth, link URL, list ordered-ness, code language, ...).
	Attributes map[string]any
	// Children holds the node's ordered child collection; nil for leaves.
	Children []*Node
	// Raw holds a leaf's content, verbatim Markdown source for "text" and
	// "image" leaves, the fenced code body for "code" leaves.
	Raw string
}

// IsLeaf reports whether n has no ordered child collection.
func (n *Node) IsLeaf() bool { return n.Children == nil }

// Parse converts Markdown source into a Node tree rooted at "root".
func Parse(source string) (*Node, error) {
	src := []byte(source)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	if doc.Kind() != gast.KindDocument {
		return nil, fmt.Errorf("mdast: parser returned %v, not a document", doc.Kind())
	}
	children := convertBlockChildren(doc, src)
	if children == nil {
		children = []*Node{}
	}
	return &Node{
		Type:     "root",
		Children: children,
	}, nil
}

// Stringify renders a Node tree back to Markdown text.
func Stringify(n *Node) string {
	var sb strings.Builder
	writeBlockChildren(&sb, n.Children)
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Fingerprint returns a stable content hash of a node, derived from
// stringification: for a leaf, its own rendered Markdown; for a parent, a
// one-node rendering of itself with its children stripped (so that two
// parents with identical type and attributes, but different children,
// fingerprint identically). doctree.Fingerprint and package changeset call
// this only for leaves; they fingerprint parents with CanonicalAttributes.
func Fingerprint(n *Node) string {
	if n.IsLeaf() {
		var sb strings.Builder
		writeInline(&sb, n)
		return sb.String()
	}
	shallow := &Node{Type: n.Type, Attributes: n.Attributes}
	var sb strings.Builder
	writeBlockChildren(&sb, []*Node{shallow})
	return sb.String()
}

// +-------+
// | Parse |
// +-------+

func convertBlockChildren(parent gast.Node, src []byte) []*Node {
	var out []*Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if node := convertBlock(c, src); node != nil {
			out = append(out, node)
		}
	}
	return out
}

func convertBlock(n gast.Node, src []byte) *Node {
	switch v := n.(type) {
	case *gast.Heading:
		return &Node{
			Type:       "heading",
			Attributes: map[string]any{"depth": v.Level},
			Children:   convertInline(v, src),
		}
	case *gast.Paragraph:
		return &Node{
			Type:     "paragraph",
			Children: convertInline(v, src),
		}
	case *gast.TextBlock:
		return &Node{
			Type:     "paragraph",
			Children: convertInline(v, src),
		}
	case *gast.List:
		return &Node{
			Type: "list",
			Attributes: map[string]any{
				"ordered": v.IsOrdered(),
				"start":   v.Start,
			},
			Children: convertBlockChildren(v, src),
		}
	case *gast.ListItem:
		return &Node{
			Type:     "listItem",
			Children: convertBlockChildren(v, src),
		}
	case *gast.Blockquote:
		return &Node{
			Type:     "blockquote",
			Children: convertBlockChildren(v, src),
		}
	case *gast.ThematicBreak:
		return &Node{Type: "thematicBreak", Raw: "---"}
	case *gast.FencedCodeBlock:
		lang := ""
		if v.Info != nil {
			lang = strings.TrimSpace(string(v.Info.Segment.Value(src)))
		}
		return &Node{
			Type:       "code",
			Attributes: map[string]any{"lang": lang},
			Raw:        linesText(v, src),
		}
	case *gast.CodeBlock:
		return &Node{
			Type: "code",
			Raw:  linesText(v, src),
		}
	default:
		// Unrecognized block kinds (raw HTML blocks, etc.) are preserved
		// verbatim as an opaque leaf rather than dropped.
		return &Node{Type: "html", Raw: linesText(n, src)}
	}
}

func linesText(n gast.Node, src []byte) string {
	lines := n.Lines()
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	return sb.String()
}

func convertInline(parent gast.Node, src []byte) []*Node {
	var out []*Node
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, &Node{Type: "text", Raw: buf.String()})
			buf.Reset()
		}
	}
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *gast.Link:
			flush()
			out = append(out, &Node{
				Type: "link",
				Attributes: map[string]any{
					"url":   string(v.Destination),
					"title": string(v.Title),
				},
				Children: []*Node{{Type: "text", Raw: inlinePlainText(v, src)}},
			})
		case *gast.Image:
			flush()
			alt := inlinePlainText(v, src)
			out = append(out, &Node{Type: "image", Raw: imageMarkdown(alt, string(v.Destination), string(v.Title))})
		default:
			buf.WriteString(renderRun(c, src))
		}
	}
	flush()
	return out
}

func inlinePlainText(n gast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		sb.WriteString(renderRun(c, src))
	}
	return sb.String()
}

func renderRun(n gast.Node, src []byte) string {
	switch v := n.(type) {
	case *gast.Text:
		s := string(v.Segment.Value(src))
		if v.HardLineBreak() {
			return s + "  \n"
		}
		if v.SoftLineBreak() {
			return s + "\n"
		}
		return s
	case *gast.String:
		return string(v.Value)
	case *gast.CodeSpan:
		return "`" + inlinePlainText(v, src) + "`"
	case *gast.Emphasis:
		marker := strings.Repeat("*", v.Level)
		return marker + inlinePlainText(v, src) + marker
	case *gast.AutoLink:
		return "<" + string(v.URL(src)) + ">"
	case *gast.RawHTML:
		return linesText(v, src)
	default:
		return inlinePlainText(v, src)
	}
}

func imageMarkdown(alt, url, title string) string {
	if title != "" {
		return fmt.Sprintf("![%s](%s %q)", alt, url, title)
	}
	return fmt.Sprintf("![%s](%s)", alt, url)
}

// +------------+
// | Stringify  |
// +------------+

func writeBlockChildren(sb *strings.Builder, children []*Node) {
	for i, child := range children {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeBlock(sb, child)
	}
}

func writeBlock(sb *strings.Builder, n *Node) {
	switch n.Type {
	case "root":
		writeBlockChildren(sb, n.Children)
	case "heading":
		depth, _ := n.Attributes["depth"].(int)
		sb.WriteString(strings.Repeat("#", depth))
		sb.WriteString(" ")
		writeInlineChildren(sb, n.Children)
		sb.WriteString("\n")
	case "paragraph":
		writeInlineChildren(sb, n.Children)
		sb.WriteString("\n")
	case "list":
		writeList(sb, n)
	case "blockquote":
		var inner strings.Builder
		writeBlockChildren(&inner, n.Children)
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			sb.WriteString("> ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	case "thematicBreak":
		sb.WriteString("---\n")
	case "code":
		lang, _ := n.Attributes["lang"].(string)
		sb.WriteString("```")
		sb.WriteString(lang)
		sb.WriteString("\n")
		sb.WriteString(n.Raw)
		if !strings.HasSuffix(n.Raw, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	case "html":
		sb.WriteString(n.Raw)
	default:
		writeInline(sb, n)
		sb.WriteString("\n")
	}
}

func writeList(sb *strings.Builder, n *Node) {
	ordered, _ := n.Attributes["ordered"].(bool)
	start, _ := n.Attributes["start"].(int)
	if !ordered {
		start = 0
	} else if start == 0 {
		start = 1
	}
	for i, item := range n.Children {
		var marker string
		if ordered {
			marker = fmt.Sprintf("%d. ", start+i)
		} else {
			marker = "- "
		}
		var inner strings.Builder
		writeBlockChildren(&inner, item.Children)
		lines := strings.Split(strings.TrimRight(inner.String(), "\n"), "\n")
		indent := strings.Repeat(" ", len(marker))
		for j, line := range lines {
			if j == 0 {
				sb.WriteString(marker)
			} else {
				sb.WriteString(indent)
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
}

func writeInlineChildren(sb *strings.Builder, children []*Node) {
	for _, child := range children {
		writeInline(sb, child)
	}
}

func writeInline(sb *strings.Builder, n *Node) {
	switch n.Type {
	case "text":
		sb.WriteString(n.Raw)
	case "image":
		sb.WriteString(n.Raw)
	case "link":
		url, _ := n.Attributes["url"].(string)
		title, _ := n.Attributes["title"].(string)
		sb.WriteString("[")
		writeInlineChildren(sb, n.Children)
		sb.WriteString("](")
		sb.WriteString(url)
		if title != "" {
			fmt.Fprintf(sb, " %q", title)
		}
		sb.WriteString(")")
	default:
		sb.WriteString(n.Raw)
	}
}

// +------------------------+
// | Attribute serialization |
// +------------------------+

// CanonicalAttributes renders a node's type and attribute map (excluding
// Children) as a stable, sorted-key string. Used by package doctree to
// fingerprint Parent nodes.
func CanonicalAttributes(nodeType string, attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(nodeType)
	sb.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%s=%v", k, attrs[k])
	}
	sb.WriteString("}")
	return sb.String()
}
