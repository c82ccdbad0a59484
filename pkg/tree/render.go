package tree

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// Renderer writes a tree to an output stream.
type Renderer interface {
	Render(w io.Writer, root *Node) error
}

// TextRenderer draws a tree with box-drawing connectors and humanized
// sizes, followed by a totals footer.
type TextRenderer struct{}

// Render writes the tree as text.
func (TextRenderer) Render(w io.Writer, root *Node) error {
	if _, err := fmt.Fprintln(w, label(root)); err != nil {
		return fmt.Errorf("failed to render tree: %w", err)
	}

	if err := renderChildren(w, root, ""); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d files, %s\n", root.FileCount, humanize.Bytes(uint64(root.TotalBytes))) // #nosec G115 - sizes are non-negative
	if err != nil {
		return fmt.Errorf("failed to render tree: %w", err)
	}

	return nil
}

// renderChildren writes node's children at the given indent prefix.
func renderChildren(w io.Writer, node *Node, prefix string) error {
	for i, child := range node.Children {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(node.Children)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}

		if _, err := fmt.Fprintln(w, prefix+connector+label(child)); err != nil {
			return fmt.Errorf("failed to render tree: %w", err)
		}

		if child.IsDir {
			if err := renderChildren(w, child, childPrefix); err != nil {
				return err
			}
		}
	}

	return nil
}

// label formats one node's display line.
func label(node *Node) string {
	if node.IsDir {
		return fmt.Sprintf("%s (%d files, %s)", node.Name, node.FileCount, humanize.Bytes(uint64(node.TotalBytes))) // #nosec G115 - sizes are non-negative
	}

	return fmt.Sprintf("%s (%s)", node.Name, humanize.Bytes(uint64(node.Size))) // #nosec G115 - sizes are non-negative
}

// HTMLRenderer writes a tree as nested unordered lists with escaped
// names.
type HTMLRenderer struct{}

// Render writes the tree as an HTML fragment.
func (HTMLRenderer) Render(w io.Writer, root *Node) error {
	var sb strings.Builder

	sb.WriteString("<ul>\n")
	writeHTMLNode(&sb, root, 1)
	sb.WriteString("</ul>\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to render tree: %w", err)
	}

	return nil
}

// writeHTMLNode writes one node and its children.
func writeHTMLNode(sb *strings.Builder, node *Node, depth int) {
	indent := strings.Repeat("  ", depth)

	sb.WriteString(indent + "<li>" + html.EscapeString(label(node)))

	if len(node.Children) > 0 {
		sb.WriteString("\n" + indent + "<ul>\n")

		for _, child := range node.Children {
			writeHTMLNode(sb, child, depth+1)
		}

		sb.WriteString(indent + "</ul>\n" + indent)
	}

	sb.WriteString("</li>\n")
}
