//nolint:varnamelen // Test files use idiomatic short variable names (t, g, p)
package tree_test

import (
	"context"
	"strings"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/filemon/pkg/storage"
	"github.com/joe/filemon/pkg/tree"
)

func seedProvider(t *testing.T) *storage.InMemoryProvider {
	t.Helper()

	g := NewWithT(t)
	p := storage.NewInMemoryProvider("docs")

	for path, content := range map[string]string{
		"readme.md":          "hello",
		"reports/jan.txt":    "january report",
		"reports/feb.txt":    "february",
		"reports/old/q1.txt": "quarter one",
	} {
		g.Expect(p.WriteFile(context.Background(), path, strings.NewReader(content), nil)).To(Succeed())
	}

	g.Expect(p.CreateDirectory(context.Background(), "empty")).To(Succeed())

	return p
}

func TestWalk_AggregatesCountsAndBytes(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := seedProvider(t)

	root, err := tree.Walk(context.Background(), p, "", tree.WalkOptions{}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(root.IsDir).To(BeTrue())
	g.Expect(root.FileCount).To(Equal(4))
	g.Expect(root.TotalBytes).To(Equal(int64(5 + 14 + 8 + 11)))

	var reports *tree.Node

	for _, child := range root.Children {
		if child.Name == "reports" {
			reports = child
		}
	}

	g.Expect(reports).ToNot(BeNil())
	g.Expect(reports.FileCount).To(Equal(3))
	g.Expect(reports.TotalBytes).To(Equal(int64(14 + 8 + 11)))

	// Directories sort before files, both groups alphabetical.
	g.Expect(root.Children[0].IsDir).To(BeTrue())
	g.Expect(root.Children[0].Name).To(Equal("empty"))
	g.Expect(root.Children[0].FileCount).To(BeZero())
}

func TestWalk_DirectoriesOnlyStillAggregates(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := seedProvider(t)

	root, err := tree.Walk(context.Background(), p, "", tree.WalkOptions{DirectoriesOnly: true}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(root.FileCount).To(Equal(4))

	for _, child := range root.Children {
		g.Expect(child.IsDir).To(BeTrue())
	}
}

func TestWalk_SubtreeRoot(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := seedProvider(t)

	root, err := tree.Walk(context.Background(), p, "reports", tree.WalkOptions{}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(root.Name).To(Equal("reports"))
	g.Expect(root.FileCount).To(Equal(3))
	g.Expect(root.Children).To(HaveLen(3))
	g.Expect(root.Children[0].Name).To(Equal("old"))
}

func TestWalk_ReportsProgress(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := seedProvider(t)

	var (
		lastFiles int
		lastBytes int64
	)

	_, err := tree.Walk(context.Background(), p, "", tree.WalkOptions{}, func(files int, bytes int64) {
		g.Expect(files).To(BeNumerically(">", lastFiles))
		lastFiles = files
		lastBytes = bytes
	})
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(lastFiles).To(Equal(4))
	g.Expect(lastBytes).To(Equal(int64(38)))
}

func TestTextRenderer_DrawsConnectorsAndFooter(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := seedProvider(t)

	root, err := tree.Walk(context.Background(), p, "", tree.WalkOptions{}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	var out strings.Builder

	g.Expect(tree.TextRenderer{}.Render(&out, root)).To(Succeed())

	rendered := out.String()
	g.Expect(rendered).To(ContainSubstring("├── "))
	g.Expect(rendered).To(ContainSubstring("└── "))
	g.Expect(rendered).To(ContainSubstring("│"))
	g.Expect(rendered).To(ContainSubstring("readme.md (5 B)"))
	g.Expect(rendered).To(ContainSubstring("4 files"))
}

func TestHTMLRenderer_EscapesNames(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("docs")
	g.Expect(p.WriteFile(context.Background(), "a<b>.txt", strings.NewReader("x"), nil)).To(Succeed())

	root, err := tree.Walk(context.Background(), p, "", tree.WalkOptions{}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	var out strings.Builder

	g.Expect(tree.HTMLRenderer{}.Render(&out, root)).To(Succeed())

	rendered := out.String()
	g.Expect(rendered).To(ContainSubstring("<ul>"))
	g.Expect(rendered).To(ContainSubstring("a&lt;b&gt;.txt"))
	g.Expect(rendered).ToNot(ContainSubstring("a<b>.txt"))
}
