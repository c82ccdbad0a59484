//nolint:varnamelen // Test files use idiomatic short variable names (t, g, md)
package storage_test

import (
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/filemon/pkg/storage"
)

func TestFileMetadata_Parent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	md := &storage.FileMetadata{Path: "docs/reports/2024/summary.txt"}
	parent, ok := md.Parent()
	g.Expect(ok).To(BeTrue())
	g.Expect(parent).To(Equal("docs/reports/2024"))

	// No separator means no parent.
	md = &storage.FileMetadata{Path: "summary.txt"}
	_, ok = md.Parent()
	g.Expect(ok).To(BeFalse())

	// Empty path means no parent.
	md = &storage.FileMetadata{Path: ""}
	_, ok = md.Parent()
	g.Expect(ok).To(BeFalse())
}

func TestFileMetadata_Name(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	md := &storage.FileMetadata{Path: "docs/summary.txt"}
	name, ok := md.Name()
	g.Expect(ok).To(BeTrue())
	g.Expect(name).To(Equal("summary.txt"))

	// A path without separators is returned whole.
	md = &storage.FileMetadata{Path: "summary.txt"}
	name, ok = md.Name()
	g.Expect(ok).To(BeTrue())
	g.Expect(name).To(Equal("summary.txt"))

	md = &storage.FileMetadata{Path: ""}
	_, ok = md.Name()
	g.Expect(ok).To(BeFalse())
}

func TestFileMetadata_Extension(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	md := &storage.FileMetadata{Path: "docs/archive.tar.gz"}
	ext, ok := md.Extension()
	g.Expect(ok).To(BeTrue())
	g.Expect(ext).To(Equal("gz"))

	md = &storage.FileMetadata{Path: "docs/README"}
	_, ok = md.Extension()
	g.Expect(ok).To(BeFalse())

	md = &storage.FileMetadata{Path: ""}
	_, ok = md.Extension()
	g.Expect(ok).To(BeFalse())
}

func TestFileMetadata_Clone(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	md := &storage.FileMetadata{
		Path:       "a/b.txt",
		Size:       42,
		Attributes: map[string]string{"owner": "ops"},
	}

	clone := md.Clone()
	clone.Attributes["owner"] = "dev"

	g.Expect(md.Attributes["owner"]).To(Equal("ops"))
	g.Expect(clone.Path).To(Equal("a/b.txt"))
	g.Expect(clone.Size).To(Equal(int64(42)))
}
