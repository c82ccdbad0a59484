//nolint:varnamelen // Test files use idiomatic short variable names (t, g, p)
package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/filemon/pkg/storage"
)

func writeString(t *testing.T, p storage.Provider, path, content string) {
	t.Helper()

	err := p.WriteFile(context.Background(), path, strings.NewReader(content), nil)
	if err != nil {
		t.Fatalf("WriteFile(%s) failed: %v", path, err)
	}
}

func TestInMemoryProvider_RoundTrip(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")
	content := "hello filemon"
	writeString(t, p, "docs/test.txt", content)

	exists, err := p.Exists(context.Background(), "docs/test.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(exists).To(BeTrue())

	reader, err := p.ReadFile(context.Background(), "docs/test.txt", nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	data, err := io.ReadAll(reader)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(reader.Close()).To(Succeed())
	g.Expect(string(data)).To(Equal(content))

	// The checksum matches an independently computed hash.
	sum, err := p.Checksum(context.Background(), "docs/test.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(sum).To(Equal(storage.HashBytes([]byte(content))))
}

func TestInMemoryProvider_NotFound(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")

	_, err := p.ReadFile(context.Background(), "missing.txt", nil)
	g.Expect(err).To(MatchError(storage.ErrFileNotFound))

	err = p.DeleteFile(context.Background(), "missing.txt")
	g.Expect(err).To(MatchError(storage.ErrFileNotFound))

	_, err = p.List(context.Background(), "no-such-dir", "", true, "")
	g.Expect(err).To(MatchError(storage.ErrDirectoryNotFound))

	exists, err := p.Exists(context.Background(), "missing.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(exists).To(BeFalse())
}

func TestInMemoryProvider_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")

	err := p.WriteFile(context.Background(), "../outside.txt", strings.NewReader("x"), nil)
	g.Expect(err).To(MatchError(storage.ErrInvalidArgument))

	_, err = p.ReadFile(context.Background(), "", nil)
	g.Expect(err).To(MatchError(storage.ErrInvalidArgument))
}

func TestInMemoryProvider_ListPatternAndPaging(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")
	p.SetPageSize(2)

	writeString(t, p, "logs/a.log", "a")
	writeString(t, p, "logs/b.log", "b")
	writeString(t, p, "logs/c.log", "c")
	writeString(t, p, "logs/notes.txt", "n")

	var all []string

	token := ""
	for {
		page, err := p.List(context.Background(), "logs", "*.log", true, token)
		g.Expect(err).ShouldNot(HaveOccurred())

		for _, file := range page.Files {
			all = append(all, file.Path)
		}

		if page.NextToken == "" {
			break
		}

		token = page.NextToken
	}

	g.Expect(all).To(Equal([]string{"logs/a.log", "logs/b.log", "logs/c.log"}))
}

func TestInMemoryProvider_ListNonRecursive(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")
	writeString(t, p, "top.txt", "t")
	writeString(t, p, "sub/nested.txt", "n")

	page, err := p.List(context.Background(), "", "", false, "")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(page.Files).To(HaveLen(1))
	g.Expect(page.Files[0].Path).To(Equal("top.txt"))
}

func TestInMemoryProvider_Directories(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")

	err := p.CreateDirectory(context.Background(), "a/b/c")
	g.Expect(err).ShouldNot(HaveOccurred())

	exists, err := p.DirectoryExists(context.Background(), "a/b")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(exists).To(BeTrue())

	dirs, err := p.ListDirectories(context.Background(), "", "", true)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(dirs).To(Equal([]string{"a", "a/b", "a/b/c"}))

	// Non-recursive delete refuses a non-empty directory.
	err = p.DeleteDirectory(context.Background(), "a", false)
	g.Expect(err).To(MatchError(storage.ErrInvalidArgument))

	err = p.DeleteDirectory(context.Background(), "a", true)
	g.Expect(err).ShouldNot(HaveOccurred())

	exists, err = p.DirectoryExists(context.Background(), "a/b/c")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(exists).To(BeFalse())
}

func TestInMemoryProvider_UpdateMetadata(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")
	writeString(t, p, "tagged.txt", "x")

	md, err := p.UpdateMetadata(context.Background(), "tagged.txt", func(m *storage.FileMetadata) {
		if m.Attributes == nil {
			m.Attributes = make(map[string]string)
		}
		m.Attributes["reviewed"] = "yes"
	})
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(md.Attributes).To(HaveKeyWithValue("reviewed", "yes"))

	got, err := p.Metadata(context.Background(), "tagged.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(got.Attributes).To(HaveKeyWithValue("reviewed", "yes"))
}

func TestInMemoryProvider_CancelledContext(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p := storage.NewInMemoryProvider("mem")
	writeString(t, p, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ReadFile(ctx, "a.txt", nil)
	g.Expect(err).To(MatchError(storage.ErrCancelled))
}

func TestLocalProvider_RoundTrip(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p, err := storage.NewLocalProvider("disk", t.TempDir())
	g.Expect(err).ShouldNot(HaveOccurred())

	content := "local content"
	writeString(t, p, "sub/dir/file.txt", content)

	reader, err := p.ReadFile(context.Background(), "sub/dir/file.txt", nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	data, err := io.ReadAll(reader)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(reader.Close()).To(Succeed())
	g.Expect(string(data)).To(Equal(content))

	sum, err := p.Checksum(context.Background(), "sub/dir/file.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(sum).To(Equal(storage.HashBytes([]byte(content))))

	page, err := p.List(context.Background(), "", "**/*.txt", true, "")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(page.Files).To(HaveLen(1))
	g.Expect(page.Files[0].Path).To(Equal("sub/dir/file.txt"))

	g.Expect(p.CheckHealth(context.Background())).To(Succeed())
}

func TestLocalProvider_ReadProgress(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	p, err := storage.NewLocalProvider("disk", t.TempDir())
	g.Expect(err).ShouldNot(HaveOccurred())

	writeString(t, p, "data.bin", strings.Repeat("x", 1000))

	var reported int64

	reader, err := p.ReadFile(context.Background(), "data.bin", func(processed, total int64, _ string) {
		reported = processed
		g.Expect(total).To(Equal(int64(1000)))
	})
	g.Expect(err).ShouldNot(HaveOccurred())

	_, err = io.ReadAll(reader)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(reader.Close()).To(Succeed())
	g.Expect(reported).To(Equal(int64(1000)))
}
