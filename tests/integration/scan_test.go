//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/filemon/internal/monitoring"
	"github.com/joe/filemon/pkg/storage"
)

// TestIntegration_ScanLifecycle runs a full scan lifecycle against a
// real directory: initial discovery, a change, a deletion and the
// recorded history behind them, with archived copies landing in a
// second provider.
func TestIntegration_ScanLifecycle(t *testing.T) {
	g := NewWithT(t)

	sourceDir := t.TempDir()

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		err := os.WriteFile(filepath.Join(sourceDir, name), []byte("content of "+name), 0o600)
		g.Expect(err).ShouldNot(HaveOccurred())
	}

	source, err := storage.NewLocalProvider("source", sourceDir)
	g.Expect(err).ShouldNot(HaveOccurred())

	archive, err := storage.NewLocalProvider("archive", t.TempDir())
	g.Expect(err).ShouldNot(HaveOccurred())

	store, err := monitoring.NewSQLiteEventStore(filepath.Join(t.TempDir(), "events.db"))
	g.Expect(err).ShouldNot(HaveOccurred())
	defer func() { _ = store.Close() }()

	engine := monitoring.NewEngine(store, nil)
	defer engine.Close()

	location, err := engine.AddLocation(monitoring.LocationConfig{
		Name:     "docs",
		Provider: source,
		Pattern:  "**/*.txt",
		Processors: []monitoring.Processor{
			monitoring.NewArchiveProcessor(source, archive, "backup"),
		},
	})
	g.Expect(err).ShouldNot(HaveOccurred())

	// Initial scan discovers everything.
	first, err := engine.ScanLocation(context.Background(), "docs", monitoring.ScanOptions{}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(first.Counts()).To(Equal(map[monitoring.EventType]int{monitoring.EventAdded: 3}))

	g.Expect(location.WaitForDrain(5 * time.Second)).To(Succeed())

	// Every added file was archived.
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		exists, existsErr := archive.Exists(context.Background(), "backup/"+name)
		g.Expect(existsErr).ShouldNot(HaveOccurred())
		g.Expect(exists).To(BeTrue(), "expected %s to be archived", name)
	}

	// Change one file, delete another.
	g.Expect(os.WriteFile(filepath.Join(sourceDir, "a.txt"), []byte("rewritten"), 0o600)).To(Succeed())
	g.Expect(os.Remove(filepath.Join(sourceDir, "b.txt"))).To(Succeed())

	second, err := engine.ScanLocation(context.Background(), "docs", monitoring.ScanOptions{WaitForProcessing: true}, nil)
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(second.Counts()).To(Equal(map[monitoring.EventType]int{
		monitoring.EventChanged:   1,
		monitoring.EventDeleted:   1,
		monitoring.EventUnchanged: 1,
	}))

	// The store carries the full history across both scans.
	total, err := store.Count(context.Background(), "docs")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(total).To(Equal(6))

	history, err := store.EventsForPath(context.Background(), "docs", "a.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(history).To(HaveLen(2))
	g.Expect(history[0].Type).To(Equal(monitoring.EventAdded))
	g.Expect(history[1].Type).To(Equal(monitoring.EventChanged))

	// The archived copy reflects the rewrite.
	sum, err := archive.Checksum(context.Background(), "backup/a.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(sum).To(Equal(storage.HashBytes([]byte("rewritten"))))
}

// TestIntegration_LargerFileSet_CountsMatch verifies counts over nested
// directories with more files.
func TestIntegration_LargerFileSet_CountsMatch(t *testing.T) {
	g := NewWithT(t)

	sourceDir := t.TempDir()

	numDirs := 10
	numFilesPerDir := 10
	expectedFileCount := numDirs * numFilesPerDir

	for i := 0; i < numDirs; i++ {
		subdir := filepath.Join(sourceDir, fmt.Sprintf("subdir%d", i))
		g.Expect(os.MkdirAll(subdir, 0o750)).To(Succeed())

		for j := 0; j < numFilesPerDir; j++ {
			path := filepath.Join(subdir, fmt.Sprintf("file%d.txt", j))
			g.Expect(os.WriteFile(path, []byte("test content"), 0o600)).To(Succeed())
		}
	}

	source, err := storage.NewLocalProvider("source", sourceDir)
	g.Expect(err).ShouldNot(HaveOccurred())

	engine := monitoring.NewEngine(monitoring.NewMemoryEventStore(), nil)
	defer engine.Close()

	_, err = engine.AddLocation(monitoring.LocationConfig{Name: "bulk", Provider: source})
	g.Expect(err).ShouldNot(HaveOccurred())

	var final monitoring.ScanProgress

	scan, err := engine.ScanLocation(context.Background(), "bulk", monitoring.ScanOptions{}, func(p monitoring.ScanProgress) {
		final = p
	})
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(scan.Events).To(HaveLen(expectedFileCount))
	g.Expect(scan.Counts()[monitoring.EventAdded]).To(Equal(expectedFileCount))

	// The final progress report covers every file.
	g.Expect(final.FilesScanned).To(Equal(expectedFileCount))
	g.Expect(final.TotalFiles).To(Equal(expectedFileCount))
	g.Expect(final.Percent).To(Equal(100))
}
