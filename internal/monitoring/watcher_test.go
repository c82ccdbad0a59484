//nolint:varnamelen // Test files use idiomatic short variable names (t, g, p)
package monitoring_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/filemon/internal/monitoring"
	"github.com/joe/filemon/pkg/storage"
)

func TestWatcher_EmitsAddedChangedDeleted(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	root := t.TempDir()

	provider, err := storage.NewLocalProvider("live", root)
	g.Expect(err).ShouldNot(HaveOccurred())

	engine, _ := newTestEngine(t, monitoring.LocationConfig{
		Name:     "live",
		Provider: provider,
		Pattern:  "**/*.txt",
	})

	watcher, err := engine.NewWatcher("live")
	g.Expect(err).ShouldNot(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	watchDone := make(chan error, 1)

	go func() { watchDone <- watcher.Watch(ctx) }()

	// Give the watcher a moment to register its watches.
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(root, "note.txt")
	g.Expect(os.WriteFile(target, []byte("v1"), 0o600)).To(Succeed())

	eventsFor := func(path string) []*monitoring.FileEvent {
		events, storeErr := engine.Store().EventsForPath(context.Background(), "live", path)
		g.Expect(storeErr).ShouldNot(HaveOccurred())

		return events
	}

	g.Eventually(func() int { return len(eventsFor("note.txt")) }, 3*time.Second, 20*time.Millisecond).
		Should(BeNumerically(">=", 1))
	g.Expect(eventsFor("note.txt")[0].Type).To(Equal(monitoring.EventAdded))

	g.Expect(os.WriteFile(target, []byte("v2 longer"), 0o600)).To(Succeed())

	g.Eventually(func() monitoring.EventType {
		events := eventsFor("note.txt")

		return events[len(events)-1].Type
	}, 3*time.Second, 20*time.Millisecond).Should(Equal(monitoring.EventChanged))

	g.Expect(os.Remove(target)).To(Succeed())

	g.Eventually(func() monitoring.EventType {
		events := eventsFor("note.txt")

		return events[len(events)-1].Type
	}, 3*time.Second, 20*time.Millisecond).Should(Equal(monitoring.EventDeleted))

	// Files outside the pattern never reach the store.
	g.Expect(os.WriteFile(filepath.Join(root, "ignored.log"), []byte("x"), 0o600)).To(Succeed())
	g.Consistently(func() int { return len(eventsFor("ignored.log")) }, 200*time.Millisecond, 50*time.Millisecond).
		Should(BeZero())

	cancel()
	g.Eventually(watchDone, time.Second).Should(Receive(MatchError(context.Canceled)))
}

func TestWatcher_RejectsOnDemandLocations(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	provider, err := storage.NewLocalProvider("batch", t.TempDir())
	g.Expect(err).ShouldNot(HaveOccurred())

	engine, _ := newTestEngine(t, monitoring.LocationConfig{
		Name:         "batch",
		Provider:     provider,
		OnDemandOnly: true,
	})

	_, err = engine.NewWatcher("batch")
	g.Expect(err).To(HaveOccurred())
}

func TestWatcher_RejectsNonLocalProviders(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine, _ := newTestEngine(t, monitoring.LocationConfig{
		Name:     "mem",
		Provider: storage.NewInMemoryProvider("mem"),
	})

	_, err := engine.NewWatcher("mem")
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, monitoring.ErrUnknownLocation)).To(BeFalse())
}
