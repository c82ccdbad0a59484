//nolint:varnamelen // Test files use idiomatic short variable names (t, g, p)
package monitoring_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/filemon/internal/monitoring"
)

func appendEvent(t *testing.T, store monitoring.EventStore, location, path string, eventType monitoring.EventType, at time.Time) {
	t.Helper()

	g := NewWithT(t)
	g.Expect(store.Append(context.Background(), &monitoring.FileEvent{
		ID:           uuid.New(),
		LocationName: location,
		FilePath:     path,
		Type:         eventType,
		DetectedAt:   at,
		Size:         1,
		Checksum:     "sum",
	})).To(Succeed())
}

func TestMemoryEventStore_OrderAndCount(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store := monitoring.NewMemoryEventStore()
	base := time.Now()

	appendEvent(t, store, "docs", "b.txt", monitoring.EventAdded, base)
	appendEvent(t, store, "docs", "a.txt", monitoring.EventAdded, base.Add(time.Second))
	appendEvent(t, store, "docs", "a.txt", monitoring.EventChanged, base.Add(2*time.Second))
	appendEvent(t, store, "other", "c.txt", monitoring.EventAdded, base)

	events, err := store.EventsForLocation(context.Background(), "docs")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(events).To(HaveLen(3))
	g.Expect(events[0].FilePath).To(Equal("b.txt"))
	g.Expect(events[1].FilePath).To(Equal("a.txt"))
	g.Expect(events[2].Type).To(Equal(monitoring.EventChanged))

	forPath, err := store.EventsForPath(context.Background(), "docs", "a.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(forPath).To(HaveLen(2))
	g.Expect(forPath[0].Type).To(Equal(monitoring.EventAdded))
	g.Expect(forPath[1].Type).To(Equal(monitoring.EventChanged))

	count, err := store.Count(context.Background(), "docs")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(count).To(Equal(3))
}

func TestMemoryEventStore_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store := monitoring.NewMemoryEventStore()

	const writers = 8

	const perWriter = 25

	var wg sync.WaitGroup

	for w := 0; w < writers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < perWriter; j++ {
				appendEvent(t, store, "docs", "f.txt", monitoring.EventUnchanged, time.Now())
			}
		}()
	}

	wg.Wait()

	count, err := store.Count(context.Background(), "docs")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(count).To(Equal(writers * perWriter))
}

func TestSQLiteEventStore_RoundTrip(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	store, err := monitoring.NewSQLiteEventStore(filepath.Join(t.TempDir(), "events.db"))
	g.Expect(err).ShouldNot(HaveOccurred())

	t.Cleanup(func() { _ = store.Close() })

	base := time.Now().UTC().Truncate(time.Millisecond)

	appendEvent(t, store, "docs", "a.txt", monitoring.EventAdded, base)
	appendEvent(t, store, "docs", "a.txt", monitoring.EventChanged, base.Add(time.Second))
	appendEvent(t, store, "docs", "b.txt", monitoring.EventAdded, base.Add(2*time.Second))
	appendEvent(t, store, "other", "a.txt", monitoring.EventAdded, base)

	events, err := store.EventsForLocation(context.Background(), "docs")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(events).To(HaveLen(3))
	g.Expect(events[0].Type).To(Equal(monitoring.EventAdded))
	g.Expect(events[0].DetectedAt.Equal(base)).To(BeTrue())

	forPath, err := store.EventsForPath(context.Background(), "docs", "a.txt")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(forPath).To(HaveLen(2))
	g.Expect(forPath[1].Type).To(Equal(monitoring.EventChanged))

	count, err := store.Count(context.Background(), "docs")
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(count).To(Equal(3))
}

func TestParseEventType_RoundTrip(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	for _, eventType := range []monitoring.EventType{
		monitoring.EventAdded,
		monitoring.EventChanged,
		monitoring.EventDeleted,
		monitoring.EventUnchanged,
	} {
		parsed, err := monitoring.ParseEventType(eventType.String())
		g.Expect(err).ShouldNot(HaveOccurred())
		g.Expect(parsed).To(Equal(eventType))
	}

	_, err := monitoring.ParseEventType("exploded")
	g.Expect(err).To(HaveOccurred())
}
