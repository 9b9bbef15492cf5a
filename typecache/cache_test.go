package typecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingLister serves canned type lists and counts fetches.
type countingLister struct {
	fetches atomic.Int64
	names   []string
	err     error

	// block, when set, holds every fetch until released
	block chan struct{}
}

func (l *countingLister) ListEntityTypes(ctx context.Context) ([]string, error) {
	l.fetches.Add(1)
	if l.block != nil {
		<-l.block
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.names, nil
}

func TestIsValidBaselineBeforeDiscovery(t *testing.T) {
	t.Parallel()

	lister := &countingLister{names: []string{}}
	cache := New(lister, time.Minute)

	if !cache.IsValid(context.Background(), "Bug") {
		t.Error("baseline type Bug should always be valid")
	}
	if cache.IsValid(context.Background(), "CustomRisk") {
		t.Error("unknown type should not validate before discovery finds it")
	}
}

func TestDiscoveryAddsCustomTypes(t *testing.T) {
	t.Parallel()

	lister := &countingLister{names: []string{"UserStory", "CustomRisk"}}
	cache := New(lister, time.Minute)

	if err := cache.EnsurePopulated(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}

	if !cache.IsValid(context.Background(), "CustomRisk") {
		t.Error("discovered custom type should validate")
	}
	if !cache.IsValid(context.Background(), "Bug") {
		t.Error("baseline type should survive discovery merge")
	}
	if cache.Degraded() {
		t.Error("successful discovery should not be degraded")
	}
}

func TestSingleFlightPopulation(t *testing.T) {
	t.Parallel()

	lister := &countingLister{
		names: []string{"UserStory"},
		block: make(chan struct{}),
	}
	cache := New(lister, time.Minute)

	const callers = 32
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_ = cache.EnsurePopulated(context.Background())
		}()
	}

	// Let the callers pile up behind the one in-flight fetch, then release.
	time.Sleep(50 * time.Millisecond)
	close(lister.block)
	wg.Wait()

	if got := lister.fetches.Load(); got != 1 {
		t.Errorf("expected exactly 1 discovery fetch for %d concurrent callers, got %d", callers, got)
	}
}

func TestDiscoveryFailureFallsBackToBaseline(t *testing.T) {
	t.Parallel()

	lister := &countingLister{err: errors.New("boom")}
	cache := New(lister, time.Minute)

	err := cache.EnsurePopulated(context.Background())
	if err == nil {
		t.Fatal("expected populate error")
	}

	if !cache.Degraded() {
		t.Error("failed discovery should mark the cache degraded")
	}
	if !cache.IsValid(context.Background(), "Bug") {
		t.Error("baseline types must stay valid after failed discovery")
	}
	if cache.IsValid(context.Background(), "CustomRisk") {
		t.Error("unknown types must not validate after failed discovery")
	}
}

func TestTTLExpiryAnswersStaleAndRefreshes(t *testing.T) {
	t.Parallel()

	lister := &countingLister{names: []string{"CustomRisk"}}
	cache := New(lister, 10*time.Millisecond)

	if err := cache.EnsurePopulated(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}
	if got := lister.fetches.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}

	time.Sleep(20 * time.Millisecond)

	// The stale set must still answer without blocking.
	if !cache.IsValid(context.Background(), "CustomRisk") {
		t.Error("stale set should answer validation during refresh")
	}

	// The background refresh should land shortly after.
	deadline := time.Now().Add(time.Second)
	for lister.fetches.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("expected a background refresh after TTL expiry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestInvalidateResetsToBaseline(t *testing.T) {
	t.Parallel()

	lister := &countingLister{names: []string{"CustomRisk"}}
	cache := New(lister, time.Minute)

	if err := cache.EnsurePopulated(context.Background()); err != nil {
		t.Fatalf("populate: %v", err)
	}
	cache.Invalidate()

	// IsValid on an unpopulated cache repopulates synchronously.
	if !cache.IsValid(context.Background(), "CustomRisk") {
		t.Error("invalidate should trigger repopulation on next validation")
	}
	if got := lister.fetches.Load(); got != 2 {
		t.Errorf("expected 2 fetches after invalidate, got %d", got)
	}
}

func TestNamesSnapshotSorted(t *testing.T) {
	t.Parallel()

	cache := New(&countingLister{}, time.Minute)
	names := cache.Names()
	if len(names) != len(BaselineTypes) {
		t.Fatalf("expected %d baseline names, got %d", len(BaselineTypes), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
