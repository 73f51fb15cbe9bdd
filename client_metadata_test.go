package kafka

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestMetadataStateRefreshSingleFlight exercises §8 scenario 3: many
// concurrent callers overlapping a single in-flight refresh must all observe
// its one outcome, and the fetch function itself must run exactly once.
func TestMetadataStateRefreshSingleFlight(t *testing.T) {
	state := newMetadataState()

	var calls int32
	release := make(chan struct{})
	fetch := func() (*Metadata, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return newMetadata(nil, nil, 0), nil
	}

	const waiters = 5
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = state.refresh(fetch)
		}()
	}

	// give every goroutine a chance to either start the fetch or queue as
	// a waiter before unblocking it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("fetch ran %d times, want exactly 1 for an overlapping refresh", got)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("waiter %d got error %v, want nil", i, err)
		}
	}
	if state.current() == nil {
		t.Fatal("a successful refresh should publish a snapshot")
	}
}

func TestMetadataStateRefreshDoesNotCacheOnError(t *testing.T) {
	state := newMetadataState()
	boom := errBoom{}

	err := state.refresh(func() (*Metadata, error) {
		return nil, boom
	})
	if err != boom {
		t.Fatalf("got %v, want errBoom", err)
	}
	if state.current() != nil {
		t.Fatal("a failed refresh must not publish a snapshot")
	}

	// a later, successful refresh should still be able to run (the
	// failure must not have left state.loading stuck true).
	err = state.refresh(func() (*Metadata, error) {
		return newMetadata(nil, nil, 0), nil
	})
	if err != nil {
		t.Fatalf("refresh after a prior failure returned %v, want nil", err)
	}
	if state.current() == nil {
		t.Fatal("expected a snapshot after the second, successful refresh")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
