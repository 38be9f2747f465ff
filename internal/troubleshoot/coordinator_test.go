// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package troubleshoot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andygivens/orbit/internal/models"
	"github.com/andygivens/orbit/internal/providers"
)

// newCoordinatorFixture publishes one snapshot over the given adapters
// and returns a coordinator plus a counter of scheduled refreshes.
func newCoordinatorFixture(t *testing.T, adapters ...*fakeAdapter) (*Coordinator, *atomic.Int32) {
	t.Helper()

	list := make([]providers.Adapter, len(adapters))
	for i, a := range adapters {
		list[i] = a
	}
	reg := providers.NewStaticRegistry(list...)

	r := NewRefresher(reg, nil, "family", 100, "7d", "0d")
	if _, err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("seed Refresh() error: %v", err)
	}

	var refreshes atomic.Int32
	c := NewCoordinator(reg, nil, r, func() { refreshes.Add(1) })
	return c, &refreshes
}

func TestLinkRejectsSameTarget(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", "c1"))
	c, refreshes := newCoordinatorFixture(t, apple)

	err := c.Link(context.Background(), "apple", "e1", "c1")
	if !errors.Is(err, ErrSameTarget) {
		t.Fatalf("Link() error = %v, want ErrSameTarget", err)
	}

	// Rejected locally: no network call, no refresh, key stays Idle.
	if apple.callCount("link") != 0 {
		t.Error("Link() made a network call for a same-target request")
	}
	if refreshes.Load() != 0 {
		t.Error("Link() scheduled a refresh for a rejected request")
	}
	if states := c.States(); len(states) != 0 {
		t.Errorf("action states = %v, want none", states)
	}
}

func TestLinkRejectsWithoutTargets(t *testing.T) {
	// Only unlinked records: no canonical ids exist to link to.
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", ""))
	c, _ := newCoordinatorFixture(t, apple)

	err := c.Link(context.Background(), "apple", "e1", "c9")
	if !errors.Is(err, ErrNoLinkTargets) {
		t.Fatalf("Link() error = %v, want ErrNoLinkTargets", err)
	}
	if apple.callCount("link") != 0 {
		t.Error("Link() made a network call with no valid targets")
	}
}

func TestLinkSuccessSchedulesRefresh(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud",
		rec("apple", "e1", ""), rec("apple", "e2", "c1"))
	c, refreshes := newCoordinatorFixture(t, apple)

	if err := c.Link(context.Background(), "apple", "e1", "c1"); err != nil {
		t.Fatalf("Link() error: %v", err)
	}
	if apple.callCount("link") != 1 {
		t.Errorf("link calls = %d, want 1", apple.callCount("link"))
	}
	if refreshes.Load() != 1 {
		t.Errorf("scheduled refreshes = %d, want 1", refreshes.Load())
	}
	if states := c.States(); len(states) != 0 {
		t.Errorf("action states after settlement = %v, want none", states)
	}
}

func TestUnlinkRequiresCanonicalID(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", ""))
	c, _ := newCoordinatorFixture(t, apple)

	err := c.Unlink(context.Background(), "apple", "e1")
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Unlink() error = %v, want ErrNotLinked", err)
	}
	if apple.callCount("unlink") != 0 {
		t.Error("Unlink() made a network call for an unlinked record")
	}
}

func TestConcurrentUnlinkSameKeyIsNoOp(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", "c1"))
	c, refreshes := newCoordinatorFixture(t, apple)
	apple.gate = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.Unlink(ctx, "apple", "e1")
	}()

	// Wait for the first call to be in flight.
	for i := 0; i < 100 && apple.callCount("unlink") == 0; i++ {
		time.Sleep(time.Millisecond)
	}

	// Second submission for the same key before the first settles.
	if err := c.Unlink(ctx, "apple", "e1"); err != nil {
		t.Fatalf("duplicate Unlink() returned error %v, want silent no-op", err)
	}
	if got := apple.callCount("unlink"); got != 1 {
		t.Fatalf("unlink network calls = %d, want 1", got)
	}

	// The pending key is visible while in flight.
	states := c.States()
	if len(states) != 1 || states[0].Phase != models.ActionPending {
		t.Errorf("in-flight states = %v, want one pending", states)
	}

	close(apple.gate)
	wg.Wait()

	if refreshes.Load() != 1 {
		t.Errorf("scheduled refreshes = %d, want 1 (only the real call settles)", refreshes.Load())
	}
	if states := c.States(); len(states) != 0 {
		t.Errorf("states after settlement = %v, want none", states)
	}
}

func TestMutationFailureSurfacesMessage(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", "c1"))
	c, refreshes := newCoordinatorFixture(t, apple)
	apple.err = errors.New("upstream rejected the change")

	err := c.Unlink(context.Background(), "apple", "e1")
	if err == nil {
		t.Fatal("Unlink() expected failure, got nil")
	}

	// Failure still settles: key released, refresh scheduled, message
	// surfaced until the next submission.
	if refreshes.Load() != 1 {
		t.Errorf("scheduled refreshes = %d, want 1", refreshes.Load())
	}
	states := c.States()
	if len(states) != 1 || states[0].Phase != models.ActionFailed {
		t.Fatalf("states = %v, want one failed", states)
	}
	if states[0].Message == "" {
		t.Error("failed state carries no message")
	}

	// A new submission for the key clears the failure.
	apple.err = nil
	if err := c.Unlink(context.Background(), "apple", "e1"); err != nil {
		t.Fatalf("retry Unlink() error: %v", err)
	}
	if states := c.States(); len(states) != 0 {
		t.Errorf("states after retry = %v, want none", states)
	}
}

func TestConfirmPassesThrough(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", "c1"))
	c, refreshes := newCoordinatorFixture(t, apple)

	if err := c.Confirm(context.Background(), "apple", "e1"); err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if apple.callCount("confirm") != 1 {
		t.Errorf("confirm calls = %d, want 1", apple.callCount("confirm"))
	}
	if refreshes.Load() != 1 {
		t.Errorf("scheduled refreshes = %d, want 1", refreshes.Load())
	}
}

func TestRecreateUsesReferenceRecord(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", "c1"))
	skylight := newFakeAdapter("skylight", "Skylight Frame")
	c, _ := newCoordinatorFixture(t, apple, skylight)

	if err := c.Recreate(context.Background(), "c1", "skylight"); err != nil {
		t.Fatalf("Recreate() error: %v", err)
	}
	if skylight.callCount("recreate") != 1 {
		t.Errorf("recreate calls = %d, want 1", skylight.callCount("recreate"))
	}

	if err := c.Recreate(context.Background(), "missing", "skylight"); !errors.Is(err, ErrUnknownGroup) {
		t.Errorf("Recreate() unknown canonical error = %v, want ErrUnknownGroup", err)
	}
}

func TestMutationsOnUnknownProvider(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud", rec("apple", "e1", "c1"))
	c, _ := newCoordinatorFixture(t, apple)

	if err := c.Confirm(context.Background(), "ghost", "e1"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Confirm() error = %v, want ErrUnknownProvider", err)
	}
}

func TestDifferentKeysProceedIndependently(t *testing.T) {
	apple := newFakeAdapter("apple", "Apple iCloud",
		rec("apple", "e1", "c1"), rec("apple", "e2", "c2"))
	c, _ := newCoordinatorFixture(t, apple)
	apple.gate = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, eventID := range []string{"e1", "e2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = c.Unlink(ctx, "apple", id)
		}(eventID)
	}

	// Both keys go in flight concurrently.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && apple.callCount("unlink") < 2 {
		time.Sleep(time.Millisecond)
	}
	if got := apple.callCount("unlink"); got != 2 {
		t.Fatalf("concurrent distinct-key unlinks = %d, want 2", got)
	}

	close(apple.gate)
	wg.Wait()
}
