package catalog

import (
	"context"
	"fmt"
	"testing"
)

func TestGenerationTrackerCancelsPrevious(t *testing.T) {
	tracker := newGenerationTracker()
	first, firstCtx, releaseFirst := tracker.begin(context.Background(), "view")
	second, secondCtx, releaseSecond := tracker.begin(context.Background(), "view")

	if second <= first {
		t.Fatalf("generations must increase: %d then %d", first, second)
	}
	if firstCtx.Err() == nil {
		t.Fatal("expected first batch context to be cancelled")
	}
	if secondCtx.Err() != nil {
		t.Fatal("latest batch context must stay alive")
	}
	if tracker.isCurrent("view", first) || !tracker.isCurrent("view", second) {
		t.Fatal("only the latest generation is current")
	}

	releaseFirst()
	if _, ok := tracker.active["view"]; !ok {
		t.Fatal("releasing a stale batch must not drop the active one")
	}
	releaseSecond()
	if secondCtx.Err() == nil {
		t.Fatal("release cancels the batch context")
	}
	if !tracker.isCurrent("view", second) {
		t.Fatal("finished batch stays the latest generation")
	}
}

func TestGenerationTrackerViewsAreIndependent(t *testing.T) {
	tracker := newGenerationTracker()
	left, leftCtx, releaseLeft := tracker.begin(context.Background(), "left")
	defer releaseLeft()
	right, _, releaseRight := tracker.begin(context.Background(), "right")
	defer releaseRight()

	if leftCtx.Err() != nil {
		t.Fatal("a batch of another view must not cancel this one")
	}
	if !tracker.isCurrent("left", left) || !tracker.isCurrent("right", right) {
		t.Fatal("both views should be current")
	}
}

func TestGenerationTrackerPrunesFinishedViews(t *testing.T) {
	tracker := newGenerationTracker()
	for i := 0; i <= maxTrackedViews; i++ {
		_, _, release := tracker.begin(context.Background(), fmt.Sprintf("view-%d", i))
		release()
	}
	if len(tracker.latest) > maxTrackedViews {
		t.Fatalf("expected pruning, got %d views", len(tracker.latest))
	}
}
