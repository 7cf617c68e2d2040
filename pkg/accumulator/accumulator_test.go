package accumulator

import (
	"testing"
	"time"
)

func threeItems(session string) []Item {
	items := make([]Item, 3)
	for i := range items {
		items[i] = Item{
			SessionID:    session,
			RootHash:     "root-" + session,
			MerkleRoot:   "merkle-" + session,
			ManifestHash: "manifest-" + session,
			Timestamp:    "2026-01-01T00:00:00.000Z",
		}
	}
	return items
}

func TestBatchRoot_EmptyIsDistinguished(t *testing.T) {
	empty, err := BatchRoot(nil)
	if err != nil {
		t.Fatalf("BatchRoot: %v", err)
	}
	nonEmpty, err := BatchRoot(threeItems("s1"))
	if err != nil {
		t.Fatalf("BatchRoot: %v", err)
	}
	if empty == nonEmpty {
		t.Errorf("empty batch hash must differ from a non-empty batch root")
	}
}

func TestBatchRoot_Deterministic(t *testing.T) {
	a, err := BatchRoot(threeItems("s1"))
	if err != nil {
		t.Fatalf("BatchRoot: %v", err)
	}
	b, err := BatchRoot(threeItems("s1"))
	if err != nil {
		t.Fatalf("BatchRoot: %v", err)
	}
	if a != b {
		t.Errorf("identical item lists must produce identical batch roots")
	}
}

// Seed test #6: two commits of three items each, default policy (M=50)
// -> shouldSettle=false, priority=low.
func TestAccumulator_TwoCommits_DefaultPolicy_DoesNotSettle(t *testing.T) {
	acc := New(Policy{}, nil)
	now := time.Now()

	if _, err := acc.Commit(threeItems("s1"), now); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := acc.Commit(threeItems("s2"), now); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	datum := acc.Datum()
	if datum.CommitCount != 2 {
		t.Errorf("commitCount = %d, want 2", datum.CommitCount)
	}
	if len(datum.BatchHistory) != 2 {
		t.Errorf("len(batchHistory) = %d, want 2", len(datum.BatchHistory))
	}

	result := acc.CheckSettlement(now, 0)
	if result.ShouldSettle {
		t.Errorf("expected shouldSettle=false with default policy after 2 commits")
	}
	if result.Priority != PriorityLow {
		t.Errorf("priority = %s, want low", result.Priority)
	}
}

// After 1000 commits -> shouldSettle=true, reason=max_commits_reached, priority=high.
func TestAccumulator_MaxCommitsTrigger(t *testing.T) {
	acc := New(Policy{MaxCommitsBeforeSettlement: 1000}, nil)
	now := time.Now()

	for i := 0; i < 1000; i++ {
		if _, err := acc.Commit(threeItems("s"), now); err != nil {
			t.Fatalf("Commit #%d: %v", i, err)
		}
	}

	result := acc.CheckSettlement(now, 0)
	if !result.ShouldSettle {
		t.Fatalf("expected shouldSettle=true after reaching maxCommitsBeforeSettlement")
	}
	if result.Reason != ReasonMaxCommitsReached {
		t.Errorf("reason = %s, want max_commits_reached", result.Reason)
	}
	if result.Priority != PriorityHigh {
		t.Errorf("priority = %s, want high", result.Priority)
	}
}

func TestAccumulator_ShutdownIsCritical_OutranksMaxCommits(t *testing.T) {
	acc := New(Policy{MaxCommitsBeforeSettlement: 1}, nil)
	now := time.Now()
	acc.Commit(threeItems("s"), now)
	acc.SignalEvent(EventShutdown)

	result := acc.CheckSettlement(now, 0)
	if result.Priority != PriorityCritical {
		t.Errorf("priority = %s, want critical (shutdown must outrank max-commits)", result.Priority)
	}
}

func TestAccumulator_MaxTimeTrigger(t *testing.T) {
	acc := New(Policy{MaxTimeBeforeSettlementMs: 1000}, nil)
	now := time.Now()
	later := now.Add(2 * time.Second)

	result := acc.CheckSettlement(later, 0)
	if !result.ShouldSettle || result.Reason != ReasonMaxTimeReached || result.Priority != PriorityMedium {
		t.Errorf("expected medium max_time_reached trigger, got %+v", result)
	}
}

func TestAccumulator_ValueThresholdTrigger(t *testing.T) {
	threshold := int64(5_000_000)
	acc := New(Policy{ValueThresholdLovelace: &threshold}, nil)
	now := time.Now()

	result := acc.CheckSettlement(now, 6_000_000)
	if !result.ShouldSettle || result.Reason != ReasonValueThresholdReached {
		t.Errorf("expected value_threshold_reached trigger, got %+v", result)
	}
}

func TestAccumulator_UnknownEventIgnored(t *testing.T) {
	acc := New(Policy{}, nil)
	acc.SignalEvent(Event("not-a-real-event"))
	result := acc.CheckSettlement(time.Now(), 0)
	if result.ShouldSettle {
		t.Errorf("an unknown signaled event must not trigger settlement")
	}
}

func TestAccumulator_ClearPendingEventsResetsClock(t *testing.T) {
	acc := New(Policy{MaxTimeBeforeSettlementMs: 1000}, nil)
	now := time.Now()
	acc.ClearPendingEvents(now)

	later := now.Add(2 * time.Second)
	result := acc.CheckSettlement(later, 0)
	if !result.ShouldSettle {
		t.Fatalf("expected max-time trigger to fire relative to lastSettlement")
	}

	acc.ClearPendingEvents(later)
	soonAfter := later.Add(100 * time.Millisecond)
	result = acc.CheckSettlement(soonAfter, 0)
	if result.ShouldSettle {
		t.Errorf("expected clock reset after ClearPendingEvents to prevent an immediate re-trigger")
	}
}

func TestAccumulator_HistoryTrimsToLimit(t *testing.T) {
	acc := New(Policy{HistoryLimit: 3}, nil)
	now := time.Now()
	for i := 0; i < 5; i++ {
		acc.Commit(threeItems("s"), now)
	}
	datum := acc.Datum()
	if len(datum.BatchHistory) != 3 {
		t.Errorf("len(batchHistory) = %d, want 3 after trimming", len(datum.BatchHistory))
	}
	if datum.CommitCount != 5 {
		t.Errorf("commitCount should keep counting past the history trim, got %d", datum.CommitCount)
	}
}

func TestAccumulator_ChainingDiffersFromPlainConcat(t *testing.T) {
	acc1 := New(Policy{}, nil)
	now := time.Now()
	r1, _ := acc1.Commit(threeItems("s1"), now)
	r2, _ := acc1.Commit(threeItems("s1"), now)
	if r1.BatchRoot != r2.BatchRoot {
		// same items -> same batch root, expected
	}
	datum := acc1.Datum()
	if datum.AccumulatorRoot == r1.BatchRoot {
		t.Errorf("accumulatorRoot after the second commit must differ from the first batch root alone")
	}
}

func TestAccumulator_BuildAnchorEntry(t *testing.T) {
	acc := New(Policy{}, nil)
	now := time.Now()
	acc.Commit(threeItems("s1"), now)

	entry, err := acc.BuildAnchorEntry(SettlementInput{AgentID: "agent-1", HeadID: "head-1"}, now)
	if err != nil {
		t.Fatalf("BuildAnchorEntry: %v", err)
	}
	if entry.RootHash == "" || entry.ManifestHash == "" {
		t.Errorf("expected populated rootHash/manifestHash, got %+v", entry)
	}
	if entry.L2Metadata == nil || entry.L2Metadata.TotalCommits != 1 {
		t.Errorf("expected l2Metadata.totalCommits = 1, got %+v", entry.L2Metadata)
	}
}
