package accumulator

import (
	"context"
	"testing"
	"time"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chainprovider"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// flakyProvider wraps a chainprovider.Provider and fails the first N
// SubmitAnchor calls with a retryable error before delegating.
type flakyProvider struct {
	chainprovider.Provider
	failuresLeft int
	kind         poierrors.Kind
	attempts     int
}

func (f *flakyProvider) SubmitAnchor(ctx context.Context, label int, metadata interface{}) (string, error) {
	f.attempts++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return "", poierrors.New(f.kind, "simulated transient submission failure")
	}
	return f.Provider.SubmitAnchor(ctx, label, metadata)
}

// fakeClock advances an internal counter on every Sleep call instead
// of actually blocking, so retry/timeout logic can be exercised
// without a slow test.
func fakeClock() (Clock, func() time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFn := func() time.Time { return now }
	return Clock{
		Now: nowFn,
		Sleep: func(d time.Duration) {
			now = now.Add(d)
		},
	}, nowFn
}

func TestAccumulator_Settle_RetriesTransientSubmissionFailureThenSucceeds(t *testing.T) {
	acc := New(Policy{}, nil)
	now := time.Now()
	acc.Commit(threeItems("s1"), now)

	base := chainprovider.NewMockProvider("preview", 20, true)
	provider := &flakyProvider{Provider: base, failuresLeft: 2, kind: poierrors.KindNetworkTimeout}

	clock, _ := fakeClock()
	policy := SettlePolicy{MaxSubmitAttempts: 5, ConfirmationThreshold: 10}

	result, err := acc.Settle(context.Background(), provider, SettlementInput{AgentID: "agent-1", HeadID: "head-1"}, policy, clock)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if result.Outcome != SettleConfirmed {
		t.Fatalf("outcome = %s, want confirmed", result.Outcome)
	}
	if result.SubmitAttempts != 3 {
		t.Errorf("submitAttempts = %d, want 3 (2 failures + 1 success)", result.SubmitAttempts)
	}
	if result.TxHash == "" {
		t.Errorf("expected a non-empty txHash on success")
	}

	ledger := acc.Ledger()
	if ledger[len(ledger)-1].L2TxHash != result.TxHash {
		t.Errorf("expected the latest commit record to be stamped with the settlement txHash")
	}
}

func TestAccumulator_Settle_PermanentSubmissionFailureIsNotRetried(t *testing.T) {
	acc := New(Policy{}, nil)
	now := time.Now()
	acc.Commit(threeItems("s1"), now)

	base := chainprovider.NewMockProvider("preview", 20, true)
	provider := &flakyProvider{Provider: base, failuresLeft: 100, kind: poierrors.KindUnauthorized}

	clock, _ := fakeClock()
	policy := SettlePolicy{MaxSubmitAttempts: 5}

	_, err := acc.Settle(context.Background(), provider, SettlementInput{AgentID: "agent-1", HeadID: "head-1"}, policy, clock)
	if err == nil {
		t.Fatalf("expected a fatal error for a non-retryable submission failure")
	}
	if provider.attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retries on a permanent failure)", provider.attempts)
	}
	if ledger := acc.Ledger(); ledger[len(ledger)-1].L2TxHash != "" {
		t.Errorf("expected the ledger to be left unchanged on a permanent submission failure")
	}
}

func TestAccumulator_Settle_ExhaustedRetriesLeavesLedgerUnchanged(t *testing.T) {
	acc := New(Policy{}, nil)
	now := time.Now()
	acc.Commit(threeItems("s1"), now)

	base := chainprovider.NewMockProvider("preview", 20, true)
	provider := &flakyProvider{Provider: base, failuresLeft: 100, kind: poierrors.KindNetworkTimeout}

	clock, _ := fakeClock()
	policy := SettlePolicy{MaxSubmitAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := acc.Settle(context.Background(), provider, SettlementInput{AgentID: "agent-1", HeadID: "head-1"}, policy, clock)
	if err == nil {
		t.Fatalf("expected an error once retries are exhausted")
	}
	if !poierrors.Is(err, poierrors.KindSubmissionFailed) {
		t.Errorf("expected a KindSubmissionFailed error, got %v", err)
	}
	if provider.attempts != 3 {
		t.Errorf("attempts = %d, want 3 (MaxSubmitAttempts)", provider.attempts)
	}
	if ledger := acc.Ledger(); ledger[len(ledger)-1].L2TxHash != "" {
		t.Errorf("expected the ledger to be left unchanged when retries are exhausted")
	}
}

func TestAccumulator_Settle_TimesOutWhenConfirmationsNeverReachThreshold(t *testing.T) {
	acc := New(Policy{}, nil)
	now := time.Now()
	acc.Commit(threeItems("s1"), now)

	// Confirmations stall at 1, well below the default threshold.
	provider := chainprovider.NewMockProvider("preview", 1, true)

	clock, _ := fakeClock()
	policy := SettlePolicy{
		ConfirmationThreshold: 10,
		ConfirmationTimeout:   30 * time.Second,
		PollInterval:          5 * time.Second,
	}

	result, err := acc.Settle(context.Background(), provider, SettlementInput{AgentID: "agent-1", HeadID: "head-1"}, policy, clock)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if result.Outcome != SettleTimedOut {
		t.Fatalf("outcome = %s, want timed_out", result.Outcome)
	}
	if result.Confirmations >= policy.ConfirmationThreshold {
		t.Errorf("expected confirmations below threshold, got %d", result.Confirmations)
	}

	if ledger := acc.Ledger(); ledger[len(ledger)-1].L2TxHash != "" {
		t.Errorf("expected the ledger to be left unstamped on a confirmation timeout")
	}
}

func TestAccumulator_Settle_ContextCancellationDuringConfirmationWaitIsReported(t *testing.T) {
	acc := New(Policy{}, nil)
	now := time.Now()
	acc.Commit(threeItems("s1"), now)

	provider := chainprovider.NewMockProvider("preview", 1, true)

	ctx, cancel := context.WithCancel(context.Background())
	clock := Clock{
		Now: time.Now,
		Sleep: func(time.Duration) {
			cancel()
		},
	}
	policy := SettlePolicy{ConfirmationThreshold: 10, ConfirmationTimeout: time.Hour, PollInterval: time.Millisecond}

	_, err := acc.Settle(ctx, provider, SettlementInput{AgentID: "agent-1", HeadID: "head-1"}, policy, clock)
	if err == nil {
		t.Fatalf("expected an error when the context is canceled mid-poll")
	}
}
