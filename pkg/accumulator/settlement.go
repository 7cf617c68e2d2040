package accumulator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/anchor"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chainprovider"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// SettlementInput carries the context needed to describe a
// settlement beyond what the accumulator's own Datum tracks.
type SettlementInput struct {
	AgentID          string
	HeadID           string
	SettlementTxHash string
}

// BuildAnchorEntry produces the v2 anchor entry (C6) for the
// accumulator's current state: rootHash is the accumulator root,
// merkleRoot is the most recent batch root, and manifestHash is the
// entry's own self-commitment hash (there is no separate per-bundle
// manifest at the L2 settlement layer — see anchor.ComputeEntryManifestHash).
func (a *Accumulator) BuildAnchorEntry(input SettlementInput, now time.Time) (anchor.Entry, error) {
	a.mu.Lock()
	datum := a.cloneDatum()
	a.mu.Unlock()

	entry := anchor.Entry{
		Schema:     anchor.SchemaV2,
		RootHash:   datum.AccumulatorRoot,
		MerkleRoot: datum.LatestBatchRoot,
		Timestamp:  isoUTC(now),
		AgentID:    input.AgentID,
		L2Metadata: &anchor.L2Metadata{
			HeadID:           input.HeadID,
			TotalCommits:     datum.CommitCount,
			SettlementTxHash: input.SettlementTxHash,
		},
	}

	h, err := anchor.ComputeEntryManifestHash(entry)
	if err != nil {
		return anchor.Entry{}, err
	}
	entry.ManifestHash = h.Hex()
	return entry, nil
}

// SettlePolicy controls how Settle retries a failed submission and how
// long it waits for confirmations before giving up. Zero values fall
// back to the same defaults pkg/config.Load supplies its callers.
type SettlePolicy struct {
	// Label is the Cardano metadata label the anchor entry is
	// submitted under. Defaults to anchor.ConventionalLabel.
	Label int

	// MaxSubmitAttempts bounds retries on a transient SubmitAnchor
	// failure. Defaults to 5.
	MaxSubmitAttempts int
	// BaseDelay and MaxDelay bound the exponential backoff between
	// submission attempts. Default to 500ms and 30s.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// ConfirmationThreshold is the confirmation count Settle polls
	// for before reporting success. Defaults to
	// anchor.DefaultConfirmationThreshold.
	ConfirmationThreshold int
	// ConfirmationTimeout bounds the total time Settle spends polling
	// for confirmations once a transaction has been submitted.
	// Defaults to 10 minutes.
	ConfirmationTimeout time.Duration
	// PollInterval is the wait between confirmation polls. Defaults
	// to 5 seconds.
	PollInterval time.Duration
}

func (p SettlePolicy) label() int {
	if p.Label > 0 {
		return p.Label
	}
	return anchor.ConventionalLabel
}

func (p SettlePolicy) maxSubmitAttempts() int {
	if p.MaxSubmitAttempts > 0 {
		return p.MaxSubmitAttempts
	}
	return 5
}

func (p SettlePolicy) baseDelay() time.Duration {
	if p.BaseDelay > 0 {
		return p.BaseDelay
	}
	return 500 * time.Millisecond
}

func (p SettlePolicy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return 30 * time.Second
}

func (p SettlePolicy) confirmationThreshold() int {
	if p.ConfirmationThreshold > 0 {
		return p.ConfirmationThreshold
	}
	return anchor.DefaultConfirmationThreshold
}

func (p SettlePolicy) confirmationTimeout() time.Duration {
	if p.ConfirmationTimeout > 0 {
		return p.ConfirmationTimeout
	}
	return 10 * time.Minute
}

func (p SettlePolicy) pollInterval() time.Duration {
	if p.PollInterval > 0 {
		return p.PollInterval
	}
	return 5 * time.Second
}

// Clock lets tests replace wall-clock time and sleeping with a fake
// that advances instantly, without changing Settle's retry/timeout
// logic. DefaultClock uses time.Now and time.Sleep.
type Clock struct {
	Now   func() time.Time
	Sleep func(time.Duration)
}

// DefaultClock returns the real wall-clock Clock.
func DefaultClock() Clock {
	return Clock{Now: time.Now, Sleep: time.Sleep}
}

func (c Clock) withDefaults() Clock {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
	return c
}

// SettleOutcome is the terminal state of a Settle call that did not
// fail outright.
type SettleOutcome string

const (
	// SettleConfirmed means the submitted transaction reached the
	// configured confirmation threshold within the timeout.
	SettleConfirmed SettleOutcome = "confirmed"
	// SettleTimedOut means the transaction submitted but never
	// reached the confirmation threshold before the deadline; this is
	// not an error, just a negative result reported without side
	// effects on the accumulator's ledger.
	SettleTimedOut SettleOutcome = "timed_out"
)

// SettleResult is the outcome of a successful Settle call (submission
// itself did not fail). A SettleTimedOut outcome is still a "success"
// in the Go-error sense: the caller asked a yes/no question and got an
// answer, just not the confirmed one.
type SettleResult struct {
	Outcome        SettleOutcome
	Entry          anchor.Entry
	TxHash         string
	Confirmations  int
	SubmitAttempts int
}

// Settle builds the accumulator's current anchor entry (BuildAnchorEntry),
// submits it via provider.SubmitAnchor with exponential backoff and
// full jitter on transient failures, and then polls
// provider.GetConfirmations until either the configured confirmation
// threshold is reached or the configured confirmation timeout elapses.
//
// A transient submission failure (per poierrors.Retryable) is retried
// up to policy's MaxSubmitAttempts; the accumulator's ledger is never
// touched until a transaction hash exists, so an exhausted-retries
// return leaves the batch's items pending for the caller to re-attempt
// settlement later. A non-retryable submission failure is returned
// immediately as a fatal error, also without side effects.
//
// When the outcome is SettleConfirmed, the commit record most recently
// appended to the ledger (if any) is stamped with the resulting
// transaction hash via SetL2TxHash; other outcomes leave it unstamped.
func (a *Accumulator) Settle(ctx context.Context, provider chainprovider.Provider, input SettlementInput, policy SettlePolicy, clock Clock) (*SettleResult, error) {
	clock = clock.withDefaults()

	entry, err := a.BuildAnchorEntry(input, clock.Now())
	if err != nil {
		return nil, err
	}
	envelope := map[string]interface{}{
		"schema":  string(anchor.SchemaV2),
		"anchors": []interface{}{entry.ToWireMap()},
	}

	txHash, attempts, err := submitWithRetry(ctx, provider, policy, clock, envelope)
	if err != nil {
		return nil, err
	}

	confirmations, outcome, err := pollConfirmations(ctx, provider, txHash, policy, clock)
	if err != nil {
		return nil, err
	}

	if outcome == SettleConfirmed {
		if idx := a.lastCommitIndex(); idx >= 0 {
			_ = a.SetL2TxHash(idx, txHash)
		}
	}

	return &SettleResult{
		Outcome:        outcome,
		Entry:          entry,
		TxHash:         txHash,
		Confirmations:  confirmations,
		SubmitAttempts: attempts,
	}, nil
}

func (a *Accumulator) lastCommitIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.ledger) == 0 {
		return -1
	}
	return a.ledger[len(a.ledger)-1].CommitIndex
}

// submitWithRetry drives SubmitAnchor, retrying transient failures
// with exponential backoff and full jitter. It returns the number of
// attempts made, including the final (successful or exhausted) one.
func submitWithRetry(ctx context.Context, provider chainprovider.Provider, policy SettlePolicy, clock Clock, envelope interface{}) (string, int, error) {
	label := policy.label()
	maxAttempts := policy.maxSubmitAttempts()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempt, poierrors.Wrap(poierrors.KindSubmissionFailed, "settlement submission canceled", err)
		}

		txHash, err := provider.SubmitAnchor(ctx, label, envelope)
		if err == nil {
			return txHash, attempt + 1, nil
		}
		lastErr = err

		kind, known := poierrors.KindOf(err)
		if !known || !poierrors.Retryable(kind) {
			return "", attempt + 1, poierrors.Wrap(poierrors.KindSubmissionFailed, "settlement submission failed permanently", err)
		}
		if attempt == maxAttempts-1 {
			break
		}
		if !sleepCtx(ctx, backoffWithJitter(policy.baseDelay(), policy.maxDelay(), attempt), clock.Sleep) {
			return "", attempt + 1, poierrors.Wrap(poierrors.KindSubmissionFailed, "settlement submission canceled during backoff", ctx.Err())
		}
	}

	return "", maxAttempts, poierrors.Wrap(poierrors.KindSubmissionFailed,
		fmt.Sprintf("settlement submission exhausted %d attempts; items remain pending for re-attempt", maxAttempts), lastErr)
}

// pollConfirmations polls GetConfirmations until it reaches policy's
// threshold or policy's confirmation timeout elapses, whichever comes
// first. Reaching the timeout is reported as SettleTimedOut, not an
// error: per the confirmation-wait contract, a caller-supplied
// deadline elapsing returns a negative result without side effects.
func pollConfirmations(ctx context.Context, provider chainprovider.Provider, txHash string, policy SettlePolicy, clock Clock) (int, SettleOutcome, error) {
	threshold := policy.confirmationThreshold()
	deadline := clock.Now().Add(policy.confirmationTimeout())

	for {
		if err := ctx.Err(); err != nil {
			return 0, "", poierrors.Wrap(poierrors.KindSettlementTimeout, "settlement confirmation wait canceled", err)
		}

		confirmations, err := provider.GetConfirmations(ctx, txHash)
		if err != nil {
			return 0, "", poierrors.Wrap(poierrors.KindStorageNotFound, "fetch settlement confirmations", err)
		}
		if confirmations >= threshold {
			return confirmations, SettleConfirmed, nil
		}
		if !clock.Now().Before(deadline) {
			return confirmations, SettleTimedOut, nil
		}
		if !sleepCtx(ctx, policy.pollInterval(), clock.Sleep) {
			return confirmations, "", poierrors.Wrap(poierrors.KindSettlementTimeout, "settlement confirmation wait canceled", ctx.Err())
		}
	}
}

// backoffWithJitter computes the exponential-backoff-with-full-jitter
// delay for a submission retry: uniformly random in
// [0, min(base*2^attempt, max)]. Full jitter (rather than the
// teacher's un-jittered time.Duration(1<<retries)*time.Second) avoids
// synchronized retry storms across many agents anchoring concurrently.
func backoffWithJitter(base, maxBackoff time.Duration, attempt int) time.Duration {
	capped := base * time.Duration(int64(1)<<uint(attempt))
	if capped <= 0 || capped > maxBackoff {
		capped = maxBackoff
	}
	if capped <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(capped)))
}

// sleepCtx waits for either d to elapse (via sleep) or ctx to be
// canceled, returning false in the latter case.
func sleepCtx(ctx context.Context, d time.Duration, sleep func(time.Duration)) bool {
	done := make(chan struct{})
	go func() {
		sleep(d)
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
