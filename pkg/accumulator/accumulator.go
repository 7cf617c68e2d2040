package accumulator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// Accumulator holds the running L2 batch-commitment state for one
// settlement head. It is safe for concurrent use.
type Accumulator struct {
	mu sync.Mutex

	datum  Datum
	ledger []CommitRecord
	policy Policy

	pending        map[Event]bool
	lastSettlement time.Time
	snapshotSeq    int

	metrics *metrics
}

type metrics struct {
	commitsTotal        prometheus.Counter
	itemsPerCommit      prometheus.Histogram
	settlementTriggered *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		commitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "poi_accumulator_commits_total",
			Help: "Total number of batch commits accepted by the accumulator.",
		}),
		itemsPerCommit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "poi_accumulator_items_per_commit",
			Help:    "Number of items included in each batch commit.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		settlementTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "poi_accumulator_settlement_triggered_total",
			Help: "Settlement trigger evaluations that returned shouldSettle=true, by priority.",
		}, []string{"priority", "reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.commitsTotal, m.itemsPerCommit, m.settlementTriggered)
	}
	return m
}

// New creates an Accumulator at the genesis state (commitCount = 0,
// accumulatorRoot = ""). reg may be nil to skip metrics registration
// (tests typically pass nil or a fresh prometheus.NewRegistry()).
func New(policy Policy, reg prometheus.Registerer) *Accumulator {
	return &Accumulator{
		datum:          Datum{},
		pending:        make(map[Event]bool),
		policy:         policy,
		lastSettlement: time.Now(),
		metrics:        newMetrics(reg),
	}
}

// Datum returns a copy of the accumulator's current running state.
func (a *Accumulator) Datum() Datum {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cloneDatum()
}

func (a *Accumulator) cloneDatum() Datum {
	d := a.datum
	d.BatchHistory = append([]HistoryEntry{}, a.datum.BatchHistory...)
	return d
}

// Ledger returns a copy of every commit record recorded so far.
func (a *Accumulator) Ledger() []CommitRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]CommitRecord{}, a.ledger...)
}

// Commit accepts an ordered list of items (possibly empty — the
// distinguished empty-batch hash covers that case), folds the batch
// root into the accumulator root, appends a bounded history entry and
// a commit-ledger record, and returns the new record. l2TxHash may be
// filled in by the caller after on-chain submission via SetL2TxHash.
func (a *Accumulator) Commit(items []Item, now time.Time) (CommitRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	batchRoot, err := BatchRoot(items)
	if err != nil {
		return CommitRecord{}, err
	}

	newRoot, err := chainRoot(a.datum.AccumulatorRoot, a.datum.CommitCount, batchRoot)
	if err != nil {
		return CommitRecord{}, err
	}

	ts := isoUTC(now)
	a.datum.AccumulatorRoot = newRoot.Hex()
	a.datum.CommitCount++
	a.datum.LatestBatchRoot = batchRoot.Hex()
	a.datum.LatestBatchTimestamp = ts

	a.datum.BatchHistory = append(a.datum.BatchHistory, HistoryEntry{
		BatchRoot: batchRoot.Hex(),
		Timestamp: ts,
		ItemCount: len(items),
	})
	limit := a.policy.historyLimit()
	if len(a.datum.BatchHistory) > limit {
		a.datum.BatchHistory = a.datum.BatchHistory[len(a.datum.BatchHistory)-limit:]
	}

	record := CommitRecord{
		CommitIndex:    a.datum.CommitCount - 1,
		SnapshotNumber: a.snapshotSeq,
		BatchRoot:      batchRoot.Hex(),
		ItemCount:      len(items),
		Timestamp:      ts,
	}
	a.snapshotSeq++
	a.ledger = append(a.ledger, record)

	if a.metrics != nil {
		a.metrics.commitsTotal.Inc()
		a.metrics.itemsPerCommit.Observe(float64(len(items)))
	}

	return record, nil
}

// SetL2TxHash records the settlement transaction hash against a
// previously committed record, identified by its CommitIndex.
func (a *Accumulator) SetL2TxHash(commitIndex int, txHash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.ledger {
		if a.ledger[i].CommitIndex == commitIndex {
			a.ledger[i].L2TxHash = txHash
			return nil
		}
	}
	return poierrors.New(poierrors.KindInvalidInput, "no commit record at that index")
}

// SignalEvent marks a settlement-trigger event as pending. Unknown
// event names are ignored (defensive forward compatibility): callers
// passing a typo or a not-yet-supported trigger simply have no effect
// rather than crashing the caller's control loop.
func (a *Accumulator) SignalEvent(e Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !knownEvents[e] {
		return
	}
	a.pending[e] = true
}

// ClearPendingEvents drops all signaled events and resets the
// max-time-before-settlement clock. Call after a settlement has
// actually been initiated.
func (a *Accumulator) ClearPendingEvents(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = make(map[Event]bool)
	a.lastSettlement = now
}

// CheckSettlement evaluates the settlement-trigger priority state
// machine against the accumulator's current commit count, elapsed
// time since the last settlement, any pending signaled events, and an
// optional cumulative value observed by the caller (0 if not
// tracked). Priorities are evaluated in the order the spec lists them
// — critical, then high, then medium — and the first match wins.
func (a *Accumulator) CheckSettlement(now time.Time, cumulativeValueLovelace int64) TriggerResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := a.evaluateLocked(now, cumulativeValueLovelace)
	if result.ShouldSettle && a.metrics != nil {
		a.metrics.settlementTriggered.WithLabelValues(string(result.Priority), string(result.Reason)).Inc()
	}
	return result
}

func (a *Accumulator) evaluateLocked(now time.Time, cumulativeValueLovelace int64) TriggerResult {
	if a.pending[EventShutdown] {
		return TriggerResult{ShouldSettle: true, Priority: PriorityCritical, Reason: ReasonEventTriggered}
	}

	if a.policy.MaxCommitsBeforeSettlement > 0 && a.datum.CommitCount >= a.policy.MaxCommitsBeforeSettlement {
		return TriggerResult{ShouldSettle: true, Priority: PriorityHigh, Reason: ReasonMaxCommitsReached}
	}
	if a.pending[EventError] || a.pending[EventHeadClosing] {
		return TriggerResult{ShouldSettle: true, Priority: PriorityHigh, Reason: ReasonEventTriggered}
	}

	if a.policy.MaxTimeBeforeSettlementMs > 0 {
		elapsed := now.Sub(a.lastSettlement).Milliseconds()
		if elapsed >= a.policy.MaxTimeBeforeSettlementMs {
			return TriggerResult{ShouldSettle: true, Priority: PriorityMedium, Reason: ReasonMaxTimeReached}
		}
	}
	if a.policy.ValueThresholdLovelace != nil && cumulativeValueLovelace >= *a.policy.ValueThresholdLovelace {
		return TriggerResult{ShouldSettle: true, Priority: PriorityMedium, Reason: ReasonValueThresholdReached}
	}
	if a.pending[EventKeyRotation] {
		return TriggerResult{ShouldSettle: true, Priority: PriorityMedium, Reason: ReasonEventTriggered}
	}

	return TriggerResult{ShouldSettle: false, Priority: PriorityLow, Reason: ReasonNone}
}

func isoUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
