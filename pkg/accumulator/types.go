// Copyright 2025 Flux Point Studios
//
// Package accumulator implements the PoI SDK's L2 batch accumulator
// (C5): a rolling commitment over batches of trace-engine settlement
// items, a bounded batch history, and a settlement-trigger priority
// state machine.
//
// Grounded on the teacher's pkg/batch.Collector/activeBatch lifecycle
// (open batch, close on size/time, append to history) and
// pkg/batch/errors.go's sentinel-error style, generalized from
// Accumulate transaction batches to PoI settlement items and reusing
// pkg/merkle for the per-batch tree instead of the teacher's own
// pkg/merkle.BuildTree.
package accumulator

// Item is one batch item as produced by the trace engine: a
// finalized run's commitments, ready to be folded into a settlement
// batch.
type Item struct {
	SessionID    string `json:"sessionId"`
	RootHash     string `json:"rootHash"`
	MerkleRoot   string `json:"merkleRoot"`
	ManifestHash string `json:"manifestHash"`
	Timestamp    string `json:"timestamp"`
}

// HistoryEntry is one retained batch commit in the accumulator's
// bounded history.
type HistoryEntry struct {
	BatchRoot string `json:"batchRoot"`
	Timestamp string `json:"timestamp"`
	ItemCount int    `json:"itemCount"`
}

// Datum is the accumulator's externally-visible running state.
type Datum struct {
	AccumulatorRoot      string         `json:"accumulatorRoot"`
	CommitCount          int            `json:"commitCount"`
	LatestBatchRoot       string         `json:"latestBatchRoot"`
	LatestBatchTimestamp string         `json:"latestBatchTimestamp"`
	BatchHistory         []HistoryEntry `json:"batchHistory"`
}

// CommitRecord is the ledger entry produced by each Commit call.
type CommitRecord struct {
	CommitIndex    int    `json:"commitIndex"`
	SnapshotNumber int    `json:"snapshotNumber"`
	BatchRoot      string `json:"batchRoot"`
	ItemCount      int    `json:"itemCount"`
	Timestamp      string `json:"timestamp"`
	L2TxHash       string `json:"l2TxHash,omitempty"`
}

// Priority is the urgency level of a settlement trigger.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Reason names why a settlement trigger fired.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonEventTriggered       Reason = "event_triggered"
	ReasonMaxCommitsReached    Reason = "max_commits_reached"
	ReasonMaxTimeReached       Reason = "max_time_reached"
	ReasonValueThresholdReached Reason = "value_threshold_reached"
)

// Event is a settlement-trigger event the caller can signal.
type Event string

const (
	EventShutdown    Event = "shutdown"
	EventError       Event = "error"
	EventHeadClosing Event = "head-closing"
	EventKeyRotation Event = "key-rotation"
)

var knownEvents = map[Event]bool{
	EventShutdown:    true,
	EventError:       true,
	EventHeadClosing: true,
	EventKeyRotation: true,
}

// Policy is the settlement-trigger configuration.
type Policy struct {
	MaxCommitsBeforeSettlement int
	MaxTimeBeforeSettlementMs  int64
	ValueThresholdLovelace     *int64
	HistoryLimit               int
}

func (p Policy) historyLimit() int {
	if p.HistoryLimit > 0 {
		return p.HistoryLimit
	}
	return DefaultHistoryLimit
}

// DefaultHistoryLimit is the default M (batchHistory retention bound).
const DefaultHistoryLimit = 50

// TriggerResult is the outcome of a settlement-trigger evaluation.
type TriggerResult struct {
	ShouldSettle bool
	Priority     Priority
	Reason       Reason
}
