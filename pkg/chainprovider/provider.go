// Copyright 2025 Flux Point Studios
//
// Package chainprovider defines the abstract contract (C7) a Cardano
// REST backend must satisfy to submit and verify PoI anchors, plus an
// in-memory mock used by the core package's own tests. Concrete
// backends (Blockfrost, Koios) live under internal/providers and
// implement this interface; core code never imports them directly.
//
// Grounded on the teacher's pkg/ethereum.Client interface shape
// (GetTransactionReceipt/SendTransaction/WaitForConfirmation),
// generalized from an EVM JSON-RPC client to a Cardano metadata-label
// REST contract.
package chainprovider

import (
	"context"
	"sync"
	"time"
)

// TxMetadata is the decoded transaction-metadata payload at a given
// label, as a generic JSON value (typically map[string]interface{}).
type TxMetadata struct {
	TxHash string
	Label  int
	Value  interface{}
}

// TxInfo is minimal confirmation/finality information about a
// submitted transaction.
type TxInfo struct {
	TxHash        string
	BlockHeight   int64
	Confirmations int
	Confirmed     bool
	SubmittedAt   time.Time
}

// Provider is the contract core verification/submission code depends
// on. Implementations must be safe for concurrent use.
type Provider interface {
	// SubmitAnchor submits a transaction carrying metadata at label,
	// returning the resulting transaction hash.
	SubmitAnchor(ctx context.Context, label int, metadata interface{}) (txHash string, err error)

	// GetTxMetadata fetches and decodes the metadata blob for txHash at label.
	GetTxMetadata(ctx context.Context, txHash string, label int) (*TxMetadata, error)

	// GetTxInfo fetches confirmation/finality info for txHash.
	GetTxInfo(ctx context.Context, txHash string) (*TxInfo, error)

	// GetConfirmations is a convenience accessor equivalent to
	// GetTxInfo(...).Confirmations.
	GetConfirmations(ctx context.Context, txHash string) (int, error)

	// IsReady reports whether the provider's backend is currently
	// reachable and synced enough to serve requests.
	IsReady(ctx context.Context) bool

	// GetNetwork returns the network name the provider is configured
	// for ("mainnet", "preprod", "preview", ...).
	GetNetwork() string
}

// MockProvider is an in-memory Provider for tests: submissions are
// recorded and immediately "confirmed" with a caller-adjustable
// confirmation count.
type MockProvider struct {
	mu            sync.Mutex
	network       string
	nextTxHash    int
	txs           map[string]*TxInfo
	metadata      map[string]map[int]interface{}
	confirmations int
	ready         bool
}

// NewMockProvider returns a MockProvider that reports txs as having
// confirmations confirmations once submitted, and IsReady() == ready.
func NewMockProvider(network string, confirmations int, ready bool) *MockProvider {
	return &MockProvider{
		network:       network,
		txs:           make(map[string]*TxInfo),
		metadata:      make(map[string]map[int]interface{}),
		confirmations: confirmations,
		ready:         ready,
	}
}

func (p *MockProvider) SubmitAnchor(_ context.Context, label int, metadata interface{}) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextTxHash++
	txHash := fmtTxHash(p.nextTxHash)
	p.txs[txHash] = &TxInfo{
		TxHash:        txHash,
		BlockHeight:   int64(p.nextTxHash),
		Confirmations: p.confirmations,
		Confirmed:     p.confirmations > 0,
		SubmittedAt:   time.Time{},
	}
	p.metadata[txHash] = map[int]interface{}{label: metadata}
	return txHash, nil
}

// GetTxMetadata returns (nil, nil) — never an error — when txHash is
// unknown or carries no metadata at label: absence of an anchor is an
// expected, non-exceptional outcome (e.g. a not-yet-anchored
// transaction), not a failure.
func (p *MockProvider) GetTxMetadata(_ context.Context, txHash string, label int) (*TxMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	labels, ok := p.metadata[txHash]
	if !ok {
		return nil, nil
	}
	value, ok := labels[label]
	if !ok {
		return nil, nil
	}
	return &TxMetadata{TxHash: txHash, Label: label, Value: value}, nil
}

func (p *MockProvider) GetTxInfo(_ context.Context, txHash string) (*TxInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info, ok := p.txs[txHash]
	if !ok {
		return nil, errTxNotFound(txHash)
	}
	clone := *info
	return &clone, nil
}

func (p *MockProvider) GetConfirmations(ctx context.Context, txHash string) (int, error) {
	info, err := p.GetTxInfo(ctx, txHash)
	if err != nil {
		return 0, err
	}
	return info.Confirmations, nil
}

func (p *MockProvider) IsReady(context.Context) bool { return p.ready }

func (p *MockProvider) GetNetwork() string { return p.network }

// SetConfirmations lets tests simulate confirmation progress over time.
func (p *MockProvider) SetConfirmations(txHash string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, ok := p.txs[txHash]; ok {
		info.Confirmations = n
		info.Confirmed = n > 0
	}
}

func fmtTxHash(n int) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 64)
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = hexDigits[n%16]
		n /= 16
	}
	return string(buf)
}
