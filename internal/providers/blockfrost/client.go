// Copyright 2025 Flux Point Studios
//
// Package blockfrost is a thin Cardano REST client implementing
// pkg/chainprovider.Provider against the Blockfrost API. It is glue
// outside the SDK core (spec.md §1/§5: the core "does not execute
// transactions, manage keys, [or] talk to blockchains" directly) —
// SubmitAnchor in particular expects an already-built, already-signed
// transaction CBOR blob; building and signing that transaction is the
// caller's responsibility (see internal/signer), not this package's.
//
// Grounded on the teacher's pkg/ethereum.Client shape (a thin struct
// wrapping one backend connection, context-taking methods, %w-wrapped
// errors), generalized from an Ethereum JSON-RPC client to a plain
// REST client since Blockfrost has no RPC/websocket surface.
package blockfrost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chainprovider"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// Client is a Blockfrost-backed chainprovider.Provider.
type Client struct {
	baseURL   string
	projectID string
	network   string
	http      *http.Client
}

// New builds a Client. baseURL is the network-specific Blockfrost API
// root (e.g. "https://cardano-preview.blockfrost.io/api/v0").
func New(baseURL, projectID, network string) *Client {
	return &Client{
		baseURL:   baseURL,
		projectID: projectID,
		network:   network,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

var _ chainprovider.Provider = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return poierrors.Wrap(poierrors.KindInvalidInput, "build blockfrost request", err)
	}
	req.Header.Set("project_id", c.projectID)
	if body != nil {
		req.Header.Set("Content-Type", "application/cbor")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return poierrors.Wrap(poierrors.KindNetworkTimeout, "blockfrost request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return poierrors.New(poierrors.KindRateLimited, "blockfrost rate limit exceeded")
	}
	if resp.StatusCode == http.StatusNotFound {
		return poierrors.New(poierrors.KindStorageNotFound, "blockfrost: resource not found at "+path)
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return poierrors.New(poierrors.KindSubmissionFailed, fmt.Sprintf("blockfrost %s: status %d: %s", path, resp.StatusCode, data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type txMetadataLabel struct {
	Label        string          `json:"label"`
	JSONMetadata json.RawMessage `json:"json_metadata"`
}

// GetTxMetadata fetches the metadata blob at label for txHash. It
// returns (nil, nil) — never an error — when txHash doesn't exist or
// carries no metadata at label: absence is an expected outcome (e.g. a
// not-yet-anchored transaction), not a failure.
func (c *Client) GetTxMetadata(ctx context.Context, txHash string, label int) (*chainprovider.TxMetadata, error) {
	var labels []txMetadataLabel
	if err := c.do(ctx, http.MethodGet, "/txs/"+txHash+"/metadata", nil, &labels); err != nil {
		if poierrors.Is(err, poierrors.KindStorageNotFound) {
			return nil, nil
		}
		return nil, err
	}

	wantLabel := fmt.Sprintf("%d", label)
	for _, l := range labels {
		if l.Label != wantLabel {
			continue
		}
		var value interface{}
		if err := json.Unmarshal(l.JSONMetadata, &value); err != nil {
			return nil, poierrors.Wrap(poierrors.KindInvalidInput, "decode blockfrost metadata JSON", err)
		}
		return &chainprovider.TxMetadata{TxHash: txHash, Label: label, Value: value}, nil
	}
	return nil, nil
}

type txResponse struct {
	Block       string `json:"block"`
	BlockHeight int64  `json:"block_height"`
}

type blockResponse struct {
	Height int64 `json:"height"`
}

// GetTxInfo fetches confirmation/finality info for txHash by diffing
// the transaction's block height against the chain tip.
func (c *Client) GetTxInfo(ctx context.Context, txHash string) (*chainprovider.TxInfo, error) {
	var tx txResponse
	if err := c.do(ctx, http.MethodGet, "/txs/"+txHash, nil, &tx); err != nil {
		return nil, err
	}

	var tip blockResponse
	if err := c.do(ctx, http.MethodGet, "/blocks/latest", nil, &tip); err != nil {
		return nil, err
	}

	confirmations := int(tip.Height-tx.BlockHeight) + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return &chainprovider.TxInfo{
		TxHash:        txHash,
		BlockHeight:   tx.BlockHeight,
		Confirmations: confirmations,
		Confirmed:     confirmations > 0,
	}, nil
}

// GetConfirmations is a convenience wrapper around GetTxInfo.
func (c *Client) GetConfirmations(ctx context.Context, txHash string) (int, error) {
	info, err := c.GetTxInfo(ctx, txHash)
	if err != nil {
		return 0, err
	}
	return info.Confirmations, nil
}

// SubmitAnchor submits a pre-built, pre-signed transaction to
// Blockfrost's /tx/submit endpoint. metadata must be the raw signed
// transaction CBOR bytes ([]byte) — label is accepted for interface
// symmetry with chainprovider.Provider but is not used here: by the
// time a transaction reaches this call it has already been built with
// the anchor metadata embedded at that label by the caller (building
// and signing Cardano transactions is out of this SDK's scope per
// spec.md §1).
func (c *Client) SubmitAnchor(ctx context.Context, _ int, metadata interface{}) (string, error) {
	signedTxCBOR, ok := metadata.([]byte)
	if !ok {
		return "", poierrors.New(poierrors.KindInvalidInput, "blockfrost SubmitAnchor requires metadata as a pre-signed transaction []byte")
	}

	var txHash string
	if err := c.do(ctx, http.MethodPost, "/tx/submit", bytes.NewReader(signedTxCBOR), &txHash); err != nil {
		return "", err
	}
	return txHash, nil
}

// IsReady reports whether Blockfrost's health endpoint is reachable.
func (c *Client) IsReady(ctx context.Context) bool {
	var health struct {
		IsHealthy bool `json:"is_healthy"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &health); err != nil {
		return false
	}
	return health.IsHealthy
}

// GetNetwork returns the network this client was configured for.
func (c *Client) GetNetwork() string { return c.network }
