// Copyright 2025 Flux Point Studios
//
// Package koios is a thin Cardano REST client implementing
// pkg/chainprovider.Provider against the Koios API — an alternative
// backend to internal/providers/blockfrost for callers who would
// rather not hold a Blockfrost project ID. Same scope boundary as
// blockfrost: SubmitAnchor expects an already-signed transaction.
//
// Grounded the same way as internal/providers/blockfrost on the
// teacher's pkg/ethereum.Client shape.
package koios

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

// Client is a Koios-backed chainprovider.Provider.
type Client struct {
	baseURL string
	network string
	http    *http.Client
}

// New builds a Client against baseURL (e.g.
// "https://preview.koios.rest/api/v1").
func New(baseURL, network string) *Client {
	return &Client{
		baseURL: baseURL,
		network: network,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

var _ chainprovider.Provider = (*Client)(nil)

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return poierrors.Wrap(poierrors.KindInvalidInput, "encode koios request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return poierrors.Wrap(poierrors.KindInvalidInput, "build koios request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return poierrors.Wrap(poierrors.KindNetworkTimeout, "koios request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return poierrors.New(poierrors.KindSubmissionFailed, fmt.Sprintf("koios %s: status %d: %s", path, resp.StatusCode, data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type txInfoEntry struct {
	TxHash        string          `json:"tx_hash"`
	BlockHeight   int64           `json:"block_height"`
	Metadata      json.RawMessage `json:"metadata"`
	AbsoluteSlot  int64           `json:"absolute_slot"`
}

// GetTxMetadata fetches the metadata blob at label for txHash via
// Koios's tx_metadata endpoint. It returns (nil, nil) — never an
// error — when txHash has no metadata entries or none at label:
// absence is an expected outcome (e.g. a not-yet-anchored
// transaction), not a failure.
func (c *Client) GetTxMetadata(ctx context.Context, txHash string, label int) (*chainprovider.TxMetadata, error) {
	var entries []struct {
		TxHash   string                 `json:"tx_hash"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := c.post(ctx, "/tx_metadata", map[string]interface{}{"_tx_hashes": []string{txHash}}, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	wantLabel := fmt.Sprintf("%d", label)
	value, ok := entries[0].Metadata[wantLabel]
	if !ok {
		return nil, nil
	}
	return &chainprovider.TxMetadata{TxHash: txHash, Label: label, Value: value}, nil
}

// GetTxInfo fetches confirmation/finality info for txHash.
func (c *Client) GetTxInfo(ctx context.Context, txHash string) (*chainprovider.TxInfo, error) {
	var txs []txInfoEntry
	if err := c.post(ctx, "/tx_info", map[string]interface{}{"_tx_hashes": []string{txHash}}, &txs); err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, poierrors.New(poierrors.KindStorageNotFound, "transaction not found")
	}

	var tips []struct {
		BlockNo int64 `json:"block_no"`
	}
	if err := c.post(ctx, "/tip", nil, &tips); err != nil {
		return nil, err
	}
	if len(tips) == 0 {
		return nil, poierrors.New(poierrors.KindStorageNotFound, "koios returned no chain tip")
	}

	confirmations := int(tips[0].BlockNo-txs[0].BlockHeight) + 1
	if confirmations < 0 {
		confirmations = 0
	}
	return &chainprovider.TxInfo{
		TxHash:        txHash,
		BlockHeight:   txs[0].BlockHeight,
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

// SubmitAnchor submits a pre-built, pre-signed transaction via
// Koios's /submittx endpoint. metadata must be the raw signed
// transaction CBOR bytes ([]byte) — see the equivalent note on
// internal/providers/blockfrost.Client.SubmitAnchor.
func (c *Client) SubmitAnchor(ctx context.Context, _ int, metadata interface{}) (string, error) {
	signedTxCBOR, ok := metadata.([]byte)
	if !ok {
		return "", poierrors.New(poierrors.KindInvalidInput, "koios SubmitAnchor requires metadata as a pre-signed transaction []byte")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submittx", bytes.NewReader(signedTxCBOR))
	if err != nil {
		return "", poierrors.Wrap(poierrors.KindInvalidInput, "build koios submit request", err)
	}
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", poierrors.Wrap(poierrors.KindNetworkTimeout, "koios submit failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", poierrors.Wrap(poierrors.KindNetworkTimeout, "read koios submit response", err)
	}
	if resp.StatusCode >= 400 {
		return "", poierrors.New(poierrors.KindSubmissionFailed, fmt.Sprintf("koios submittx: status %d: %s", resp.StatusCode, data))
	}

	var txHash string
	if err := json.Unmarshal(data, &txHash); err == nil && txHash != "" {
		return txHash, nil
	}
	return string(bytes.Trim(data, "\"\n")), nil
}

// IsReady reports whether Koios's /tip endpoint is reachable.
func (c *Client) IsReady(ctx context.Context) bool {
	var tips []struct {
		BlockNo int64 `json:"block_no"`
	}
	return c.post(ctx, "/tip", nil, &tips) == nil
}

// GetNetwork returns the network this client was configured for.
func (c *Client) GetNetwork() string { return c.network }
