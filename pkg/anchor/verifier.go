package anchor

import (
	"context"
	"fmt"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/chainprovider"
	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// DefaultConfirmationThreshold is the confirmation count below which
// VerifyOnChain treats a match as non-fatal (a warning, not a failure)
// — the transaction is real but not yet settled deeply enough for the
// caller to treat it as final.
const DefaultConfirmationThreshold = 10

// VerifyOptions configures VerifyOnChain.
type VerifyOptions struct {
	// ConfirmationThreshold overrides DefaultConfirmationThreshold when non-zero.
	ConfirmationThreshold int
}

func (o VerifyOptions) threshold() int {
	if o.ConfirmationThreshold > 0 {
		return o.ConfirmationThreshold
	}
	return DefaultConfirmationThreshold
}

// VerifyResult is the outcome of an on-chain anchor verification.
type VerifyResult struct {
	Valid         bool
	Confirmations int
	Entry         *Entry
	Errors        []string
	Warnings      []string
}

func (r *VerifyResult) fail(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}

func (r *VerifyResult) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// VerifyOnChain fetches metadata at label for txHash from provider,
// locates the anchor entry matching expectedRootHash, and confirms the
// transaction has reached opts' confirmation threshold. A match with
// insufficient confirmations is reported as a warning, not a failure:
// the commitment is genuine but not yet final by the caller's policy.
func VerifyOnChain(ctx context.Context, provider chainprovider.Provider, txHash string, label int, expectedRootHash string, opts VerifyOptions) (*VerifyResult, error) {
	result := &VerifyResult{Valid: true}

	meta, err := provider.GetTxMetadata(ctx, txHash, label)
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindStorageNotFound, "fetch anchor metadata", err)
	}
	if meta == nil {
		result.fail(fmt.Sprintf("no anchor metadata found at label %d for tx %s", label, txHash))
		return result, nil
	}

	raw, ok := meta.Value.(map[string]interface{})
	if !ok {
		return nil, poierrors.New(poierrors.KindInvalidInput, "anchor metadata is not an object")
	}

	parsed := ParseEnvelope(raw)
	result.Warnings = append(result.Warnings, parsed.Warnings...)
	for _, e := range parsed.Errors {
		result.warn("entry parse error: " + e)
	}

	var match *Entry
	for i := range parsed.Entries {
		if parsed.Entries[i].RootHash == expectedRootHash {
			match = &parsed.Entries[i]
			break
		}
	}
	if match == nil {
		result.fail(fmt.Sprintf("no anchor entry in tx %s matches rootHash %s", txHash, expectedRootHash))
		return result, nil
	}
	result.Entry = match

	selfHash, err := ComputeEntryManifestHash(*match)
	if err != nil {
		result.fail("could not recompute entry self-hash: " + err.Error())
	} else if selfHash.Hex() != match.ManifestHash {
		result.fail("anchor entry manifestHash does not match its own content")
	}

	info, err := provider.GetTxInfo(ctx, txHash)
	if err != nil {
		return nil, poierrors.Wrap(poierrors.KindStorageNotFound, "fetch transaction info", err)
	}
	result.Confirmations = info.Confirmations

	threshold := opts.threshold()
	if info.Confirmations < threshold {
		result.warn(fmt.Sprintf("only %d confirmations, below threshold %d", info.Confirmations, threshold))
	}

	return result, nil
}
