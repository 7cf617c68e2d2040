package anchor

import (
	"fmt"

	"github.com/Flux-Point-Studios/orynq-sdk/pkg/poierrors"
)

// ParseResult carries the outcome of a defensive envelope parse:
// entries that validated, warnings for ignored/unknown fields, and
// per-entry errors that did not abort the rest of the batch.
type ParseResult struct {
	Entries  []Entry
	Warnings []string
	Errors   []string
}

// ParseEnvelope parses raw transaction metadata (already decoded from
// CBOR/JSON by the caller's chain provider) into a ParseResult. It is
// forward-compatible: an unrecognized schema on the envelope is an
// error, but a malformed individual entry is recorded and skipped
// rather than aborting the whole batch, and unrecognized entry fields
// are ignored with a warning rather than rejected.
func ParseEnvelope(raw map[string]interface{}) ParseResult {
	result := ParseResult{}

	schemaRaw, ok := raw["schema"].(string)
	if !ok {
		result.Errors = append(result.Errors, "envelope missing string \"schema\" field")
		return result
	}
	schema := Schema(schemaRaw)
	if schema != SchemaV1 && schema != SchemaV2 {
		result.Errors = append(result.Errors, fmt.Sprintf("unrecognized envelope schema %q", schemaRaw))
		return result
	}

	anchorsRaw, ok := raw["anchors"].([]interface{})
	if !ok {
		result.Errors = append(result.Errors, "envelope missing \"anchors\" array")
		return result
	}

	for i, rawEntry := range anchorsRaw {
		m, ok := rawEntry.(map[string]interface{})
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("anchors[%d] is not an object", i))
			continue
		}
		entry, warnings, err := parseEntry(schema, m)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("anchors[%d]: %v", i, err))
			continue
		}
		result.Entries = append(result.Entries, entry)
	}

	return result
}

func parseEntry(schema Schema, m map[string]interface{}) (Entry, []string, error) {
	var warnings []string
	entry := Entry{Schema: schema}

	str := func(key string) string {
		v, _ := m[key].(string)
		return v
	}
	known := map[string]bool{
		"type": true, "version": true, "schema": true, "rootHash": true,
		"manifestHash": true, "merkleRoot": true, "itemCount": true,
		"timestamp": true, "agentId": true, "storageUri": true,
		"sessionId": true, "l2Metadata": true,
	}
	for key := range m {
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("unrecognized field %q ignored", key))
		}
	}

	entry.RootHash = str("rootHash")
	entry.ManifestHash = str("manifestHash")
	entry.MerkleRoot = str("merkleRoot")
	entry.Timestamp = str("timestamp")
	entry.AgentID = str("agentId")
	entry.StorageURI = str("storageUri")

	if entry.RootHash == "" {
		return Entry{}, warnings, poierrors.New(poierrors.KindMissingField, "anchor entry missing rootHash")
	}
	if entry.ManifestHash == "" {
		return Entry{}, warnings, poierrors.New(poierrors.KindMissingField, "anchor entry missing manifestHash")
	}
	if entry.Timestamp == "" {
		return Entry{}, warnings, poierrors.New(poierrors.KindMissingField, "anchor entry missing timestamp")
	}

	if count, ok := m["itemCount"].(float64); ok {
		entry.ItemCount = int(count)
	}

	if schema == SchemaV1 {
		if str("type") != AnchorTypeV1 {
			warnings = append(warnings, fmt.Sprintf("unexpected v1 type %q", str("type")))
		}
		return entry, warnings, nil
	}

	entry.SessionID = str("sessionId")
	if l2Raw, ok := m["l2Metadata"].(map[string]interface{}); ok {
		l2 := &L2Metadata{}
		if headID, ok := l2Raw["headId"].(string); ok {
			l2.HeadID = headID
		}
		if total, ok := l2Raw["totalCommits"].(float64); ok {
			l2.TotalCommits = int(total)
		}
		if txHash, ok := l2Raw["settlementTxHash"].(string); ok {
			l2.SettlementTxHash = txHash
		}
		entry.L2Metadata = l2
	}

	return entry, warnings, nil
}
