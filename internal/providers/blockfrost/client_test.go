package blockfrost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetTxMetadata_FindsMatchingLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/txs/abc123/metadata" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"label": "2222", "json_metadata": map[string]interface{}{"schema": "poi-anchor-v2"}},
			{"label": "42", "json_metadata": map[string]interface{}{"unrelated": true}},
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-project", "preview")
	meta, err := client.GetTxMetadata(context.Background(), "abc123", 2222)
	if err != nil {
		t.Fatalf("GetTxMetadata: %v", err)
	}
	value, ok := meta.Value.(map[string]interface{})
	if !ok || value["schema"] != "poi-anchor-v2" {
		t.Errorf("unexpected metadata value: %v", meta.Value)
	}
}

func TestGetTxMetadata_NoMatchingLabelReturnsNilNoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"label": "42", "json_metadata": map[string]interface{}{}},
		})
	}))
	defer server.Close()

	client := New(server.URL, "test-project", "preview")
	meta, err := client.GetTxMetadata(context.Background(), "abc123", 2222)
	if err != nil {
		t.Fatalf("GetTxMetadata: expected no error when no entry matches the label, got %v", err)
	}
	if meta != nil {
		t.Errorf("expected nil metadata when no entry matches the label, got %+v", meta)
	}
}

func TestGetTxMetadata_UnknownTxReturnsNilNoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "test-project", "preview")
	meta, err := client.GetTxMetadata(context.Background(), "doesnotexist", 2222)
	if err != nil {
		t.Fatalf("GetTxMetadata: expected no error for an unknown tx, got %v", err)
	}
	if meta != nil {
		t.Errorf("expected nil metadata for an unknown tx, got %+v", meta)
	}
}

func TestGetTxInfo_ComputesConfirmationsFromTip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/txs/abc123":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"block": "blk1", "block_height": 100})
		case "/blocks/latest":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"height": 105})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := New(server.URL, "test-project", "preview")
	info, err := client.GetTxInfo(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetTxInfo: %v", err)
	}
	if info.Confirmations != 6 {
		t.Errorf("confirmations = %d, want 6", info.Confirmations)
	}
}

func TestSubmitAnchor_RejectsNonBytesMetadata(t *testing.T) {
	client := New("http://unused", "test-project", "preview")
	if _, err := client.SubmitAnchor(context.Background(), 2222, "not-bytes"); err == nil {
		t.Errorf("expected an error for non-[]byte metadata")
	}
}

func TestIsReady_ReflectsHealthEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"is_healthy": true})
	}))
	defer server.Close()

	client := New(server.URL, "test-project", "preview")
	if !client.IsReady(context.Background()) {
		t.Errorf("expected IsReady to report true")
	}
}
