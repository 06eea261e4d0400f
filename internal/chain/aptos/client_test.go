package aptos

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sameermankotia/AptosAI/internal/chain"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const testKey = "0x0101010101010101010101010101010101010101010101010101010101010101"

func chainPayload() chain.EntryFunctionPayload {
	return chain.EntryFunctionPayload{
		Function:      "0x1::coin::transfer",
		TypeArguments: []string{"0x1::aptos_coin::AptosCoin"},
		Arguments:     []any{"0xabc", "100"},
	}
}

func newTestClient(t *testing.T, handler http.Handler, key string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{NodeURL: srv.URL, PrivateKey: key})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when node URL is missing")
	}
	if _, err := NewClient(Config{NodeURL: "http://localhost", PrivateKey: "zz"}); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}

func TestGetResources(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/resources") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"type":"0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>","data":{"coin":{"value":"1500"}}},
			{"type":"0x1::account::Account","data":{}}
		]`))
	}), "")

	resources, err := client.GetResources(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("get resources: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[0].Type != "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>" {
		t.Fatalf("unexpected type: %s", resources[0].Type)
	}
}

func TestGetBalanceReturnsZeroWhenStoreMissing(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"0x1::account::Account","data":{}}]`))
	}), "")

	balance, err := client.GetBalance(context.Background(), "0xabc", "0x1::aptos_coin::AptosCoin")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != "0" {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}

func TestGetBalanceReadsCoinStore(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>","data":{"coin":{"value":"42"}}}]`))
	}), "")

	balance, err := client.GetBalance(context.Background(), "0xabc", "0x1::aptos_coin::AptosCoin")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance != "42" {
		t.Fatalf("expected 42, got %s", balance)
	}
}

func TestGetBalancePropagatesNodeFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), "")

	if _, err := client.GetBalance(context.Background(), "0xabc", "0x1::aptos_coin::AptosCoin"); err == nil {
		t.Fatal("expected node failure to surface as an error, not a zero balance")
	}
}

func TestGetBalanceIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"type":"0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>","data":{"coin":{"value":"7"}}}]`))
	}), "")

	first, err := client.GetBalance(context.Background(), "0xabc", "0x1::aptos_coin::AptosCoin")
	if err != nil {
		t.Fatalf("first get balance: %v", err)
	}
	second, err := client.GetBalance(context.Background(), "0xabc", "0x1::aptos_coin::AptosCoin")
	if err != nil {
		t.Fatalf("second get balance: %v", err)
	}
	if first != second {
		t.Fatalf("balance changed without state change: %s != %s", first, second)
	}
}

func TestGetTransactionHistoryAppliesLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Fatalf("unexpected limit: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"hash":"0xdead","success":true}]`))
	}), "")

	txns, err := client.GetTransactionHistory(context.Background(), "0xabc", 5)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(txns) != 1 || txns[0].Hash != "0xdead" {
		t.Fatalf("unexpected history: %+v", txns)
	}
}

func TestSubmitTransactionRequiresSigner(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the node without a signer")
	}), "")

	_, err := client.SubmitTransaction(context.Background(), chainPayload())
	if err == nil {
		t.Fatal("expected signer-missing error")
	}
	if !stdErrors.Is(err, xerrors.New(xerrors.CodeSignerMissing, "")) {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestSubmitTransactionSignsAndSubmits(t *testing.T) {
	var sawEncode, sawSubmit bool
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/encode_submission"):
			sawEncode = true
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode encode_submission body: %v", err)
			}
			if body["sender"] == "" {
				t.Fatal("sender missing from submission")
			}
			_, _ = w.Write([]byte(`"0x0102"`))
		case r.URL.Path == "/v1/transactions" && r.Method == http.MethodPost:
			sawSubmit = true
			var body struct {
				Signature map[string]string `json:"signature"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode submit body: %v", err)
			}
			if body.Signature["type"] != "ed25519_signature" || body.Signature["signature"] == "" {
				t.Fatalf("unexpected signature block: %+v", body.Signature)
			}
			_, _ = w.Write([]byte(`{"hash":"0xfeed"}`))
		default:
			// Account lookup for the sequence number.
			_, _ = w.Write([]byte(`{"sequence_number":"12"}`))
		}
	}), testKey)

	hash, err := client.SubmitTransaction(context.Background(), chainPayload())
	if err != nil {
		t.Fatalf("submit transaction: %v", err)
	}
	if hash != "0xfeed" {
		t.Fatalf("unexpected hash: %s", hash)
	}
	if !sawEncode || !sawSubmit {
		t.Fatalf("expected encode+submit round trip, got encode=%v submit=%v", sawEncode, sawSubmit)
	}
}
