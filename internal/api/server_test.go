package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sameermankotia/AptosAI/internal/advisor"
	"github.com/sameermankotia/AptosAI/internal/auth"
	"github.com/sameermankotia/AptosAI/internal/chain"
	"github.com/sameermankotia/AptosAI/internal/dex"
	"github.com/sameermankotia/AptosAI/internal/journal"
	"github.com/sameermankotia/AptosAI/internal/portfolio"
	"github.com/sameermankotia/AptosAI/internal/trading"
)

type apiChain struct{}

func (apiChain) GetResources(ctx context.Context, address string) ([]chain.Resource, error) {
	return []chain.Resource{
		{Type: "0x1::LiquidityPool::LP", Data: json.RawMessage(`{"value":"100"}`)},
		{Type: "0x1::Coin", Data: json.RawMessage(`{}`)},
	}, nil
}

func (apiChain) GetResource(ctx context.Context, address, resourceType string) (*chain.Resource, error) {
	return nil, errors.New("not implemented")
}

func (apiChain) GetBalance(ctx context.Context, address, coinType string) (string, error) {
	return "1000", nil
}

func (apiChain) GetTransactionHistory(ctx context.Context, address string, limit int) ([]chain.Transaction, error) {
	return []chain.Transaction{{Hash: "0xabc", Success: true}}, nil
}

func (apiChain) SubmitTransaction(ctx context.Context, payload chain.EntryFunctionPayload) (string, error) {
	return "0xsubmitted", nil
}

func (apiChain) CanSign() bool         { return true }
func (apiChain) SignerAddress() string { return "0xfeed" }
func (apiChain) Close()                {}

type fixedQuotePlugin struct {
	name   string
	output string
}

func (p *fixedQuotePlugin) Info() dex.Info {
	return dex.Info{Name: p.name, Actions: []string{dex.ActionCalculateSwap}}
}

func (p *fixedQuotePlugin) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	if action != dex.ActionCalculateSwap {
		return nil, errors.New("unknown action")
	}
	return &dex.Quote{Protocol: p.name, OutputAmount: p.output, PriceImpact: "0.10"}, nil
}

func newTestServer(t *testing.T, authSvc *auth.Service) (*Server, *journal.MemoryStore) {
	t.Helper()
	registry := dex.NewRegistry()
	registry.Register(dex.ProtocolLiquidswap, &fixedQuotePlugin{name: dex.ProtocolLiquidswap, output: "900"})
	registry.Register(dex.ProtocolPancake, &fixedQuotePlugin{name: dex.ProtocolPancake, output: "950"})

	aggregator, err := portfolio.New(apiChain{}, registry, advisor.Disabled{})
	if err != nil {
		t.Fatalf("portfolio.New: %v", err)
	}
	store := journal.NewMemoryStore()
	loop, err := trading.NewLoop(trading.Config{Interval: time.Hour}, apiChain{}, registry, advisor.Disabled{}, nil, store, nil)
	if err != nil {
		t.Fatalf("trading.NewLoop: %v", err)
	}
	return NewServer(":0", aggregator, loop, store, authSvc), store
}

func TestHandleAnalyze(t *testing.T) {
	server, _ := newTestServer(t, nil)
	body := strings.NewReader(`{"address":"0xcafe"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/portfolio/analyze", body)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body)
	}
	var analysis portfolio.Analysis
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if analysis.TotalValue != "100" || len(analysis.Positions) != 1 {
		t.Fatalf("unexpected analysis %+v", analysis)
	}
}

func TestHandleAnalyzeRejectsMissingAddress(t *testing.T) {
	server, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/portfolio/analyze", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSwapQuote(t *testing.T) {
	server, _ := newTestServer(t, nil)
	body := strings.NewReader(`{"fromToken":"0x1::aptos_coin::AptosCoin","toToken":"0x1::usdc::USDC","amount":"1000"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/swap/quote", body)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body)
	}
	var suggestion portfolio.SwapSuggestion
	if err := json.Unmarshal(rec.Body.Bytes(), &suggestion); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if suggestion.Best == nil || suggestion.Best.Protocol != dex.ProtocolPancake {
		t.Fatalf("unexpected suggestion %+v", suggestion)
	}
}

func TestLoopLifecycleEndpoints(t *testing.T) {
	server, _ := newTestServer(t, nil)
	handler := server.Handler()

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	if rec := do(http.MethodGet, "/api/v1/loop/status"); rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/v1/loop/start"); rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodPost, "/api/v1/loop/start"); rec.Code != http.StatusConflict {
		t.Fatalf("double start: expected 409, got %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/v1/loop/stop"); rec.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodPost, "/api/v1/loop/stop"); rec.Code != http.StatusConflict {
		t.Fatalf("stop while idle: expected 409, got %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/api/v1/loop/start"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET start: expected 405, got %d", rec.Code)
	}
}

func TestHandleTrades(t *testing.T) {
	server, store := newTestServer(t, nil)
	record := &journal.TradeRecord{
		Protocol: dex.ProtocolPancake,
		Status:   journal.StatusSubmitted,
		TxHash:   "0xaa",
	}
	if err := store.Record(context.Background(), record); err != nil {
		t.Fatalf("Record: %v", err)
	}
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var records []journal.TradeRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(records) != 1 || records[0].TxHash != "0xaa" {
		t.Fatalf("unexpected records %+v", records)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades/"+record.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("detail: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("detail missing: expected 404, got %d", rec.Code)
	}
}

func TestHandleTradesClampsLimit(t *testing.T) {
	server, store := newTestServer(t, nil)
	for i := 0; i < maxTradesLimit+20; i++ {
		err := store.Record(context.Background(), &journal.TradeRecord{
			Protocol: dex.ProtocolPancake,
			Status:   journal.StatusSubmitted,
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades?limit=100000", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []journal.TradeRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(records) != maxTradesLimit {
		t.Fatalf("expected limit to clamp at %d, got %d records", maxTradesLimit, len(records))
	}
}

func TestAPIKeyProtection(t *testing.T) {
	server, _ := newTestServer(t, auth.NewService(true, []string{"secret"}))
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/loop/status", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loop/status", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", rec.Code)
	}

	// Health and metrics stay open for probes and scrapers.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected open healthz, got %d", rec.Code)
	}
}
