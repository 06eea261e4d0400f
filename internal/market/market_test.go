package market

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sameermankotia/AptosAI/internal/chain"
	"github.com/sameermankotia/AptosAI/internal/dex"
)

type stubSource struct {
	name   string
	points []Point
	err    error
	delay  time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]Point, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.points, s.err
}

func TestGatherMergesAllSources(t *testing.T) {
	a := &stubSource{name: "a", points: []Point{{Source: "a", Symbol: "APT", Kind: KindPrice, Value: "4.50"}}}
	b := &stubSource{name: "b", points: []Point{
		{Source: "b", Symbol: "APT", Kind: KindVolume, Value: "1000"},
		{Source: "b", Symbol: "USDC", Kind: KindPrice, Value: "1.00"},
	}}

	snap, err := Gather(context.Background(), a, b)
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(snap.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(snap.Points))
	}
	if price, ok := snap.PriceOf("APT"); !ok || price != "4.50" {
		t.Fatalf("PriceOf(APT) = %q, %v", price, ok)
	}
	syms := snap.Symbols()
	if len(syms) != 2 || syms[0] != "APT" || syms[1] != "USDC" {
		t.Fatalf("unexpected symbols %v", syms)
	}
}

func TestGatherFailsWhenAnySourceFails(t *testing.T) {
	ok := &stubSource{name: "ok", points: []Point{{Symbol: "APT", Kind: KindPrice, Value: "1"}}}
	bad := &stubSource{name: "bad", err: errors.New("upstream down")}

	if _, err := Gather(context.Background(), ok, bad); err == nil {
		t.Fatal("expected gather to surface the source error")
	}
}

func TestPriceSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "APT,USDC" {
			t.Errorf("unexpected symbols query %q", got)
		}
		json.NewEncoder(w).Encode(map[string]priceEntry{
			"APT":  {Price: "4.56", Volume24h: "98765"},
			"USDC": {Price: "1.00"},
		})
	}))
	defer srv.Close()

	src, err := NewPriceSource(PriceConfig{BaseURL: srv.URL, Symbols: []string{"APT", "USDC"}})
	if err != nil {
		t.Fatalf("NewPriceSource: %v", err)
	}
	points, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d: %v", len(points), points)
	}
	if points[0].Symbol != "APT" || points[0].Kind != KindPrice || points[0].Value != "4.56" {
		t.Fatalf("unexpected first point %+v", points[0])
	}
}

func TestPriceSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src, err := NewPriceSource(PriceConfig{BaseURL: srv.URL, Symbols: []string{"APT"}})
	if err != nil {
		t.Fatalf("NewPriceSource: %v", err)
	}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

type depthChain struct {
	resources map[string]chain.Resource
}

func (c *depthChain) GetResources(ctx context.Context, address string) ([]chain.Resource, error) {
	return nil, errors.New("not implemented")
}

func (c *depthChain) GetResource(ctx context.Context, address, resourceType string) (*chain.Resource, error) {
	res, ok := c.resources[address+"|"+resourceType]
	if !ok {
		return nil, errors.New("resource not found")
	}
	return &res, nil
}

func (c *depthChain) GetBalance(ctx context.Context, address, coinType string) (string, error) {
	return "0", nil
}

func (c *depthChain) GetTransactionHistory(ctx context.Context, address string, limit int) ([]chain.Transaction, error) {
	return nil, nil
}

func (c *depthChain) SubmitTransaction(ctx context.Context, payload chain.EntryFunctionPayload) (string, error) {
	return "", errors.New("no signer")
}

func (c *depthChain) CanSign() bool         { return false }
func (c *depthChain) SignerAddress() string { return "" }
func (c *depthChain) Close()                {}

func TestDepthSourceReadsBothReserveLayouts(t *testing.T) {
	nested := chain.Resource{
		Type: "0x1::pool::Nested",
		Data: json.RawMessage(`{"coin_x_reserve":{"value":"1000000"},"coin_y_reserve":{"value":"4000000"}}`),
	}
	plain := chain.Resource{
		Type: "0x2::pool::Plain",
		Data: json.RawMessage(`{"reserve_x":"500","reserve_y":"2500"}`),
	}
	client := &depthChain{resources: map[string]chain.Resource{
		"0xa|0x1::pool::Nested": nested,
		"0xb|0x2::pool::Plain":  plain,
	}}

	src, err := NewDepthSource(client, []dex.Pool{
		{Protocol: "liquidswap", Address: "0xa", ResourceType: "0x1::pool::Nested", CoinX: "APT", CoinY: "USDC"},
		{Protocol: "pancake", Address: "0xb", ResourceType: "0x2::pool::Plain", CoinX: "APT", CoinY: "USDT"},
	})
	if err != nil {
		t.Fatalf("NewDepthSource: %v", err)
	}
	points, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 4 {
		t.Fatalf("expected 4 depth points, got %d: %v", len(points), points)
	}
	if points[0].Value != "1000000" || points[1].Value != "4000000" {
		t.Fatalf("unexpected nested reserves %+v", points[:2])
	}
	if points[2].Value != "500" || points[3].Value != "2500" {
		t.Fatalf("unexpected plain reserves %+v", points[2:])
	}
}

func TestDepthSourceFailsOnMissingPool(t *testing.T) {
	src, err := NewDepthSource(&depthChain{resources: map[string]chain.Resource{}}, []dex.Pool{
		{Protocol: "liquidswap", Address: "0xa", ResourceType: "0x1::pool::Gone", CoinX: "APT", CoinY: "USDC"},
	})
	if err != nil {
		t.Fatalf("NewDepthSource: %v", err)
	}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for missing pool resource")
	}
}

func TestTickerFeedCachesLastValue(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(tickerMessage{Symbol: "APT", Price: "4.10", Volume: "777"})
		conn.WriteJSON(tickerMessage{Symbol: "APT", Price: "4.20", Volume: "778"})
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	feed, err := NewTickerFeed(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("NewTickerFeed: %v", err)
	}
	defer feed.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		points, err := feed.Fetch(context.Background())
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		var price string
		for _, p := range points {
			if p.Symbol == "APT" && p.Kind == KindPrice {
				price = p.Value
			}
		}
		if price == "4.20" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never observed latest tick, points: %v", points)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := feed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := feed.Fetch(context.Background()); err == nil {
		t.Fatal("expected Fetch to fail after Close")
	}
}
