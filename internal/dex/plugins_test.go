package dex

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/sameermankotia/AptosAI/internal/chain"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const (
	coinAPT  = "0x1::aptos_coin::AptosCoin"
	coinUSDC = "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDC"
)

// fakeChain serves canned resources keyed by "address|type".
type fakeChain struct {
	resources map[string]string
}

func (f *fakeChain) GetResources(context.Context, string) ([]chain.Resource, error) {
	return nil, nil
}

func (f *fakeChain) GetResource(_ context.Context, address, resourceType string) (*chain.Resource, error) {
	data, ok := f.resources[address+"|"+resourceType]
	if !ok {
		return nil, xerrors.New(xerrors.CodeChainFailure, "resource not found")
	}
	return &chain.Resource{Type: resourceType, Data: json.RawMessage(data)}, nil
}

func (f *fakeChain) GetBalance(context.Context, string, string) (string, error) {
	return "0", nil
}

func (f *fakeChain) GetTransactionHistory(context.Context, string, int) ([]chain.Transaction, error) {
	return nil, nil
}

func (f *fakeChain) SubmitTransaction(context.Context, chain.EntryFunctionPayload) (string, error) {
	return "", xerrors.New(xerrors.CodeSignerMissing, "")
}

func (f *fakeChain) CanSign() bool         { return false }
func (f *fakeChain) SignerAddress() string { return "" }
func (f *fakeChain) Close()                {}

func liquidswapFixture() *Liquidswap {
	client := &fakeChain{resources: map[string]string{
		"0xpool|0x190d::lp::LiquidityPool": `{"coin_x_reserve":{"value":"1000000"},"coin_y_reserve":{"value":"4000000"}}`,
	}}
	pools := []Pool{{
		Protocol:     "liquidityPool",
		Address:      "0xpool",
		ResourceType: "0x190d::lp::LiquidityPool",
		CoinX:        coinAPT,
		CoinY:        coinUSDC,
	}}
	return NewLiquidswap(client, pools)
}

func TestLiquidswapCalculateSwap(t *testing.T) {
	plugin := liquidswapFixture()

	result, err := plugin.Execute(context.Background(), ActionCalculateSwap, map[string]any{
		"fromToken": coinAPT,
		"toToken":   coinUSDC,
		"amount":    "1000",
	})
	if err != nil {
		t.Fatalf("calculate swap: %v", err)
	}
	quote, ok := result.(*Quote)
	if !ok {
		t.Fatalf("unexpected result type %T", result)
	}

	// out = 4000000*1000*9970 / (1000000*10000 + 1000*9970) = 3984.
	if quote.OutputAmount != "3984" {
		t.Fatalf("unexpected output amount: %s", quote.OutputAmount)
	}
	if quote.FeeBps != liquidswapFeeBps {
		t.Fatalf("unexpected fee: %d", quote.FeeBps)
	}
	if quote.PriceImpact == "" {
		t.Fatal("price impact missing")
	}
}

func TestLiquidswapReverseDirection(t *testing.T) {
	plugin := liquidswapFixture()

	result, err := plugin.Execute(context.Background(), ActionCalculateSwap, map[string]any{
		"fromToken": coinUSDC,
		"toToken":   coinAPT,
		"amount":    "4000",
	})
	if err != nil {
		t.Fatalf("calculate swap: %v", err)
	}
	quote := result.(*Quote)
	out, _ := new(big.Int).SetString(quote.OutputAmount, 10)
	// Swapping Y for X at a 4:1 pool should return just under 1000 X.
	if out.Cmp(big.NewInt(900)) < 0 || out.Cmp(big.NewInt(1000)) > 0 {
		t.Fatalf("reverse quote out of range: %s", quote.OutputAmount)
	}
}

func TestLiquidswapUnknownPair(t *testing.T) {
	plugin := liquidswapFixture()
	_, err := plugin.Execute(context.Background(), ActionCalculateSwap, map[string]any{
		"fromToken": coinAPT,
		"toToken":   "0x2::other::Coin",
		"amount":    "10",
	})
	if err == nil {
		t.Fatal("expected missing-pool error")
	}
}

func TestLiquidswapBuildSwapPayload(t *testing.T) {
	plugin := liquidswapFixture()
	result, err := plugin.Execute(context.Background(), ActionBuildSwap, map[string]any{
		"fromToken": coinAPT,
		"toToken":   coinUSDC,
		"amount":    "1000",
		"minOutput": "3900",
	})
	if err != nil {
		t.Fatalf("build swap: %v", err)
	}
	payload := result.(*chain.EntryFunctionPayload)
	if payload.Function != liquidswapRouter+"::swap" {
		t.Fatalf("unexpected function: %s", payload.Function)
	}
	if len(payload.TypeArguments) != 2 || payload.TypeArguments[0] != coinAPT {
		t.Fatalf("unexpected type arguments: %v", payload.TypeArguments)
	}
	if len(payload.Arguments) != 2 || payload.Arguments[1] != "3900" {
		t.Fatalf("unexpected arguments: %v", payload.Arguments)
	}
}

func TestPancakeCalculateSwapUsesLowerFee(t *testing.T) {
	client := &fakeChain{resources: map[string]string{
		"0xpair|0xc7ef::swap::TokenPairReserve": `{"reserve_x":"1000000","reserve_y":"4000000"}`,
	}}
	pools := []Pool{{
		Protocol:     "pancake",
		Address:      "0xpair",
		ResourceType: "0xc7ef::swap::TokenPairReserve",
		CoinX:        coinAPT,
		CoinY:        coinUSDC,
	}}
	plugin := NewPancake(client, pools)

	result, err := plugin.Execute(context.Background(), ActionCalculateSwap, map[string]any{
		"fromToken": coinAPT,
		"toToken":   coinUSDC,
		"amount":    "1000",
	})
	if err != nil {
		t.Fatalf("calculate swap: %v", err)
	}
	quote := result.(*Quote)
	// out = 4000000*1000*9975 / (1000000*10000 + 1000*9975) = 3986.
	if quote.OutputAmount != "3986" {
		t.Fatalf("unexpected output amount: %s", quote.OutputAmount)
	}
	if quote.FeeBps != pancakeFeeBps {
		t.Fatalf("unexpected fee: %d", quote.FeeBps)
	}
}

func TestPancakeStakePayload(t *testing.T) {
	plugin := NewPancake(&fakeChain{}, nil)
	result, err := plugin.Execute(context.Background(), ActionStake, map[string]any{
		"token":  coinAPT,
		"amount": "500",
	})
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	payload := result.(*chain.EntryFunctionPayload)
	if payload.Function != pancakeMasterchef+"::deposit" {
		t.Fatalf("unexpected function: %s", payload.Function)
	}
}

func TestConstantProductRejectsEmptyPool(t *testing.T) {
	_, err := constantProductOut(big.NewInt(10), big.NewInt(0), big.NewInt(100), 30)
	if err == nil {
		t.Fatal("expected error for empty reserves")
	}
}

func TestFormatBpsPercent(t *testing.T) {
	cases := map[int64]string{
		0:    "0.00",
		42:   "0.42",
		100:  "1.00",
		1234: "12.34",
	}
	for bps, want := range cases {
		if got := FormatBpsPercent(bps); got != want {
			t.Fatalf("FormatBpsPercent(%d) = %s, want %s", bps, got, want)
		}
	}
}
