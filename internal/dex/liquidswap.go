package dex

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/sameermankotia/AptosAI/internal/chain"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const (
	liquidswapFeeBps = 30
	liquidswapRouter = "0x190d44266241744264b964a37b8f09863167a12d3e70cda39376cfb4e3561e12::scripts_v2"
)

// Liquidswap quotes and builds swaps against Liquidswap constant-product
// pools, and builds liquidity management payloads.
type Liquidswap struct {
	client chain.Client
	pools  []Pool
}

// NewLiquidswap wires the plugin to the chain client and its pool inventory.
func NewLiquidswap(client chain.Client, pools []Pool) *Liquidswap {
	return &Liquidswap{client: client, pools: pools}
}

// Info describes the plugin.
func (p *Liquidswap) Info() Info {
	return Info{
		Name:     ProtocolLiquidswap,
		Protocol: "liquidswap",
		Version:  "0.2.0",
		Actions:  []string{ActionCalculateSwap, ActionBuildSwap, ActionAddLiquidity, ActionRemoveLiquidity},
	}
}

// Execute dispatches a single action.
func (p *Liquidswap) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case ActionCalculateSwap:
		return p.calculateSwap(ctx, params)
	case ActionBuildSwap:
		return p.buildSwap(ctx, params)
	case ActionAddLiquidity:
		return p.liquidityPayload(params, "add_liquidity")
	case ActionRemoveLiquidity:
		return p.liquidityPayload(params, "remove_liquidity")
	default:
		return nil, unknownAction(p.Info().Name, action)
	}
}

// liquidswapReserves is the on-chain shape of a Liquidswap pool resource.
type liquidswapReserves struct {
	CoinXReserve struct {
		Value string `json:"value"`
	} `json:"coin_x_reserve"`
	CoinYReserve struct {
		Value string `json:"value"`
	} `json:"coin_y_reserve"`
}

func (p *Liquidswap) calculateSwap(ctx context.Context, params map[string]any) (*Quote, error) {
	fromToken, err := stringParam(params, "fromToken")
	if err != nil {
		return nil, err
	}
	toToken, err := stringParam(params, "toToken")
	if err != nil {
		return nil, err
	}
	amount, err := stringParam(params, "amount")
	if err != nil {
		return nil, err
	}

	pool, forward, err := p.findPool(fromToken, toToken)
	if err != nil {
		return nil, err
	}

	resource, err := p.client.GetResource(ctx, pool.Address, pool.ResourceType)
	if err != nil {
		return nil, err
	}
	var reserves liquidswapReserves
	if err := json.Unmarshal(resource.Data, &reserves); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "decode pool reserves")
	}

	reserveIn, reserveOut, err := orientReserves(reserves.CoinXReserve.Value, reserves.CoinYReserve.Value, forward)
	if err != nil {
		return nil, err
	}
	amountIn, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("amount %q is not a decimal integer", amount))
	}

	amountOut, err := constantProductOut(amountIn, reserveIn, reserveOut, liquidswapFeeBps)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Protocol:     p.Info().Name,
		FromToken:    fromToken,
		ToToken:      toToken,
		InputAmount:  amount,
		OutputAmount: amountOut.String(),
		PriceImpact:  priceImpactPercent(amountIn, amountOut, reserveIn, reserveOut),
		FeeBps:       liquidswapFeeBps,
	}, nil
}

func (p *Liquidswap) buildSwap(ctx context.Context, params map[string]any) (*chain.EntryFunctionPayload, error) {
	fromToken, err := stringParam(params, "fromToken")
	if err != nil {
		return nil, err
	}
	toToken, err := stringParam(params, "toToken")
	if err != nil {
		return nil, err
	}
	amount, err := stringParam(params, "amount")
	if err != nil {
		return nil, err
	}
	minOutput := optionalStringParam(params, "minOutput", "0")

	if _, _, err := p.findPool(fromToken, toToken); err != nil {
		return nil, err
	}

	return &chain.EntryFunctionPayload{
		Function:      liquidswapRouter + "::swap",
		TypeArguments: []string{fromToken, toToken},
		Arguments:     []any{amount, minOutput},
	}, nil
}

func (p *Liquidswap) liquidityPayload(params map[string]any, entry string) (*chain.EntryFunctionPayload, error) {
	fromToken, err := stringParam(params, "fromToken")
	if err != nil {
		return nil, err
	}
	toToken, err := stringParam(params, "toToken")
	if err != nil {
		return nil, err
	}
	amount, err := stringParam(params, "amount")
	if err != nil {
		return nil, err
	}

	return &chain.EntryFunctionPayload{
		Function:      liquidswapRouter + "::" + entry,
		TypeArguments: []string{fromToken, toToken},
		Arguments:     []any{amount},
	}, nil
}

func (p *Liquidswap) findPool(fromToken, toToken string) (Pool, bool, error) {
	for _, pool := range p.pools {
		if ok, forward := pool.Matches(fromToken, toToken); ok {
			return pool, forward, nil
		}
	}
	return Pool{}, false, xerrors.New(xerrors.CodeNotFound,
		fmt.Sprintf("no liquidswap pool for pair %s/%s", fromToken, toToken))
}

// orientReserves parses the reserve strings and orders them for the swap
// direction.
func orientReserves(reserveX, reserveY string, forward bool) (*big.Int, *big.Int, error) {
	x, ok := new(big.Int).SetString(reserveX, 10)
	if !ok {
		return nil, nil, xerrors.New(xerrors.CodeChainFailure, "pool reserve is not a decimal integer")
	}
	y, ok := new(big.Int).SetString(reserveY, 10)
	if !ok {
		return nil, nil, xerrors.New(xerrors.CodeChainFailure, "pool reserve is not a decimal integer")
	}
	if forward {
		return x, y, nil
	}
	return y, x, nil
}

var _ Plugin = (*Liquidswap)(nil)
