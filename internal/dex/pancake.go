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
	pancakeFeeBps     = 25
	pancakeRouter     = "0xc7efb4076dbe143cbcd98cfaaa929ecfc8f299203dfff63b95ccb6bfe19850fa::router"
	pancakeMasterchef = "0xc7efb4076dbe143cbcd98cfaaa929ecfc8f299203dfff63b95ccb6bfe19850fa::masterchef"
)

// Pancake quotes and builds swaps against PancakeSwap pairs and builds
// staking payloads for its farm contracts.
type Pancake struct {
	client chain.Client
	pools  []Pool
}

// NewPancake wires the plugin to the chain client and its pool inventory.
func NewPancake(client chain.Client, pools []Pool) *Pancake {
	return &Pancake{client: client, pools: pools}
}

// Info describes the plugin.
func (p *Pancake) Info() Info {
	return Info{
		Name:     ProtocolPancake,
		Protocol: "pancakeswap",
		Version:  "0.2.0",
		Actions:  []string{ActionCalculateSwap, ActionBuildSwap, ActionStake, ActionUnstake},
	}
}

// Execute dispatches a single action.
func (p *Pancake) Execute(ctx context.Context, action string, params map[string]any) (any, error) {
	switch action {
	case ActionCalculateSwap:
		return p.calculateSwap(ctx, params)
	case ActionBuildSwap:
		return p.buildSwap(params)
	case ActionStake:
		return p.stakePayload(params, "deposit")
	case ActionUnstake:
		return p.stakePayload(params, "withdraw")
	default:
		return nil, unknownAction(p.Info().Name, action)
	}
}

// pancakeReserves is the on-chain shape of a PancakeSwap TokenPairReserve.
type pancakeReserves struct {
	ReserveX string `json:"reserve_x"`
	ReserveY string `json:"reserve_y"`
}

func (p *Pancake) calculateSwap(ctx context.Context, params map[string]any) (*Quote, error) {
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
	var reserves pancakeReserves
	if err := json.Unmarshal(resource.Data, &reserves); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "decode pair reserves")
	}

	reserveIn, reserveOut, err := orientReserves(reserves.ReserveX, reserves.ReserveY, forward)
	if err != nil {
		return nil, err
	}
	amountIn, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("amount %q is not a decimal integer", amount))
	}

	amountOut, err := constantProductOut(amountIn, reserveIn, reserveOut, pancakeFeeBps)
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
		FeeBps:       pancakeFeeBps,
	}, nil
}

func (p *Pancake) buildSwap(params map[string]any) (*chain.EntryFunctionPayload, error) {
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
		Function:      pancakeRouter + "::swap_exact_input",
		TypeArguments: []string{fromToken, toToken},
		Arguments:     []any{amount, minOutput},
	}, nil
}

func (p *Pancake) stakePayload(params map[string]any, entry string) (*chain.EntryFunctionPayload, error) {
	token, err := stringParam(params, "token")
	if err != nil {
		return nil, err
	}
	amount, err := stringParam(params, "amount")
	if err != nil {
		return nil, err
	}

	return &chain.EntryFunctionPayload{
		Function:      pancakeMasterchef + "::" + entry,
		TypeArguments: []string{token},
		Arguments:     []any{amount},
	}, nil
}

func (p *Pancake) findPool(fromToken, toToken string) (Pool, bool, error) {
	for _, pool := range p.pools {
		if ok, forward := pool.Matches(fromToken, toToken); ok {
			return pool, forward, nil
		}
	}
	return Pool{}, false, xerrors.New(xerrors.CodeNotFound,
		fmt.Sprintf("no pancake pair for %s/%s", fromToken, toToken))
}

var _ Plugin = (*Pancake)(nil)
