// Package dex hosts the protocol plugins and the registry that dispatches
// (plugin, action, params) triples to them.
package dex

import (
	"context"
	"fmt"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

// Known plugin actions. Every plugin documents its supported subset via
// Info; Execute fails with an unknown-action error for anything else.
const (
	ActionCalculateSwap   = "calculateSwap"
	ActionBuildSwap       = "buildSwap"
	ActionAddLiquidity    = "addLiquidity"
	ActionRemoveLiquidity = "removeLiquidity"
	ActionStake           = "stake"
	ActionUnstake         = "unstake"
)

// Registry names the built-in plugins register under.
const (
	ProtocolLiquidswap = "liquidityPool"
	ProtocolPancake    = "pancake"
)

// Info contains descriptive metadata for a plugin implementation.
type Info struct {
	Name     string   `json:"name"`
	Protocol string   `json:"protocol"`
	Version  string   `json:"version"`
	Actions  []string `json:"actions"`
}

// Plugin is a self-contained protocol handler with a single dispatch entry
// point. Implementations must be safe for concurrent Execute calls.
type Plugin interface {
	Info() Info
	Execute(ctx context.Context, action string, params map[string]any) (any, error)
}

// Quote is the result of a swap calculation. OutputAmount is a decimal
// string in the output coin's base units; PriceImpact is a percentage
// string such as "0.42".
type Quote struct {
	Protocol     string `json:"protocol"`
	FromToken    string `json:"fromToken"`
	ToToken      string `json:"toToken"`
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`
	PriceImpact  string `json:"priceImpact"`
	FeeBps       int    `json:"feeBps"`
}

// unknownAction builds the error every plugin returns for an action outside
// its supported set.
func unknownAction(plugin, action string) error {
	return xerrors.New(xerrors.CodeUnknownAction,
		fmt.Sprintf("plugin %s does not support action %q", plugin, action))
}

// stringParam extracts a required string parameter.
func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("missing parameter %q", key))
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("parameter %q must be a non-empty string", key))
	}
	return value, nil
}

// optionalStringParam extracts an optional string parameter with a default.
func optionalStringParam(params map[string]any, key, fallback string) string {
	if raw, ok := params[key]; ok {
		if value, ok := raw.(string); ok && value != "" {
			return value
		}
	}
	return fallback
}
