// Package portfolio aggregates an account's on-chain state into a DeFi
// position summary and compares swap routes across registered DEX plugins.
package portfolio

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sameermankotia/AptosAI/internal/advisor"
	"github.com/sameermankotia/AptosAI/internal/chain"
	"github.com/sameermankotia/AptosAI/internal/dex"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
	"github.com/sameermankotia/AptosAI/internal/knowledge"
	"github.com/sameermankotia/AptosAI/pkg/logger"
)

// positionMarkers classifies resources by substring match on the type tag.
// This is a heuristic, not a taxonomy; a coin named "StakeToken" will match.
var positionMarkers = []string{"LiquidityPool", "Stake", "Farm"}

const defaultHistoryLimit = 25

// Analysis is the result of AnalyzePortfolio.
type Analysis struct {
	Address    string              `json:"address"`
	Positions  []chain.Resource    `json:"positions"`
	TotalValue string              `json:"totalValue"`
	History    []chain.Transaction `json:"history"`
	Advice     string              `json:"advice"`
}

// SwapSuggestion is the result of SuggestOptimalSwap.
type SwapSuggestion struct {
	Best           *dex.Quote  `json:"best"`
	Quotes         []dex.Quote `json:"quotes"`
	Recommendation string      `json:"recommendation"`
}

// Aggregator wires the chain client, the DEX registry and the advisor.
type Aggregator struct {
	client    chain.Client
	registry  *dex.Registry
	advisor   advisor.Client
	knowledge knowledge.Provider
	protocols []string
	limit     int
}

// Option tunes an Aggregator.
type Option func(*Aggregator)

// WithHistoryLimit bounds the transaction history fetch.
func WithHistoryLimit(limit int) Option {
	return func(a *Aggregator) {
		if limit > 0 {
			a.limit = limit
		}
	}
}

// WithKnowledge attaches a protocol-notes provider used to enrich advisor
// prompts.
func WithKnowledge(provider knowledge.Provider) Option {
	return func(a *Aggregator) { a.knowledge = provider }
}

// WithProtocols overrides the plugin names queried by SuggestOptimalSwap.
func WithProtocols(names ...string) Option {
	return func(a *Aggregator) {
		if len(names) > 0 {
			a.protocols = names
		}
	}
}

// New creates an Aggregator. The advisor may be advisor.Disabled.
func New(client chain.Client, registry *dex.Registry, adv advisor.Client, opts ...Option) (*Aggregator, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "aggregator requires a chain client")
	}
	if registry == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "aggregator requires a plugin registry")
	}
	if adv == nil {
		adv = advisor.Disabled{}
	}
	a := &Aggregator{
		client:    client,
		registry:  registry,
		advisor:   adv,
		protocols: []string{dex.ProtocolLiquidswap, dex.ProtocolPancake},
		limit:     defaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// AnalyzePortfolio fetches the account's resources and transaction history
// concurrently, classifies DeFi positions, sums their value and asks the
// advisor for a summary. Any sub-step failure aborts the whole call.
func (a *Aggregator) AnalyzePortfolio(ctx context.Context, address string) (*Analysis, error) {
	if address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "address is required")
	}

	var (
		resources []chain.Resource
		history   []chain.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		resources, err = a.client.GetResources(gctx, address)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch account resources")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = a.client.GetTransactionHistory(gctx, address, a.limit)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch transaction history")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze portfolio: %w", err)
	}

	positions := FilterPositions(resources, positionMarkers)
	total, err := SumPositionValues(positions)
	if err != nil {
		return nil, fmt.Errorf("analyze portfolio: %w", err)
	}

	analysis := &Analysis{
		Address:    address,
		Positions:  positions,
		TotalValue: total.String(),
		History:    history,
	}

	resp, err := a.advisor.Generate(ctx, advisor.Request{
		Kind:      advisor.KindPortfolioAdvice,
		Subject:   fmt.Sprintf("portfolio of %s: %d positions, total value %s, %d recent transactions", address, len(positions), analysis.TotalValue, len(history)),
		Payload:   analysis,
		Knowledge: a.cards("portfolio", "liquidity", "staking"),
	})
	if err != nil {
		return nil, fmt.Errorf("analyze portfolio: %w", xerrors.Wrap(xerrors.CodeAdvisorFailure, err, "generate portfolio advice"))
	}
	analysis.Advice = resp.Text

	logger.L().Info("portfolio analyzed",
		"address", address,
		"positions", len(positions),
		"total_value", analysis.TotalValue)
	return analysis, nil
}

// SuggestOptimalSwap queries every configured DEX plugin for a quote in
// parallel, picks the strictly best output and asks the advisor to compare
// the routes.
func (a *Aggregator) SuggestOptimalSwap(ctx context.Context, fromToken, toToken, amount string) (*SwapSuggestion, error) {
	if fromToken == "" || toToken == "" || amount == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "fromToken, toToken and amount are required")
	}

	params := map[string]any{
		"fromToken": fromToken,
		"toToken":   toToken,
		"amount":    amount,
	}
	quotes := make([]*dex.Quote, len(a.protocols))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range a.protocols {
		g.Go(func() error {
			result, err := a.registry.Dispatch(gctx, name, dex.ActionCalculateSwap, params)
			if err != nil {
				return fmt.Errorf("quote %s: %w", name, err)
			}
			quote, ok := result.(*dex.Quote)
			if !ok {
				return xerrors.New(xerrors.CodeUnknown, fmt.Sprintf("plugin %s returned %T, want *dex.Quote", name, result))
			}
			quotes[i] = quote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("suggest optimal swap: %w", err)
	}

	flat := make([]dex.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q != nil {
			flat = append(flat, *q)
		}
	}
	best, err := SelectBest(flat)
	if err != nil {
		return nil, fmt.Errorf("suggest optimal swap: %w", err)
	}

	suggestion := &SwapSuggestion{Best: best, Quotes: flat}
	resp, err := a.advisor.Generate(ctx, advisor.Request{
		Kind:      advisor.KindSwapRecommendation,
		Subject:   fmt.Sprintf("swap %s %s to %s, best route %s yields %s", amount, fromToken, toToken, best.Protocol, best.OutputAmount),
		Payload:   suggestion,
		Knowledge: a.cards("swap", "fees", "slippage"),
	})
	if err != nil {
		return nil, fmt.Errorf("suggest optimal swap: %w", xerrors.Wrap(xerrors.CodeAdvisorFailure, err, "generate swap recommendation"))
	}
	suggestion.Recommendation = resp.Text
	return suggestion, nil
}

func (a *Aggregator) cards(terms ...string) []advisor.KnowledgeCard {
	if a.knowledge == nil {
		return nil
	}
	snippets := a.knowledge.Query(terms...)
	cards := make([]advisor.KnowledgeCard, 0, len(snippets))
	for _, s := range snippets {
		cards = append(cards, advisor.KnowledgeCard{Title: s.Title, Content: s.Content})
	}
	return cards
}

// FilterPositions returns the resources whose type tag contains at least one
// of the markers, preserving input order.
func FilterPositions(resources []chain.Resource, markers []string) []chain.Resource {
	out := make([]chain.Resource, 0, len(resources))
	for _, res := range resources {
		for _, marker := range markers {
			if strings.Contains(res.Type, marker) {
				out = append(out, res)
				break
			}
		}
	}
	return out
}

// SumPositionValues adds the "value" field of each resource as an
// arbitrary-precision integer. Resources without a value field count as
// zero; a malformed value is an error.
func SumPositionValues(positions []chain.Resource) (*big.Int, error) {
	total := new(big.Int)
	for _, pos := range positions {
		raw, ok := pos.Value()
		if !ok {
			continue
		}
		value, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, xerrors.New(xerrors.CodeInvalidArgument,
				fmt.Sprintf("resource %s has non-numeric value %q", pos.Type, raw))
		}
		total.Add(total, value)
	}
	return total, nil
}

// SelectBest returns the quote with the strictly greatest output amount.
// Ties resolve to the first quote in input order.
func SelectBest(quotes []dex.Quote) (*dex.Quote, error) {
	if len(quotes) == 0 {
		return nil, xerrors.New(xerrors.CodeNotFound, "no quotes to compare")
	}
	best := 0
	bestOut, ok := new(big.Int).SetString(quotes[0].OutputAmount, 10)
	if !ok {
		return nil, xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("quote from %s has non-numeric output %q", quotes[0].Protocol, quotes[0].OutputAmount))
	}
	for i := 1; i < len(quotes); i++ {
		out, ok := new(big.Int).SetString(quotes[i].OutputAmount, 10)
		if !ok {
			return nil, xerrors.New(xerrors.CodeInvalidArgument,
				fmt.Sprintf("quote from %s has non-numeric output %q", quotes[i].Protocol, quotes[i].OutputAmount))
		}
		if out.Cmp(bestOut) > 0 {
			best, bestOut = i, out
		}
	}
	return &quotes[best], nil
}
