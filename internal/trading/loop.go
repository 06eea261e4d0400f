package trading

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/sameermankotia/AptosAI/internal/advisor"
	"github.com/sameermankotia/AptosAI/internal/chain"
	"github.com/sameermankotia/AptosAI/internal/dex"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
	"github.com/sameermankotia/AptosAI/internal/journal"
	"github.com/sameermankotia/AptosAI/internal/market"
	"github.com/sameermankotia/AptosAI/internal/notify"
	"github.com/sameermankotia/AptosAI/internal/observability/metrics"
	"github.com/sameermankotia/AptosAI/pkg/logger"
)

// Config tunes the loop.
type Config struct {
	// Interval is the wall-clock period between cycles.
	Interval time.Duration
	// MinTradeInterval debounces trade submission: a cycle that starts
	// within this window of the last submitted trade does nothing.
	MinTradeInterval time.Duration
	// MaxPriceImpactBps is the price-impact ceiling in basis points.
	MaxPriceImpactBps int64
	// Address is the account whose balance backs trades. Defaults to the
	// chain client's signer address.
	Address string
}

// Status is a point-in-time view of the loop.
type Status struct {
	Running   bool      `json:"running"`
	LastTrade time.Time `json:"lastTrade,omitempty"`
	Cycles    uint64    `json:"cycles"`
	Trades    uint64    `json:"trades"`
	Skipped   uint64    `json:"skipped"`
	Errors    uint64    `json:"errors"`
}

// Loop polls market data on a fixed interval, asks the advisor for a
// decision and submits validated trades. It has two states, idle and
// running; Stop is cooperative and never interrupts an in-flight cycle.
type Loop struct {
	cfg      Config
	client   chain.Client
	registry *dex.Registry
	advisor  advisor.Client
	sources  []market.Source
	journal  journal.Store
	events   *notify.Fanout

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	done      chan struct{}
	lastTrade time.Time
	cycles    uint64
	trades    uint64
	skipped   uint64
	errors    uint64
}

// NewLoop assembles a loop in the idle state.
func NewLoop(cfg Config, client chain.Client, registry *dex.Registry, adv advisor.Client, sources []market.Source, store journal.Store, events *notify.Fanout) (*Loop, error) {
	if client == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "trading loop requires a chain client")
	}
	if registry == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "trading loop requires a plugin registry")
	}
	if adv == nil {
		adv = advisor.Disabled{}
	}
	if store == nil {
		store = journal.NewMemoryStore()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MinTradeInterval <= 0 {
		cfg.MinTradeInterval = 5 * time.Minute
	}
	if cfg.MaxPriceImpactBps <= 0 {
		cfg.MaxPriceImpactBps = 100
	}
	if cfg.Address == "" {
		cfg.Address = client.SignerAddress()
	}
	return &Loop{
		cfg:      cfg,
		client:   client,
		registry: registry,
		advisor:  adv,
		sources:  sources,
		journal:  store,
		events:   events,
	}, nil
}

// Start transitions from idle to running and launches the cycle goroutine.
// It fails when the loop is already running.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return xerrors.New(xerrors.CodeLoopState, "trading loop is already running")
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(ctx, l.stop, l.done)
	logger.L().Info("trading loop started",
		"interval", l.cfg.Interval.String(),
		"min_trade_interval", l.cfg.MinTradeInterval.String(),
		"max_price_impact_bps", l.cfg.MaxPriceImpactBps)
	return nil
}

// Stop transitions back to idle. The in-flight cycle, if any, finishes on
// its own; only the next cycle is prevented.
func (l *Loop) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return xerrors.New(xerrors.CodeLoopState, "trading loop is not running")
	}
	l.running = false
	close(l.stop)
	done := l.done
	l.mu.Unlock()

	<-done
	logger.L().Info("trading loop stopped")
	return nil
}

// Status reports the loop state and counters.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Running:   l.running,
		LastTrade: l.lastTrade,
		Cycles:    l.cycles,
		Trades:    l.trades,
		Skipped:   l.skipped,
		Errors:    l.errors,
	}
}

func (l *Loop) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	// One immediate cycle, then tick.
	l.cycle(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return
		case <-ticker.C:
			l.cycle(ctx)
		}
	}
}

// cycle runs MonitorAndTrade and downgrades its failure to an event so the
// loop stays alive.
func (l *Loop) cycle(ctx context.Context) {
	l.mu.Lock()
	l.cycles++
	l.mu.Unlock()
	metrics.ObserveCycle()

	if err := l.MonitorAndTrade(ctx); err != nil {
		l.mu.Lock()
		l.errors++
		l.mu.Unlock()
		metrics.ObserveLoopError(string(xerrors.CodeOf(err)))
		logger.L().Error("trade cycle failed", "error", err)
		l.emit(ctx, notify.Event{
			Kind:    notify.KindLoopError,
			Message: err.Error(),
			Metadata: map[string]string{
				"code": string(xerrors.CodeOf(err)),
			},
		})
	}
}

// MonitorAndTrade executes a single trade cycle.
func (l *Loop) MonitorAndTrade(ctx context.Context) error {
	l.mu.Lock()
	lastTrade := l.lastTrade
	l.mu.Unlock()

	if !lastTrade.IsZero() && time.Since(lastTrade) < l.cfg.MinTradeInterval {
		l.markSkipped("debounce")
		logger.L().Debug("cycle debounced", "last_trade", lastTrade.Format(time.RFC3339))
		return nil
	}

	snapshot, err := market.Gather(ctx, l.sources...)
	if err != nil {
		return fmt.Errorf("trade cycle: %w", err)
	}

	resp, err := l.advisor.Generate(ctx, advisor.Request{
		Kind:    advisor.KindTradeDecision,
		Subject: fmt.Sprintf("market snapshot with %d points across %d symbols", len(snapshot.Points), len(snapshot.Symbols())),
		Payload: snapshot,
	})
	if err != nil {
		return fmt.Errorf("trade cycle: %w", xerrors.Wrap(xerrors.CodeAdvisorFailure, err, "generate trade decision"))
	}

	decision, err := ParseDecision(resp.Text)
	if err != nil {
		l.markSkipped("ambiguous")
		l.emit(ctx, notify.Event{
			Kind:    notify.KindTradeSkipped,
			Message: "decision was ambiguous, holding",
			Metadata: map[string]string{
				"raw": truncate(resp.Text, 240),
			},
		})
		return nil
	}
	if !decision.ShouldTrade {
		l.markSkipped("hold")
		l.emit(ctx, notify.Event{
			Kind:      notify.KindTradeSkipped,
			Message:   "advisor recommends holding",
			Reasoning: decision.Reasoning,
			Metadata:  map[string]string{"risk_level": decision.RiskLevel},
		})
		return nil
	}

	if err := l.executeTrade(ctx, decision); err != nil {
		return fmt.Errorf("trade cycle: %w", err)
	}
	return nil
}

func (l *Loop) executeTrade(ctx context.Context, decision *TradingDecision) error {
	trade := decision.Trade

	if err := l.validateBalance(ctx, trade); err != nil {
		return err
	}
	quote, err := l.validateImpact(ctx, trade)
	if err != nil {
		return err
	}

	payload, err := l.registry.Dispatch(ctx, trade.Protocol, dex.ActionBuildSwap, map[string]any{
		"fromToken": trade.FromToken,
		"toToken":   trade.ToToken,
		"amount":    trade.Amount,
		"minOutput": trade.MinOutput,
	})
	if err != nil {
		return err
	}
	entry, ok := payload.(*chain.EntryFunctionPayload)
	if !ok {
		return xerrors.New(xerrors.CodeUnknown, fmt.Sprintf("plugin %s returned %T, want *chain.EntryFunctionPayload", trade.Protocol, payload))
	}

	txHash, err := l.client.SubmitTransaction(ctx, *entry)
	if err != nil {
		l.record(ctx, trade, decision, "", journal.StatusFailed)
		return err
	}

	now := time.Now()
	l.mu.Lock()
	l.lastTrade = now
	l.trades++
	l.mu.Unlock()

	metrics.ObserveTradeSubmitted(trade.Protocol)
	l.record(ctx, trade, decision, txHash, journal.StatusSubmitted)
	logger.L().Info("trade submitted",
		"protocol", trade.Protocol,
		"tx_hash", txHash,
		"amount", trade.Amount,
		"output", quote.OutputAmount)
	l.emit(ctx, notify.Event{
		Kind:      notify.KindTradeCompleted,
		Message:   fmt.Sprintf("swapped %s %s for at least %s %s via %s", trade.Amount, trade.FromToken, trade.MinOutput, trade.ToToken, trade.Protocol),
		TxHash:    txHash,
		Reasoning: decision.Reasoning,
		Metadata: map[string]string{
			"protocol":     trade.Protocol,
			"price_impact": quote.PriceImpact,
			"risk_level":   decision.RiskLevel,
		},
	})
	return nil
}

func (l *Loop) validateBalance(ctx context.Context, trade *TradeIntent) error {
	raw, err := l.client.GetBalance(ctx, l.cfg.Address, trade.FromToken)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch balance")
	}
	balance, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return xerrors.New(xerrors.CodeChainFailure, fmt.Sprintf("node returned non-numeric balance %q", raw))
	}
	amount, ok := new(big.Int).SetString(trade.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("trade amount %q is not a positive integer", trade.Amount))
	}
	if balance.Cmp(amount) < 0 {
		return xerrors.New(xerrors.CodeInsufficientBalance,
			fmt.Sprintf("insufficient balance: have %s, need %s", balance, amount))
	}
	return nil
}

func (l *Loop) validateImpact(ctx context.Context, trade *TradeIntent) (*dex.Quote, error) {
	result, err := l.registry.Dispatch(ctx, trade.Protocol, dex.ActionCalculateSwap, map[string]any{
		"fromToken": trade.FromToken,
		"toToken":   trade.ToToken,
		"amount":    trade.Amount,
	})
	if err != nil {
		return nil, err
	}
	quote, ok := result.(*dex.Quote)
	if !ok {
		return nil, xerrors.New(xerrors.CodeUnknown, fmt.Sprintf("plugin %s returned %T, want *dex.Quote", trade.Protocol, result))
	}
	impactBps, err := dex.ParseBpsPercent(quote.PriceImpact)
	if err != nil {
		return nil, err
	}
	if impactBps > l.cfg.MaxPriceImpactBps {
		return nil, xerrors.New(xerrors.CodePriceImpactTooHigh,
			fmt.Sprintf("price impact %s%% exceeds ceiling %s%%", quote.PriceImpact, dex.FormatBpsPercent(l.cfg.MaxPriceImpactBps)))
	}
	return quote, nil
}

func (l *Loop) record(ctx context.Context, trade *TradeIntent, decision *TradingDecision, txHash, status string) {
	err := l.journal.Record(ctx, &journal.TradeRecord{
		Protocol:  trade.Protocol,
		FromToken: trade.FromToken,
		ToToken:   trade.ToToken,
		Amount:    trade.Amount,
		MinOutput: trade.MinOutput,
		TxHash:    txHash,
		Status:    status,
		Reasoning: decision.Reasoning,
		RiskLevel: decision.RiskLevel,
	})
	if err != nil {
		logger.L().Error("journal write failed", "error", err)
	}
}

func (l *Loop) emit(ctx context.Context, event notify.Event) {
	if l.events == nil {
		return
	}
	if err := l.events.Notify(ctx, event); err != nil {
		logger.L().Warn("event delivery incomplete", "kind", event.Kind, "error", err)
	}
}

func (l *Loop) markSkipped(reason string) {
	l.mu.Lock()
	l.skipped++
	l.mu.Unlock()
	metrics.ObserveTradeSkipped(reason)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
