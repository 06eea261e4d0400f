// Package trading runs the polling trade loop: gather market data, ask the
// advisor for a decision, validate locally and submit.
package trading

import (
	"encoding/json"
	"strings"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

// Risk levels assigned to a decision.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// TradeIntent names the swap the model wants executed.
type TradeIntent struct {
	Protocol  string `json:"protocol"`
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
	MinOutput string `json:"minOutput"`
}

// complete reports whether every field needed to build a transaction is set.
// MinOutput is optional; the plugins default it to zero.
func (t *TradeIntent) complete() bool {
	return t != nil && t.Protocol != "" && t.FromToken != "" && t.ToToken != "" && t.Amount != ""
}

// TradingDecision is the structured form recovered from model output.
type TradingDecision struct {
	ShouldTrade bool         `json:"shouldTrade"`
	Trade       *TradeIntent `json:"trade,omitempty"`
	Reasoning   string       `json:"reasoning"`
	RiskLevel   string       `json:"riskLevel"`
}

// ErrAmbiguousDecision is returned when model output cannot be mapped onto a
// decision. Callers must treat it as "no trade" explicitly rather than the
// parser defaulting silently.
var ErrAmbiguousDecision = xerrors.New(xerrors.CodeDecisionAmbiguous, "model output does not parse as a trading decision")

// ParseDecision recovers a TradingDecision from unstructured model output.
// It tries a JSON object first, then falls back to keyword matching. Output
// that cannot be resolved either way yields ErrAmbiguousDecision.
func ParseDecision(text string) (*TradingDecision, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrAmbiguousDecision
	}

	if decision, ok := parseJSONDecision(trimmed); ok {
		if decision.ShouldTrade && !decision.Trade.complete() {
			// The model claims a trade but did not say which one.
			return nil, ErrAmbiguousDecision
		}
		if decision.RiskLevel == "" {
			decision.RiskLevel = classifyRisk(trimmed)
		}
		return decision, nil
	}

	lower := strings.ToLower(trimmed)
	for _, marker := range []string{"no trade", "don't trade", "do not trade", "hold", "wait", "skip"} {
		if strings.Contains(lower, marker) {
			return &TradingDecision{
				ShouldTrade: false,
				Reasoning:   trimmed,
				RiskLevel:   classifyRisk(lower),
			}, nil
		}
	}

	// Free text that talks about trading without a structured intent cannot
	// be executed safely.
	return nil, ErrAmbiguousDecision
}

// parseJSONDecision extracts the outermost JSON object from the text, which
// tolerates models that wrap the object in prose or a code fence. The
// shouldTrade key must be present: a pointer distinguishes an explicit false
// from a JSON object that is not a decision at all, so arbitrary model JSON
// never turns into a silent hold.
func parseJSONDecision(text string) (*TradingDecision, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var raw struct {
		ShouldTrade *bool        `json:"shouldTrade"`
		Trade       *TradeIntent `json:"trade"`
		Reasoning   string       `json:"reasoning"`
		RiskLevel   string       `json:"riskLevel"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, false
	}
	if raw.ShouldTrade == nil {
		return nil, false
	}
	return &TradingDecision{
		ShouldTrade: *raw.ShouldTrade,
		Trade:       raw.Trade,
		Reasoning:   raw.Reasoning,
		RiskLevel:   raw.RiskLevel,
	}, true
}

// classifyRisk is a keyword stub. Anything not explicitly low or high is
// medium.
func classifyRisk(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "high risk"), strings.Contains(lower, "risky"):
		return RiskHigh
	case strings.Contains(lower, "low risk"), strings.Contains(lower, "safe"):
		return RiskLow
	default:
		return RiskMedium
	}
}
