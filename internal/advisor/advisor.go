// Package advisor defines the interface to the external completion service.
// Responses are unstructured text; any structure the caller needs must be
// recovered by best-effort parsing on its side.
package advisor

import "context"

// Kind selects the system prompt used for a request.
type Kind string

const (
	// KindPortfolioAdvice asks for a human-readable portfolio summary.
	KindPortfolioAdvice Kind = "portfolio_advice"
	// KindSwapRecommendation asks for a comparison of DEX quotes.
	KindSwapRecommendation Kind = "swap_recommendation"
	// KindTradeDecision asks for a trade/no-trade decision over market data.
	KindTradeDecision Kind = "trade_decision"
)

// KnowledgeCard is a protocol note injected into the prompt.
type KnowledgeCard struct {
	Title   string
	Content string
}

// Request carries one advice request: a kind, the subject it concerns and a
// JSON-serialisable payload forwarded verbatim to the model.
type Request struct {
	Kind      Kind
	Subject   string
	Payload   any
	Knowledge []KnowledgeCard
}

// Response is the raw model output.
type Response struct {
	Text string
}

// Client is the unified interface to the completion service.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Disabled is the no-op client installed when no completion credential was
// configured. Advice features degrade instead of failing at startup.
type Disabled struct{}

// Generate returns a canned response.
func (Disabled) Generate(context.Context, Request) (*Response, error) {
	return &Response{Text: "advisor disabled: no completion credential configured"}, nil
}

var _ Client = Disabled{}
