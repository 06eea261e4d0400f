// Package openai implements the advisor client against the OpenAI chat
// completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sameermankotia/AptosAI/internal/advisor"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Config describes how to reach the chat completions API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls the OpenAI chat completions endpoint.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient validates the configuration and builds a client.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// Generate sends one completion request and returns the raw text.
func (c *Client) Generate(ctx context.Context, req advisor.Request) (*advisor.Response, error) {
	userPrompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(req.Kind)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeAdvisorFailure, err, "completion request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, xerrors.New(xerrors.CodeAdvisorFailure, "completion response has no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return nil, xerrors.New(xerrors.CodeAdvisorFailure, "completion response is empty")
	}
	return &advisor.Response{Text: content}, nil
}

func systemPrompt(kind advisor.Kind) string {
	switch kind {
	case advisor.KindSwapRecommendation:
		return "You are a DeFi trading assistant. You will receive swap quotes " +
			"from multiple Aptos DEX protocols. Compare output amounts, price " +
			"impact and fees, and recommend which venue to use in plain language."
	case advisor.KindTradeDecision:
		return "You are an automated trading analyst. You will receive market " +
			"data for Aptos tokens. Respond with a compact JSON object: " +
			`{"shouldTrade": bool, "trade": {"protocol": string, "fromToken": string, ` +
			`"toToken": string, "amount": string, "minOutput": string}, ` +
			`"reasoning": string, "riskLevel": "low"|"medium"|"high"}. ` +
			"Omit the trade field when shouldTrade is false."
	default:
		return "You are a DeFi portfolio advisor for the Aptos blockchain. You " +
			"will receive an account's positions, transaction history and total " +
			"position value. Summarise the portfolio and suggest improvements."
	}
}

func buildUserPrompt(req advisor.Request) (string, error) {
	encoded, err := json.MarshalIndent(req.Payload, "", "  ")
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArgument, err, "encode advisor payload")
	}

	var builder strings.Builder
	if subject := strings.TrimSpace(req.Subject); subject != "" {
		fmt.Fprintf(&builder, "Subject: %s\n\n", subject)
	}
	builder.WriteString("Data:\n")
	builder.Write(encoded)

	if len(req.Knowledge) > 0 {
		builder.WriteString("\n\nProtocol notes:\n")
		for idx, card := range req.Knowledge {
			fmt.Fprintf(&builder, "[%d] %s: %s\n", idx+1, strings.TrimSpace(card.Title), truncate(card.Content))
			if idx >= 4 {
				break
			}
		}
	}
	return builder.String(), nil
}

func truncate(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) > 160 {
		return string([]rune(text)[:160]) + "..."
	}
	return text
}

var _ advisor.Client = (*Client)(nil)
