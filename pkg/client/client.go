// Package client is a small typed wrapper around the AptosAI REST API for
// Go consumers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout is applied when no custom http.Client is supplied. It
// is generous because portfolio analysis waits on the completion service.
const DefaultHTTPTimeout = 90 * time.Second

// Client calls the AptosAI REST API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithAPIKey attaches an API key to every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New builds a client for the given base URL.
func New(rawURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resource mirrors one account resource in API responses.
type Resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Transaction mirrors one history entry in API responses.
type Transaction struct {
	Version   string `json:"version"`
	Hash      string `json:"hash"`
	Sender    string `json:"sender"`
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
}

// PortfolioAnalysis is the response of AnalyzePortfolio.
type PortfolioAnalysis struct {
	Address    string        `json:"address"`
	Positions  []Resource    `json:"positions"`
	TotalValue string        `json:"totalValue"`
	History    []Transaction `json:"history"`
	Advice     string        `json:"advice"`
}

// Quote mirrors one DEX quote.
type Quote struct {
	Protocol     string `json:"protocol"`
	FromToken    string `json:"fromToken"`
	ToToken      string `json:"toToken"`
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`
	PriceImpact  string `json:"priceImpact"`
	FeeBps       int    `json:"feeBps"`
}

// SwapSuggestion is the response of SuggestSwap.
type SwapSuggestion struct {
	Best           *Quote  `json:"best"`
	Quotes         []Quote `json:"quotes"`
	Recommendation string  `json:"recommendation"`
}

// LoopStatus is the trading loop state.
type LoopStatus struct {
	Running   bool      `json:"running"`
	LastTrade time.Time `json:"lastTrade"`
	Cycles    uint64    `json:"cycles"`
	Trades    uint64    `json:"trades"`
	Skipped   uint64    `json:"skipped"`
	Errors    uint64    `json:"errors"`
}

// TradeRecord is one journal entry.
type TradeRecord struct {
	ID        string `json:"id"`
	Protocol  string `json:"protocol"`
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
	MinOutput string `json:"minOutput"`
	TxHash    string `json:"txHash"`
	Status    string `json:"status"`
	Reasoning string `json:"reasoning"`
	RiskLevel string `json:"riskLevel"`
	CreatedAt int64  `json:"createdAt"`
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("aptosai api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("aptosai api error (%d): %s", e.StatusCode, e.Message)
}

// AnalyzePortfolio requests a portfolio analysis for the address.
func (c *Client) AnalyzePortfolio(ctx context.Context, address string) (*PortfolioAnalysis, error) {
	var analysis PortfolioAnalysis
	err := c.post(ctx, "/api/v1/portfolio/analyze", map[string]string{"address": address}, &analysis)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// SuggestSwap compares swap routes for the pair and amount.
func (c *Client) SuggestSwap(ctx context.Context, fromToken, toToken, amount string) (*SwapSuggestion, error) {
	var suggestion SwapSuggestion
	payload := map[string]string{"fromToken": fromToken, "toToken": toToken, "amount": amount}
	if err := c.post(ctx, "/api/v1/swap/quote", payload, &suggestion); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// StartLoop starts the trading loop.
func (c *Client) StartLoop(ctx context.Context) (*LoopStatus, error) {
	var status LoopStatus
	if err := c.post(ctx, "/api/v1/loop/start", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// StopLoop stops the trading loop.
func (c *Client) StopLoop(ctx context.Context) (*LoopStatus, error) {
	var status LoopStatus
	if err := c.post(ctx, "/api/v1/loop/stop", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LoopStatus reports the loop state.
func (c *Client) LoopStatus(ctx context.Context) (*LoopStatus, error) {
	var status LoopStatus
	if err := c.get(ctx, "/api/v1/loop/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListTrades fetches up to limit journal entries, newest first.
func (c *Client) ListTrades(ctx context.Context, limit int) ([]TradeRecord, error) {
	endpoint := "/api/v1/trades"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	var records []TradeRecord
	if err := c.get(ctx, endpoint, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetTrade fetches one journal entry by ID.
func (c *Client) GetTrade(ctx context.Context, id string) (*TradeRecord, error) {
	var record TradeRecord
	if err := c.get(ctx, "/api/v1/trades/"+url.PathEscape(id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	parsed.Path = path.Join(c.baseURL.Path, parsed.Path)
	u := c.baseURL.ResolveReference(parsed)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("read error response: %w", readErr)
		}
		if len(data) > 0 {
			var envelope struct {
				Error *APIError `json:"error"`
			}
			envelope.Error = apiErr
			_ = json.Unmarshal(data, &envelope)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
