// Package aptos implements the chain.Client facade against the Aptos
// fullnode REST API.
package aptos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sameermankotia/AptosAI/internal/chain"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxGasAmount  = "20000"
	defaultGasUnitPrice  = "100"
	transactionLifetime  = 10 * time.Minute
	entryFunctionPayload = "entry_function_payload"
	ed25519Signature     = "ed25519_signature"
)

// Config describes how to reach the fullnode and, optionally, how to sign.
type Config struct {
	NodeURL    string
	PrivateKey string
	Timeout    time.Duration
}

// Client talks to a single Aptos fullnode. Submission is only available when
// a private key was supplied; all read methods work without one.
type Client struct {
	baseURL    string
	httpClient *http.Client
	account    *Account
}

// NewClient validates the configuration and constructs a client.
func NewClient(cfg Config) (*Client, error) {
	nodeURL := strings.TrimRight(strings.TrimSpace(cfg.NodeURL), "/")
	if nodeURL == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "node URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		baseURL:    nodeURL,
		httpClient: &http.Client{Timeout: timeout},
	}

	if key := strings.TrimSpace(cfg.PrivateKey); key != "" {
		account, err := NewAccountFromHex(key)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid signing key")
		}
		client.account = account
	}

	return client, nil
}

// CanSign reports whether the client was constructed with a signing key.
func (c *Client) CanSign() bool {
	return c.account != nil
}

// SignerAddress returns the configured account address, or "" in read-only
// mode.
func (c *Client) SignerAddress() string {
	if c.account == nil {
		return ""
	}
	return c.account.Address()
}

// GetResources lists every resource attached to the account.
func (c *Client) GetResources(ctx context.Context, address string) ([]chain.Resource, error) {
	var resources []chain.Resource
	path := fmt.Sprintf("/v1/accounts/%s/resources", url.PathEscape(address))
	if err := c.get(ctx, path, &resources); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch account resources")
	}
	return resources, nil
}

// GetResource fetches one resource by its fully qualified type tag.
func (c *Client) GetResource(ctx context.Context, address, resourceType string) (*chain.Resource, error) {
	var resource chain.Resource
	path := fmt.Sprintf("/v1/accounts/%s/resource/%s", url.PathEscape(address), url.PathEscape(resourceType))
	if err := c.get(ctx, path, &resource); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch account resource")
	}
	return &resource, nil
}

// GetBalance reads the CoinStore for coinType. A missing store is a valid
// on-chain state and maps to "0"; a failed node request is surfaced as an
// error so callers can tell an empty balance from an outage.
func (c *Client) GetBalance(ctx context.Context, address, coinType string) (string, error) {
	resources, err := c.GetResources(ctx, address)
	if err != nil {
		return "", err
	}

	wanted := chain.CoinStoreType(coinType)
	for _, resource := range resources {
		if resource.Type != wanted {
			continue
		}
		var store struct {
			Coin struct {
				Value string `json:"value"`
			} `json:"coin"`
		}
		if err := json.Unmarshal(resource.Data, &store); err != nil {
			return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "decode coin store")
		}
		if store.Coin.Value == "" {
			return "0", nil
		}
		return store.Coin.Value, nil
	}
	return "0", nil
}

// GetTransactionHistory lists the account's committed transactions.
func (c *Client) GetTransactionHistory(ctx context.Context, address string, limit int) ([]chain.Transaction, error) {
	if limit <= 0 {
		limit = 25
	}
	var txns []chain.Transaction
	path := fmt.Sprintf("/v1/accounts/%s/transactions?limit=%s", url.PathEscape(address), strconv.Itoa(limit))
	if err := c.get(ctx, path, &txns); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch transaction history")
	}
	return txns, nil
}

// submission is the JSON shape of an unsigned user transaction request.
type submission struct {
	Sender                  string         `json:"sender"`
	SequenceNumber          string         `json:"sequence_number"`
	MaxGasAmount            string         `json:"max_gas_amount"`
	GasUnitPrice            string         `json:"gas_unit_price"`
	ExpirationTimestampSecs string         `json:"expiration_timestamp_secs"`
	Payload                 map[string]any `json:"payload"`
}

// SubmitTransaction builds, signs and submits an entry-function call in one
// step. The node performs the BCS encoding via the encode_submission
// endpoint; the client only signs the returned message.
func (c *Client) SubmitTransaction(ctx context.Context, payload chain.EntryFunctionPayload) (string, error) {
	if c.account == nil {
		return "", xerrors.New(xerrors.CodeSignerMissing, "cannot submit transaction without a signing key")
	}

	sequence, err := c.sequenceNumber(ctx, c.account.Address())
	if err != nil {
		return "", err
	}

	request := submission{
		Sender:                  c.account.Address(),
		SequenceNumber:          sequence,
		MaxGasAmount:            defaultMaxGasAmount,
		GasUnitPrice:            defaultGasUnitPrice,
		ExpirationTimestampSecs: strconv.FormatInt(time.Now().Add(transactionLifetime).Unix(), 10),
		Payload: map[string]any{
			"type":           entryFunctionPayload,
			"function":       payload.Function,
			"type_arguments": payload.TypeArguments,
			"arguments":      payload.Arguments,
		},
	}

	var signingMessage string
	if err := c.post(ctx, "/v1/transactions/encode_submission", request, &signingMessage); err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "encode transaction")
	}

	signature, err := c.account.SignMessage(signingMessage)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "sign transaction")
	}

	signed := struct {
		submission
		Signature map[string]any `json:"signature"`
	}{
		submission: request,
		Signature: map[string]any{
			"type":       ed25519Signature,
			"public_key": c.account.PublicKeyHex(),
			"signature":  signature,
		},
	}

	var committed struct {
		Hash string `json:"hash"`
	}
	if err := c.post(ctx, "/v1/transactions", signed, &committed); err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "submit transaction")
	}
	return committed.Hash, nil
}

// Close releases the underlying connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// sequenceNumber reads the sender's current sequence number.
func (c *Client) sequenceNumber(ctx context.Context, address string) (string, error) {
	var account struct {
		SequenceNumber string `json:"sequence_number"`
	}
	path := fmt.Sprintf("/v1/accounts/%s", url.PathEscape(address))
	if err := c.get(ctx, path, &account); err != nil {
		return "", xerrors.Wrap(xerrors.CodeChainFailure, err, "fetch account sequence number")
	}
	return account.SequenceNumber, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("node returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode node response: %w", err)
	}
	return nil
}

var _ chain.Client = (*Client)(nil)
