// Package chain defines the provider-neutral surface for talking to the
// blockchain node. Higher layers depend on the Client interface only; the
// concrete Aptos fullnode implementation lives in the aptos subpackage.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Resource is a single Move resource attached to an account: a type tag plus
// an arbitrary structured payload. No schema validation is applied.
type Resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Value extracts the top-level "value" field from the resource data, if any.
func (r Resource) Value() (string, bool) {
	var data struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return "", false
	}
	if data.Value == "" {
		return "", false
	}
	return data.Value, true
}

// Transaction is one committed transaction from an account's history.
type Transaction struct {
	Version   string          `json:"version"`
	Hash      string          `json:"hash"`
	Sender    string          `json:"sender"`
	Success   bool            `json:"success"`
	VMStatus  string          `json:"vm_status"`
	GasUsed   string          `json:"gas_used"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EntryFunctionPayload describes a transaction to build, sign and submit:
// a fully qualified function, its type arguments and its value arguments.
type EntryFunctionPayload struct {
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

// CoinStoreType renders the resource type tag that holds an account's balance
// for the given coin type.
func CoinStoreType(coinType string) string {
	return fmt.Sprintf("0x1::coin::CoinStore<%s>", coinType)
}

// Client is the typed facade over node RPC. Every method is a single
// delegation to the node; there is no retry or caching layer.
type Client interface {
	// GetResources lists all resources attached to an account.
	GetResources(ctx context.Context, address string) ([]Resource, error)
	// GetResource fetches a single resource by its type tag.
	GetResource(ctx context.Context, address, resourceType string) (*Resource, error)
	// GetBalance returns the balance of coinType held by address as a decimal
	// string. A missing CoinStore resource yields "0" with a nil error; a
	// failed node request propagates as an error.
	GetBalance(ctx context.Context, address, coinType string) (string, error)
	// GetTransactionHistory lists the account's committed transactions,
	// newest last, bounded by limit.
	GetTransactionHistory(ctx context.Context, address string, limit int) ([]Transaction, error)
	// SubmitTransaction builds, signs and submits an entry-function call and
	// returns the transaction hash. Fails when no signer is configured.
	SubmitTransaction(ctx context.Context, payload EntryFunctionPayload) (string, error)
	// CanSign reports whether a signing account was configured.
	CanSign() bool
	// SignerAddress returns the configured account address, or "".
	SignerAddress() string
	Close()
}
