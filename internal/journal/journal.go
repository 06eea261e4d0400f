// Package journal persists the trade audit trail. The trading loop writes a
// record per submitted trade; the API reads them back for inspection.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

// Trade statuses.
const (
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
)

// TradeRecord is one journal entry.
type TradeRecord struct {
	ID        string `json:"id"`
	Protocol  string `json:"protocol"`
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
	MinOutput string `json:"minOutput"`
	TxHash    string `json:"txHash,omitempty"`
	Status    string `json:"status"`
	Reasoning string `json:"reasoning,omitempty"`
	RiskLevel string `json:"riskLevel,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Stats summarises the journal contents.
type Stats struct {
	Total     int `json:"total"`
	Submitted int `json:"submitted"`
	Failed    int `json:"failed"`
}

// ErrTradeNotFound is returned by Get for unknown IDs.
var ErrTradeNotFound = xerrors.New(xerrors.CodeNotFound, "trade record not found")

// Store is the journal persistence interface.
type Store interface {
	// Record inserts the entry, filling ID and CreatedAt when empty.
	Record(ctx context.Context, record *TradeRecord) error
	// Get returns one record by ID, or ErrTradeNotFound.
	Get(ctx context.Context, id string) (*TradeRecord, error)
	// ListLatest returns up to limit records, newest first.
	ListLatest(ctx context.Context, limit int) ([]TradeRecord, error)
	// Stats counts records per status.
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

func prepare(record *TradeRecord) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "trade record must not be nil")
	}
	if record.Status == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "trade record needs a status")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt == 0 {
		record.CreatedAt = time.Now().Unix()
	}
	return nil
}
