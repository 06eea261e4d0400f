package journal

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

// MySQLStore persists trade records in MySQL for deployments where the
// journal must survive restarts.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens the connection pool and ensures the schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "mysql dsn must not be empty")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "open mysql connection")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "ping mysql")
	}

	if err := runMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

// Record implements Store.
func (s *MySQLStore) Record(ctx context.Context, record *TradeRecord) error {
	if err := prepare(record); err != nil {
		return err
	}
	const query = `INSERT INTO trade_records
        (id, protocol, from_token, to_token, amount, min_output, tx_hash, status, reasoning, risk_level, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.Protocol, record.FromToken, record.ToToken,
		record.Amount, record.MinOutput, record.TxHash, record.Status,
		record.Reasoning, record.RiskLevel, record.CreatedAt)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "insert trade record")
	}
	return nil
}

// Get implements Store.
func (s *MySQLStore) Get(ctx context.Context, id string) (*TradeRecord, error) {
	const query = `SELECT id, protocol, from_token, to_token, amount, min_output, tx_hash, status, reasoning, risk_level, created_at
        FROM trade_records WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	record, err := scanRecord(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "query trade record")
	}
	return record, nil
}

// ListLatest implements Store.
func (s *MySQLStore) ListLatest(ctx context.Context, limit int) ([]TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, protocol, from_token, to_token, amount, min_output, tx_hash, status, reasoning, risk_level, created_at
        FROM trade_records ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list trade records")
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "scan trade record")
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "iterate trade records")
	}
	return out, nil
}

// Stats implements Store.
func (s *MySQLStore) Stats(ctx context.Context) (*Stats, error) {
	const query = `SELECT status, COUNT(*) FROM trade_records GROUP BY status`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "count trade records")
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "scan trade stats")
		}
		stats.Total += count
		switch status {
		case StatusSubmitted:
			stats.Submitted = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "iterate trade stats")
	}
	return stats, nil
}

// Close implements Store.
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRecord(scan func(dest ...any) error) (*TradeRecord, error) {
	var record TradeRecord
	var reasoning sql.NullString
	if err := scan(&record.ID, &record.Protocol, &record.FromToken, &record.ToToken,
		&record.Amount, &record.MinOutput, &record.TxHash, &record.Status,
		&reasoning, &record.RiskLevel, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.Reasoning = reasoning.String
	return &record, nil
}

var _ Store = (*MySQLStore)(nil)
