package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTransactionNotFound is returned when no transaction matches a
// provider reference.
var ErrTransactionNotFound = errors.New("payments: transaction not found")

// Transaction records one provider payment attempt keyed by the
// provider-issued reference (order id or pidx).
type Transaction struct {
	Provider      string          `json:"provider"`
	Reference     string          `json:"reference"`
	AppointmentID string          `json:"appointment_id"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	Outcome       string          `json:"outcome"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	VerifiedAt    *time.Time      `json:"verified_at,omitempty"`
}

// TransactionStore persists payment transactions.
type TransactionStore interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByReference(ctx context.Context, provider, reference string) (*Transaction, error)
	RecordOutcome(ctx context.Context, provider, reference, outcome string, raw []byte, at time.Time) error
}

// MemoryTransactionStore keeps transactions in process memory.
type MemoryTransactionStore struct {
	mu  sync.RWMutex
	txs map[string]*Transaction
}

// NewMemoryTransactionStore creates an empty in-memory store.
func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{txs: make(map[string]*Transaction)}
}

func txKey(provider, reference string) string { return provider + "|" + reference }

// Create inserts a transaction.
func (s *MemoryTransactionStore) Create(ctx context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.txs[txKey(tx.Provider, tx.Reference)] = &cp
	return nil
}

// GetByReference loads a transaction by provider reference.
func (s *MemoryTransactionStore) GetByReference(ctx context.Context, provider, reference string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[txKey(provider, reference)]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

// RecordOutcome stores the verification outcome and raw provider payload.
func (s *MemoryTransactionStore) RecordOutcome(ctx context.Context, provider, reference, outcome string, raw []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[txKey(provider, reference)]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.Outcome = outcome
	tx.Raw = append([]byte(nil), raw...)
	verifiedAt := at
	tx.VerifiedAt = &verifiedAt
	return nil
}

type txQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresTransactionStore persists transactions in the relational database.
type PostgresTransactionStore struct {
	db txQuerier
}

// NewPostgresTransactionStore creates a store backed by a pgx pool.
func NewPostgresTransactionStore(pool *pgxpool.Pool) *PostgresTransactionStore {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &PostgresTransactionStore{db: pool}
}

// NewPostgresTransactionStoreWithQuerier allows injecting a mocked
// connection for tests.
func NewPostgresTransactionStoreWithQuerier(q txQuerier) *PostgresTransactionStore {
	return &PostgresTransactionStore{db: q}
}

// Create inserts a transaction row.
func (s *PostgresTransactionStore) Create(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO payment_transactions (provider, reference, appointment_id, amount, currency, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.Exec(ctx, query,
		tx.Provider, tx.Reference, tx.AppointmentID, tx.Amount, tx.Currency, tx.Outcome, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("payments: insert transaction: %w", err)
	}
	return nil
}

// GetByReference loads a transaction by provider reference.
func (s *PostgresTransactionStore) GetByReference(ctx context.Context, provider, reference string) (*Transaction, error) {
	query := `
		SELECT provider, reference, appointment_id, amount, currency, outcome, raw_payload, created_at, verified_at
		FROM payment_transactions
		WHERE provider = $1 AND reference = $2
	`
	var tx Transaction
	var raw []byte
	err := s.db.QueryRow(ctx, query, provider, reference).Scan(
		&tx.Provider, &tx.Reference, &tx.AppointmentID, &tx.Amount, &tx.Currency,
		&tx.Outcome, &raw, &tx.CreatedAt, &tx.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("payments: load transaction: %w", err)
	}
	tx.Raw = raw
	return &tx, nil
}

// RecordOutcome stores the verification outcome and raw provider payload.
func (s *PostgresTransactionStore) RecordOutcome(ctx context.Context, provider, reference, outcome string, raw []byte, at time.Time) error {
	query := `
		UPDATE payment_transactions
		SET outcome = $3, raw_payload = $4, verified_at = $5
		WHERE provider = $1 AND reference = $2
	`
	ct, err := s.db.Exec(ctx, query, provider, reference, outcome, raw, at)
	if err != nil {
		return fmt.Errorf("payments: record outcome: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
