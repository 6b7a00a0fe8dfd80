package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/domain/repository"
)

const uniqueViolation = "23505"

type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type orderRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Orders returns order repository backed by this storage.
func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            idempotency_key TEXT UNIQUE,
            payout_target_id TEXT NOT NULL,
            payout_currency TEXT NOT NULL,
            payout_country TEXT NOT NULL DEFAULT '',
            payout_descriptor JSONB,
            payer_address TEXT NOT NULL,
            collection_address TEXT NOT NULL,
            asset_symbol TEXT NOT NULL,
            asset_coin_type TEXT NOT NULL,
            asset_decimals INTEGER NOT NULL,
            expected_amount TEXT NOT NULL,
            fiat_amount TEXT NOT NULL,
            fiat_currency TEXT NOT NULL,
            quote JSONB NOT NULL,
            transaction_ref TEXT UNIQUE,
            verified_amount TEXT,
            verified_at TIMESTAMPTZ,
            partner_reference TEXT,
            partner_status TEXT,
            failure_reason TEXT,
            status TEXT NOT NULL,
            submit_attempts INTEGER NOT NULL DEFAULT 0,
            submit_claim TEXT,
            submit_lease_until TIMESTAMPTZ,
            last_checked_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS order_events (
            id BIGSERIAL PRIMARY KEY,
            order_id TEXT NOT NULL REFERENCES orders(id),
            status TEXT NOT NULL,
            note TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_pending ON orders(status, last_checked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_order ON order_events(order_id, id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

const orderColumns = `id, idempotency_key, payout_target_id, payout_currency, payout_country, payout_descriptor,
    payer_address, collection_address, asset_symbol, asset_coin_type, asset_decimals,
    expected_amount, fiat_amount, fiat_currency, quote,
    transaction_ref, verified_amount, verified_at,
    partner_reference, partner_status, failure_reason,
    status, submit_attempts, submit_claim, submit_lease_until, last_checked_at,
    created_at, updated_at`

type quoteRecord struct {
	TokenAmount decimal.Decimal `json:"tokenAmount"`
	FiatAmount  decimal.Decimal `json:"fiatAmount"`
	Rate        decimal.Decimal `json:"rate"`
	Fee         decimal.Decimal `json:"fee"`
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o          model.Order
		descriptor []byte
		fiat       string
		quote      []byte
	)
	err := row.Scan(
		&o.ID, &o.IdempotencyKey, &o.PayoutTarget.ID, &o.PayoutTarget.Currency, &o.PayoutTarget.Country, &descriptor,
		&o.PayerAddress, &o.CollectionAddress, &o.Asset.Symbol, &o.Asset.CoinType, &o.Asset.Decimals,
		&o.ExpectedAmount, &fiat, &o.FiatCurrency, &quote,
		&o.TransactionRef, &o.VerifiedAmount, &o.VerifiedAt,
		&o.PartnerReference, &o.PartnerStatus, &o.FailureReason,
		&o.Status, &o.SubmitAttempts, &o.SubmitClaim, &o.SubmitLeaseUntil, &o.LastCheckedAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(descriptor) > 0 {
		o.PayoutTarget.Descriptor = json.RawMessage(descriptor)
	}
	if o.FiatAmount, err = decimal.NewFromString(fiat); err != nil {
		return nil, fmt.Errorf("order %s fiat amount: %w", o.ID, err)
	}
	var q quoteRecord
	if len(quote) > 0 {
		if err := json.Unmarshal(quote, &q); err != nil {
			return nil, fmt.Errorf("order %s quote: %w", o.ID, err)
		}
	}
	o.Quote = model.Quote(q)
	return &o, nil
}

// --- OrderRepository implementation ---

func (r *orderRepository) Create(ctx context.Context, order *model.Order) (*model.Order, bool, error) {
	const query = `INSERT INTO orders (id, idempotency_key, payout_target_id, payout_currency, payout_country, payout_descriptor,
                       payer_address, collection_address, asset_symbol, asset_coin_type, asset_decimals,
                       expected_amount, fiat_amount, fiat_currency, quote, status, created_at, updated_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
                   ON CONFLICT (idempotency_key) DO NOTHING
                   RETURNING created_at`

	quote, err := json.Marshal(quoteRecord(order.Quote))
	if err != nil {
		return nil, false, err
	}
	var descriptor []byte
	if len(order.PayoutTarget.Descriptor) > 0 {
		descriptor = order.PayoutTarget.Descriptor
	}

	err = r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			order.ID, order.IdempotencyKey, order.PayoutTarget.ID, order.PayoutTarget.Currency, order.PayoutTarget.Country, descriptor,
			order.PayerAddress, order.CollectionAddress, order.Asset.Symbol, order.Asset.CoinType, order.Asset.Decimals,
			order.ExpectedAmount, order.FiatAmount.String(), order.FiatCurrency, quote, order.Status, order.CreatedAt, order.UpdatedAt,
		).Scan(&order.CreatedAt)
		if err != nil {
			return err
		}
		return recordEvent(ctx, tx, order.ID, order.Status, "created")
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) && order.IdempotencyKey != nil {
			existing, err := r.GetByIdempotencyKey(ctx, *order.IdempotencyKey)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, false, domainErrors.ErrAlreadyExists
		}
		return nil, false, err
	}
	return order, true, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domainErrors.NotFoundError{Entity: "order", ID: id}
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key=$1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domainErrors.NotFoundError{Entity: "order", ID: key}
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) MarkProofVerified(ctx context.Context, id, txRef, verifiedAmount string, verifiedAt time.Time) (bool, error) {
	const query = `UPDATE orders
                   SET status='PROOF_VERIFIED', transaction_ref=$2, verified_amount=$3, verified_at=$4, updated_at=NOW()
                   WHERE id=$1 AND status='AWAITING_PROOF'`
	applied, err := r.storage.transition(ctx, id, model.OrderStatusProofVerified, "proof "+txRef, query, id, txRef, verifiedAmount, verifiedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, &domainErrors.ValidationError{
				Field:  "transactionDigest",
				Reason: "already proves another order",
				Err:    domainErrors.ErrAlreadyExists,
			}
		}
		return false, err
	}
	return applied, nil
}

func (r *orderRepository) ClaimSubmission(ctx context.Context, id, claim string, now, leaseUntil time.Time) (bool, error) {
	const query = `UPDATE orders
                   SET status='SUBMITTING_PAYOUT', submit_claim=$2, submit_lease_until=$4,
                       submit_attempts=submit_attempts+1, updated_at=NOW()
                   WHERE id=$1 AND partner_reference IS NULL
                     AND (status='PROOF_VERIFIED'
                          OR (status='SUBMITTING_PAYOUT' AND (submit_claim IS NULL OR submit_lease_until < $3)))`
	return r.storage.transition(ctx, id, model.OrderStatusSubmittingPayout, "claimed", query, id, claim, now, leaseUntil)
}

func (r *orderRepository) ReleaseSubmission(ctx context.Context, id, claim, note string) error {
	const query = `UPDATE orders
                   SET submit_claim=NULL, submit_lease_until=NULL, partner_status=$3, updated_at=NOW()
                   WHERE id=$1 AND submit_claim=$2`
	_, err := r.storage.transition(ctx, id, model.OrderStatusSubmittingPayout, note, query, id, claim, note)
	return err
}

func (r *orderRepository) MarkPayoutAccepted(ctx context.Context, id, claim, partnerRef, partnerStatus string) (bool, error) {
	const query = `UPDATE orders
                   SET status='PAYOUT_ACCEPTED', partner_reference=$3, partner_status=$4,
                       submit_claim=NULL, submit_lease_until=NULL, updated_at=NOW()
                   WHERE id=$1 AND submit_claim=$2 AND partner_reference IS NULL`
	return r.storage.transition(ctx, id, model.OrderStatusPayoutAccepted, "partner "+partnerRef, query, id, claim, partnerRef, partnerStatus)
}

func (r *orderRepository) MarkSubmissionRejected(ctx context.Context, id, claim, reason string) (bool, error) {
	const query = `UPDATE orders
                   SET status='FAILED', failure_reason=$3, submit_claim=NULL, submit_lease_until=NULL, updated_at=NOW()
                   WHERE id=$1 AND submit_claim=$2 AND partner_reference IS NULL`
	return r.storage.transition(ctx, id, model.OrderStatusFailed, reason, query, id, claim, reason)
}

func (r *orderRepository) Settle(ctx context.Context, id string, status model.OrderStatus, partnerStatus, reason string, checkedAt time.Time) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("%w: settle into %s", domainErrors.ErrInvalidState, status)
	}
	const query = `UPDATE orders
                   SET status=$2, partner_status=$3, failure_reason=NULLIF($4, ''), last_checked_at=$5, updated_at=NOW()
                   WHERE id=$1 AND status='PAYOUT_ACCEPTED'`
	note := partnerStatus
	if reason != "" {
		note += ": " + reason
	}
	return r.storage.transition(ctx, id, status, note, query, id, status, partnerStatus, reason, checkedAt)
}

func (r *orderRepository) TouchChecked(ctx context.Context, id, partnerStatus string, checkedAt time.Time) error {
	const query = `UPDATE orders SET partner_status=$2, last_checked_at=$3, updated_at=NOW()
                   WHERE id=$1 AND status='PAYOUT_ACCEPTED'`
	_, err := r.storage.pool.Exec(ctx, query, id, partnerStatus, checkedAt)
	return err
}

func (r *orderRepository) ListPending(ctx context.Context, limit int, staleBefore time.Time) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + `
              FROM orders
              WHERE status='PAYOUT_ACCEPTED'
                 OR (status IN ('PROOF_VERIFIED', 'SUBMITTING_PAYOUT') AND partner_reference IS NULL AND updated_at < $2)
              ORDER BY COALESCE(last_checked_at, updated_at)
              LIMIT $1`
	rows, err := r.storage.pool.Query(ctx, query, limit, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *orderRepository) History(ctx context.Context, id string) ([]model.OrderEvent, error) {
	const query = `SELECT order_id, status, note, created_at FROM order_events WHERE order_id=$1 ORDER BY id`
	rows, err := r.storage.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OrderEvent
	for rows.Next() {
		var e model.OrderEvent
		if err := rows.Scan(&e.OrderID, &e.Status, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// transition runs a conditional update and records an event when it applied.
func (s *Storage) transition(ctx context.Context, id string, status model.OrderStatus, note, query string, args ...any) (bool, error) {
	var applied bool
	err := s.WithinTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true
		return recordEvent(ctx, tx, id, status, note)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func recordEvent(ctx context.Context, tx pgx.Tx, orderID string, status model.OrderStatus, note string) error {
	const query = `INSERT INTO order_events (order_id, status, note) VALUES ($1, $2, $3)`
	_, err := tx.Exec(ctx, query, orderID, status, note)
	return err
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
