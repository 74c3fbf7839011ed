package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timberline-shop/timberline/internal/domain"
)

const uniqueViolationCode = "23505"

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, order_number, version, party, items, shipping_address,
	shipping_method, payment_method, subtotal_cents, shipping_cents, tax_cents,
	discount_cents, total_cents, status, status_history, return_requests,
	tracking_number, estimated_delivery, delivered_at, cancelled_at,
	cancellation_reason, customer_note, created_at, updated_at`

// Create inserts a fully constructed order. The single INSERT keeps partially
// built orders invisible to readers. A duplicate order number surfaces
// domain.ErrDuplicateOrderNumber so the caller can re-number and retry.
func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	encoded, err := encodeOrderDocuments(order)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, order_number, version, party, items, shipping_address,
			shipping_method, payment_method, subtotal_cents, shipping_cents,
			tax_cents, discount_cents, total_cents, status, status_history,
			return_requests, customer_note
		) VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`
	row := s.pool.QueryRow(ctx, query,
		order.ID,
		order.OrderNumber,
		encoded.party,
		encoded.items,
		encoded.address,
		order.ShippingMethod,
		order.PaymentMethod,
		order.Financials.SubtotalCents,
		order.Financials.ShippingCents,
		order.Financials.TaxCents,
		order.Financials.DiscountCents,
		order.Financials.TotalCents,
		string(order.Status),
		encoded.history,
		encoded.returns,
		textOrNil(order.CustomerNote),
	)

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, order.OrderNumber)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}

	order.Version = 1
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time
	return nil
}

// Update writes the order back conditionally on the version it was read at.
// A lost race returns domain.ErrConflict; the caller re-reads and retries.
func (s *OrderStore) Update(ctx context.Context, order *domain.Order) error {
	if err := execOrderUpdate(ctx, s.pool, order); err != nil {
		return err
	}
	order.Version++
	return nil
}

// AddReturn writes an order carrying a freshly minted return id, claiming the
// id in return_ids within the same transaction as the order update. The
// primary key on return_ids is what makes return ids unique across the whole
// system: the per-order version check cannot serialize filings against
// different orders. A lost claim surfaces domain.ErrDuplicateReturnID so the
// caller can re-number and retry.
func (s *OrderStore) AddReturn(ctx context.Context, order *domain.Order, returnID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin return transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO return_ids (return_id, order_id) VALUES ($1, $2)`
	if _, err := tx.Exec(ctx, query, returnID, order.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateReturnID, returnID)
		}
		return fmt.Errorf("failed to claim return id: %w", err)
	}

	if err := execOrderUpdate(ctx, tx, order); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit return transaction: %w", err)
	}
	order.Version++
	return nil
}

type rowExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func execOrderUpdate(ctx context.Context, db rowExecer, order *domain.Order) error {
	encoded, err := encodeOrderDocuments(order)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET party = $3, items = $4, shipping_address = $5, shipping_method = $6,
		    payment_method = $7, subtotal_cents = $8, shipping_cents = $9,
		    tax_cents = $10, discount_cents = $11, total_cents = $12,
		    status = $13, status_history = $14, return_requests = $15,
		    tracking_number = $16, estimated_delivery = $17, delivered_at = $18,
		    cancelled_at = $19, cancellation_reason = $20, customer_note = $21,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	cmdTag, err := db.Exec(ctx, query,
		order.ID,
		order.Version,
		encoded.party,
		encoded.items,
		encoded.address,
		order.ShippingMethod,
		order.PaymentMethod,
		order.Financials.SubtotalCents,
		order.Financials.ShippingCents,
		order.Financials.TaxCents,
		order.Financials.DiscountCents,
		order.Financials.TotalCents,
		string(order.Status),
		encoded.history,
		encoded.returns,
		textOrNil(order.TrackingNumber),
		timeOrNil(order.EstimatedDelivery),
		timeOrNil(order.DeliveredAt),
		timeOrNil(order.CancelledAt),
		textOrNil(order.CancellationReason),
		textOrNil(order.CustomerNote),
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s at version %d", domain.ErrConflict, order.ID, order.Version)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)
	return s.queryOne(ctx, query, orderID)
}

// GetByNumber looks an order up by its human-readable number, falling back to
// a case-insensitive match when the exact form is not found.
func (s *OrderStore) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	exact := fmt.Sprintf(`SELECT %s FROM orders WHERE order_number = $1`, orderColumns)
	order, err := s.queryOne(ctx, exact, orderNumber)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, err
	}

	folded := fmt.Sprintf(`SELECT %s FROM orders WHERE LOWER(order_number) = LOWER($1)`, orderColumns)
	return s.queryOne(ctx, folded, orderNumber)
}

// GetByReturnID finds the order owning the return request with the given id.
// return_ids is written in the same transaction as the return itself, so the
// lookup table never disagrees with the order documents.
func (s *OrderStore) GetByReturnID(ctx context.Context, returnID string) (*domain.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE id = (SELECT order_id FROM return_ids WHERE return_id = $1)
	`, orderColumns)
	order, err := s.queryOne(ctx, query, returnID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrReturnNotFound, returnID)
	}
	return order, err
}

type ListFilter struct {
	Status string
	UserID string
	Limit  int
	Offset int
}

func (s *OrderStore) List(ctx context.Context, filter ListFilter) ([]*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders`, orderColumns)
	args := []any{}
	conditions := []string{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("party ->> 'user_id' = $%d", len(args)))
	}
	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Delete removes an order outright. This is an administrative escape hatch,
// not part of the lifecycle.
func (s *OrderStore) Delete(ctx context.Context, orderID uuid.UUID) error {
	cmdTag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return nil
}

// CountOrdersCreatedBetween backs the daily order numbering sequence.
func (s *OrderStore) CountOrdersCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM orders WHERE created_at >= $1 AND created_at < $2`
	if err := s.pool.QueryRow(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// CountReturnsRequestedBetween backs the daily return numbering sequence.
func (s *OrderStore) CountReturnsRequestedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM return_ids WHERE created_at >= $1 AND created_at < $2`
	if err := s.pool.QueryRow(ctx, query, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count returns: %w", err)
	}
	return count, nil
}

func (s *OrderStore) queryOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query order: %w", err)
		}
		return nil, domain.ErrOrderNotFound
	}
	return scanOrder(rows)
}

type encodedDocuments struct {
	party   []byte
	items   []byte
	address []byte
	history []byte
	returns []byte
}

func encodeOrderDocuments(order *domain.Order) (encodedDocuments, error) {
	var encoded encodedDocuments
	var err error

	if encoded.party, err = json.Marshal(order.Party); err != nil {
		return encoded, fmt.Errorf("failed to encode party: %w", err)
	}
	if encoded.items, err = json.Marshal(order.Items); err != nil {
		return encoded, fmt.Errorf("failed to encode items: %w", err)
	}
	if encoded.address, err = json.Marshal(order.ShippingAddress); err != nil {
		return encoded, fmt.Errorf("failed to encode shipping address: %w", err)
	}
	if encoded.history, err = json.Marshal(order.StatusHistory); err != nil {
		return encoded, fmt.Errorf("failed to encode status history: %w", err)
	}
	returns := order.ReturnRequests
	if returns == nil {
		returns = []domain.ReturnRequest{}
	}
	if encoded.returns, err = json.Marshal(returns); err != nil {
		return encoded, fmt.Errorf("failed to encode return requests: %w", err)
	}
	return encoded, nil
}

func scanOrder(rows pgx.Rows) (*domain.Order, error) {
	var (
		order              domain.Order
		party              []byte
		items              []byte
		address            []byte
		history            []byte
		returns            []byte
		status             string
		trackingNumber     pgtype.Text
		estimatedDelivery  pgtype.Timestamptz
		deliveredAt        pgtype.Timestamptz
		cancelledAt        pgtype.Timestamptz
		cancellationReason pgtype.Text
		customerNote       pgtype.Text
		createdAt          pgtype.Timestamptz
		updatedAt          pgtype.Timestamptz
	)

	err := rows.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.Version,
		&party,
		&items,
		&address,
		&order.ShippingMethod,
		&order.PaymentMethod,
		&order.Financials.SubtotalCents,
		&order.Financials.ShippingCents,
		&order.Financials.TaxCents,
		&order.Financials.DiscountCents,
		&order.Financials.TotalCents,
		&status,
		&history,
		&returns,
		&trackingNumber,
		&estimatedDelivery,
		&deliveredAt,
		&cancelledAt,
		&cancellationReason,
		&customerNote,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	order.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(party, &order.Party); err != nil {
		return nil, fmt.Errorf("failed to decode party: %w", err)
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	if err := json.Unmarshal(history, &order.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to decode status history: %w", err)
	}
	if err := json.Unmarshal(returns, &order.ReturnRequests); err != nil {
		return nil, fmt.Errorf("failed to decode return requests: %w", err)
	}

	if trackingNumber.Valid {
		order.TrackingNumber = trackingNumber.String
	}
	if estimatedDelivery.Valid {
		order.EstimatedDelivery = estimatedDelivery.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}
	if cancelledAt.Valid {
		order.CancelledAt = cancelledAt.Time
	}
	if cancellationReason.Valid {
		order.CancellationReason = cancellationReason.String
	}
	if customerNote.Valid {
		order.CustomerNote = customerNote.String
	}
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time

	return &order, nil
}

func textOrNil(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}

func timeOrNil(value time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: value, Valid: !value.IsZero()}
}
