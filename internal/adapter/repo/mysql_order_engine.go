package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
	"github.com/google/uuid"
)

// MySQLOrderEngine is the order platform's persistence, seen through the settlement ports.
type MySQLOrderEngine struct{ db *sql.DB }

func NewMySQLOrderEngine(db *sql.DB) *MySQLOrderEngine { return &MySQLOrderEngine{db: db} }

func (r *MySQLOrderEngine) FindOrder(ctx context.Context, id string, relations ...string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,code,state,currency,total_with_tax,shipping_with_tax,billing_address,shipping_address,custom_fields
FROM orders WHERE id=?`, id)

	var (
		o                 domain.Order
		billing, shipping []byte
		custom            []byte
	)
	err := row.Scan(&o.ID, &o.Code, &o.State, &o.Currency, &o.TotalWithTax, &o.ShippingWithTax, &billing, &shipping, &custom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", usecase.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if o.BillingAddress, err = decodeAddress(billing); err != nil {
		return nil, fmt.Errorf("billing_address: %w", err)
	}
	if o.ShippingAddress, err = decodeAddress(shipping); err != nil {
		return nil, fmt.Errorf("shipping_address: %w", err)
	}
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &o.CustomFields); err != nil {
			return nil, fmt.Errorf("custom_fields: %w", err)
		}
	}

	if err := r.Hydrate(ctx, &o, relations...); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *MySQLOrderEngine) Hydrate(ctx context.Context, o *domain.Order, relations ...string) error {
	for _, rel := range relations {
		var err error
		switch rel {
		case usecase.RelLines:
			o.Lines, err = r.lines(ctx, o.ID)
		case usecase.RelPayments:
			o.Payments, err = r.payments(ctx, o.ID)
		case usecase.RelCustomer:
			o.Customer, err = r.customer(ctx, o.ID)
		case usecase.RelDiscounts:
			o.Discounts, err = r.discounts(ctx, o.ID)
		default:
			err = fmt.Errorf("unknown relation %q", rel)
		}
		if err != nil {
			return fmt.Errorf("hydrate %s: %w", rel, err)
		}
	}
	return nil
}

// TransitionState checks the state machine first, then applies the move only if nobody
// changed the state in between.
func (r *MySQLOrderEngine) TransitionState(ctx context.Context, id string, to domain.OrderState) error {
	var from domain.OrderState
	err := r.db.QueryRowContext(ctx, `SELECT state FROM orders WHERE id=?`, id).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", usecase.ErrOrderNotFound, id)
	}
	if err != nil {
		return err
	}
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", usecase.ErrTransitionRejected, from, to)
	}

	ok, err := r.UpdateStatusIf(ctx, id, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s changed concurrently", usecase.ErrTransitionRejected, id)
	}
	return nil
}

func (r *MySQLOrderEngine) UpdateStatusIf(ctx context.Context, id string, from, to domain.OrderState) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET state = ?, updated_at = NOW()
        WHERE id = ? AND state = ?`,
		to, id, from,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// rows == 0 → not found or state moved underneath us
	return rows > 0, nil
}

// AddPayment settles the outstanding balance of an order in ArrangingPayment.
func (r *MySQLOrderEngine) AddPayment(ctx context.Context, id string, in domain.PaymentInput) (*domain.Order, error) {
	meta, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		state domain.OrderState
		total int64
	)
	err = tx.QueryRowContext(ctx, `SELECT state,total_with_tax FROM orders WHERE id=? FOR UPDATE`, id).Scan(&state, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", usecase.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if state != domain.StateArrangingPayment {
		return nil, fmt.Errorf("%w: order is %s", usecase.ErrPaymentRejected, state)
	}

	var paid int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount),0) FROM payments WHERE order_id=? AND state=?`,
		id, domain.PaymentStateSettled).Scan(&paid); err != nil {
		return nil, err
	}
	due := total - paid
	if due <= 0 {
		return nil, fmt.Errorf("%w: nothing left to pay", usecase.ErrPaymentRejected)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO payments (id,order_id,method,amount,state,transaction_id,metadata,created_at)
VALUES (?,?,?,?,?,?,?,NOW())
`, uuid.NewString(), id, in.Method, due, domain.PaymentStateSettled, in.TransactionID, meta); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET state = ?, updated_at = NOW() WHERE id = ? AND state = ?`,
		domain.StatePaymentSettled, id, domain.StateArrangingPayment); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.FindOrder(ctx, id, usecase.RelLines, usecase.RelPayments)
}

// SaveOrder writes the custom fields only; everything else belongs to the platform.
func (r *MySQLOrderEngine) SaveOrder(ctx context.Context, o *domain.Order) error {
	custom, err := json.Marshal(o.CustomFields)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows for an unchanged value, so no not-found check here
	_, err = r.db.ExecContext(ctx, `UPDATE orders SET custom_fields = ?, updated_at = NOW() WHERE id = ?`, custom, o.ID)
	return err
}

func (r *MySQLOrderEngine) lines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,quantity,unit_price_with_tax,line_price_with_tax,product_name,sku
FROM order_lines WHERE order_id=? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrderLine
	for rows.Next() {
		var (
			l         domain.OrderLine
			name, sku sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Quantity, &l.UnitPriceWithTax, &l.LinePriceWithTax, &name, &sku); err != nil {
			return nil, err
		}
		l.ProductName, l.SKU = nullable(name), nullable(sku)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *MySQLOrderEngine) payments(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,method,amount,state,transaction_id,metadata
FROM payments WHERE order_id=? ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var (
			p    = domain.Payment{OrderID: orderID}
			txID sql.NullString
			meta []byte
		)
		if err := rows.Scan(&p.ID, &p.Method, &p.Amount, &p.State, &txID, &meta); err != nil {
			return nil, err
		}
		p.TransactionID = txID.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Metadata); err != nil {
				return nil, fmt.Errorf("payment %s metadata: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MySQLOrderEngine) customer(ctx context.Context, orderID string) (*domain.Customer, error) {
	var first, last, email, phone sql.NullString
	err := r.db.QueryRowContext(ctx, `
SELECT c.first_name,c.last_name,c.email_address,c.phone_number
FROM customers c JOIN orders o ON o.customer_id = c.id
WHERE o.id=?`, orderID).Scan(&first, &last, &email, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		// guest checkout
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.Customer{
		FirstName:    nullable(first),
		LastName:     nullable(last),
		EmailAddress: nullable(email),
		PhoneNumber:  nullable(phone),
	}, nil
}

func (r *MySQLOrderEngine) discounts(ctx context.Context, orderID string) ([]domain.Discount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT amount_with_tax FROM order_discounts WHERE order_id=?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Discount
	for rows.Next() {
		var d domain.Discount
		if err := rows.Scan(&d.AmountWithTax); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func decodeAddress(b []byte) (*domain.Address, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var a domain.Address
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

var _ usecase.OrderEngine = (*MySQLOrderEngine)(nil)
