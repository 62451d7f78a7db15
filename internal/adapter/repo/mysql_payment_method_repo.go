package repo

import (
	"context"
	"database/sql"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
)

type MySQLPaymentMethodRepo struct{ db *sql.DB }

func NewMySQLPaymentMethodRepo(db *sql.DB) *MySQLPaymentMethodRepo {
	return &MySQLPaymentMethodRepo{db: db}
}

func (r *MySQLPaymentMethodRepo) FindAll(ctx context.Context) ([]domain.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,code,handler_code,enabled
FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PaymentMethod
	for rows.Next() {
		var m domain.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Code, &m.HandlerCode, &m.Enabled); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ usecase.PaymentMethodFinder = (*MySQLPaymentMethodRepo)(nil)
