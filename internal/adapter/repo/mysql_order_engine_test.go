package repo

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderCols = []string{"id", "code", "state", "currency", "total_with_tax", "shipping_with_tax",
	"billing_address", "shipping_address", "custom_fields"}

func newEngine(t *testing.T) (*MySQLOrderEngine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewMySQLOrderEngine(db), mock
}

func expectOrderRow(mock sqlmock.Sqlmock, id string, state domain.OrderState, custom string) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id,code,state,currency")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
			id, "CODE1", string(state), "EUR", 10000, 0,
			[]byte(`{"streetLine1":"Via Roma 1","countryCode":"it"}`), nil, []byte(custom)))
}

func TestFindOrder_NotFound(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id,code,state,currency")).
		WithArgs("O9").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := engine.FindOrder(context.Background(), "O9")
	assert.ErrorIs(t, err, usecase.ErrOrderNotFound)
}

func TestFindOrder_WithRelations(t *testing.T) {
	engine, mock := newEngine(t)
	expectOrderRow(mock, "O1", domain.StateArrangingPayment, `{"scalapayCheckoutUrl":"https://x/checkout/ABC"}`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_lines WHERE order_id=?")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "unit_price_with_tax", "line_price_with_tax", "product_name", "sku"}).
			AddRow("L1", 2, 1250, 2500, "Cups", nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE order_id=?")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "method", "amount", "state", "transaction_id", "metadata"}).
			AddRow("p1", "scalapay-payment", 10000, "Settled", "ABC", []byte(`{"token":"T1"}`)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers c JOIN orders o")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "email_address", "phone_number"}))

	o, err := engine.FindOrder(context.Background(), "O1", usecase.RelLines, usecase.RelPayments, usecase.RelCustomer)
	require.NoError(t, err)

	assert.Equal(t, domain.StateArrangingPayment, o.State)
	assert.Equal(t, "https://x/checkout/ABC", domain.Deref(o.CustomFields.ScalapayCheckoutURL))
	require.NotNil(t, o.BillingAddress)
	assert.Equal(t, "it", domain.Deref(o.BillingAddress.CountryCode))
	assert.Nil(t, o.ShippingAddress)
	assert.Nil(t, o.Customer, "guest checkout")

	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Cups", domain.Deref(o.Lines[0].ProductName))
	assert.Nil(t, o.Lines[0].SKU)

	p, ok := o.PaymentByToken("T1")
	require.True(t, ok)
	assert.Equal(t, "O1", p.OrderID)
}

func TestTransitionState(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		engine, mock := newEngine(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM orders WHERE id=?")).
			WithArgs("O1").
			WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("AddingItems"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
			WithArgs("ArrangingPayment", "O1", "AddingItems").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, engine.TransitionState(context.Background(), "O1", domain.StateArrangingPayment))
	})

	t.Run("forbidden by state machine", func(t *testing.T) {
		engine, mock := newEngine(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM orders WHERE id=?")).
			WithArgs("O1").
			WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("PaymentSettled"))

		err := engine.TransitionState(context.Background(), "O1", domain.StateAddingItems)
		assert.ErrorIs(t, err, usecase.ErrTransitionRejected)
	})

	t.Run("lost race", func(t *testing.T) {
		engine, mock := newEngine(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM orders WHERE id=?")).
			WithArgs("O1").
			WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("ArrangingPayment"))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
			WithArgs("AddingItems", "O1", "ArrangingPayment").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := engine.TransitionState(context.Background(), "O1", domain.StateAddingItems)
		assert.ErrorIs(t, err, usecase.ErrTransitionRejected)
	})

	t.Run("unknown order", func(t *testing.T) {
		engine, mock := newEngine(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM orders WHERE id=?")).
			WithArgs("O9").
			WillReturnRows(sqlmock.NewRows([]string{"state"}))

		err := engine.TransitionState(context.Background(), "O9", domain.StateAddingItems)
		assert.ErrorIs(t, err, usecase.ErrOrderNotFound)
	})
}

func TestAddPayment_RejectedOutsideArrangingPayment(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT state,total_with_tax FROM orders WHERE id=? FOR UPDATE")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"state", "total_with_tax"}).AddRow("AddingItems", 10000))
	mock.ExpectRollback()

	_, err := engine.AddPayment(context.Background(), "O1", domain.PaymentInput{Method: "scalapay-payment"})
	assert.ErrorIs(t, err, usecase.ErrPaymentRejected)
}

func TestAddPayment_SettlesOutstandingBalance(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT state,total_with_tax FROM orders WHERE id=? FOR UPDATE")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"state", "total_with_tax"}).AddRow("ArrangingPayment", 10000))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount),0) FROM payments")).
		WithArgs("O1", "Settled").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(sqlmock.AnyArg(), "O1", "scalapay-payment", 10000, "Settled", "ABC", []byte(`{"token":"T1"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET state = ?")).
		WithArgs("PaymentSettled", "O1", "ArrangingPayment").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectOrderRow(mock, "O1", domain.StatePaymentSettled, `{}`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_lines")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "unit_price_with_tax", "line_price_with_tax", "product_name", "sku"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE order_id=?")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "method", "amount", "state", "transaction_id", "metadata"}).
			AddRow("p1", "scalapay-payment", 10000, "Settled", "ABC", []byte(`{"token":"T1"}`)))

	o, err := engine.AddPayment(context.Background(), "O1", domain.PaymentInput{
		Method:        "scalapay-payment",
		TransactionID: "ABC",
		Metadata:      map[string]string{domain.MetaToken: "T1"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatePaymentSettled, o.State)
	assert.Equal(t, int64(10000), o.PaidAmount())
}

func TestAddPayment_NothingDue(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("O1").
		WillReturnRows(sqlmock.NewRows([]string{"state", "total_with_tax"}).AddRow("ArrangingPayment", 10000))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount),0)")).
		WithArgs("O1", "Settled").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(10000))
	mock.ExpectRollback()

	_, err := engine.AddPayment(context.Background(), "O1", domain.PaymentInput{Method: "scalapay-payment"})
	assert.ErrorIs(t, err, usecase.ErrPaymentRejected)
}

func TestSaveOrder_WritesCustomFieldsOnly(t *testing.T) {
	engine, mock := newEngine(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET custom_fields = ?")).
		WithArgs([]byte(`{"scalapayToken":"T1"}`), "O1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	o := &domain.Order{ID: "O1", State: domain.StateCancelled}
	o.CustomFields.ScalapayToken = domain.StringPtr("T1")
	assert.NoError(t, engine.SaveOrder(context.Background(), o))
}

func TestPaymentMethodRepo_FindAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_methods")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "handler_code", "enabled"}).
			AddRow("1", "standard", "dummy", true).
			AddRow("2", "scalapay-payment", "scalapay", false))

	got, err := NewMySQLPaymentMethodRepo(db).FindAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.PaymentMethod{
		{ID: "1", Code: "standard", HandlerCode: "dummy", Enabled: true},
		{ID: "2", Code: "scalapay-payment", HandlerCode: "scalapay", Enabled: false},
	}, got)
}
