package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aq2208/gorder-scalapay/internal/adapter/http/middleware"
	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/logging"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
	"github.com/gin-gonic/gin"
)

type (
	Settler interface {
		Execute(ctx context.Context, in usecase.SettleInput) (bool, error)
	}
	CheckoutCreator interface {
		Execute(ctx context.Context, orderID string) (usecase.CreatePaymentOutput, error)
	}
	Refunder interface {
		Execute(ctx context.Context, in usecase.RefundInput) (usecase.RefundOutput, error)
	}
	StatusReader interface {
		Execute(ctx context.Context, orderID string) (string, error)
	}
	RefundQueue interface {
		PublishRefundRequest(ctx context.Context, msg usecase.RefundRequestedMsg) error
	}
)

type PaymentHandler struct {
	settle    Settler
	checkout  CheckoutCreator
	refund    Refunder
	status    StatusReader
	redirects usecase.Redirects
	timeout   time.Duration
	queue     RefundQueue // optional; enables ?async=true refunds
}

type HandlerOption func(*PaymentHandler)

func WithRefundQueue(q RefundQueue) HandlerOption { return func(h *PaymentHandler) { h.queue = q } }

func NewPaymentHandler(settle Settler, checkout CheckoutCreator, refund Refunder, status StatusReader,
	redirects usecase.Redirects, timeout time.Duration, opts ...HandlerOption) *PaymentHandler {
	h := &PaymentHandler{
		settle:    settle,
		checkout:  checkout,
		refund:    refund,
		status:    status,
		redirects: redirects,
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Callback handles GET /payments/scalapay, where the provider sends the shopper back.
// It always answers 302.
func (h *PaymentHandler) Callback(c *gin.Context) {
	in := usecase.SettleInput{
		Principal:         middleware.Principal(c),
		OrderStatus:       c.Query("status"),
		OrderID:           c.Query("orderId"),
		OrderToken:        c.Query("orderToken"),
		MerchantReference: c.Query("merchantReference"),
		TotalAmount:       c.Query("totalAmount"),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	ok, err := h.settle.Execute(ctx, in)
	if err != nil {
		logging.From(c).Error("internal error: scalapay settlement aborted", "order_id", in.OrderID, "err", err)
	}
	c.Redirect(http.StatusFound, h.redirects.Decide(ok, in.OrderID))
}

type checkoutReq struct {
	OrderID string `json:"orderId" binding:"required"`
}

type checkoutResp struct {
	OrderID       string `json:"orderId"`
	State         string `json:"state"`
	CheckoutURL   string `json:"checkoutUrl,omitempty"`
	Token         string `json:"token,omitempty"`
	Expires       string `json:"expires,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.checkout.Execute(ctx, req.OrderID)
	resp := checkoutResp{
		OrderID:       req.OrderID,
		State:         string(out.State),
		CheckoutURL:   out.CheckoutURL,
		Token:         out.Token,
		Expires:       out.Expires,
		TransactionID: out.TransactionID,
		Error:         out.ErrorMessage,
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case usecase.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, usecase.ErrDeclined):
		c.JSON(http.StatusBadGateway, resp)
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}

type refundReq struct {
	OrderID     string `json:"orderId" binding:"required"`
	AmountCents int64  `json:"amountCents" binding:"required,gt=0"`
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	idemKey := c.GetHeader("X-Idempotency-Key") // prevent duplicated refunds

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if h.queue != nil && c.Query("async") == "true" {
		if idemKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Idempotency-Key required for async refunds"})
			return
		}
		msg := usecase.RefundRequestedMsg{OrderID: req.OrderID, AmountCents: req.AmountCents, IdempotencyKey: idemKey}
		if err := h.queue.PublishRefundRequest(ctx, msg); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue_unavailable"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"state": "Queued"})
		return
	}

	out, err := h.refund.Execute(ctx, usecase.RefundInput{
		OrderID:        req.OrderID,
		AmountCents:    req.AmountCents,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrDuplicate) {
			status = http.StatusConflict
		}
		if errors.Is(err, usecase.ErrInvalidAmount) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if out.State == domain.RefundFailed {
		c.JSON(http.StatusBadGateway, gin.H{"state": out.State, "error": out.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": out.State, "metadata": out.Metadata})
}

func (h *PaymentHandler) OrderStatus(c *gin.Context) {
	id := c.Param("id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	st, err := h.status.Execute(ctx, id)
	if usecase.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": id, "state": st})
}
