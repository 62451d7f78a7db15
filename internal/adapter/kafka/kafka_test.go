package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/aq2208/gorder-scalapay/internal/logging"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
	"github.com/stretchr/testify/assert"
)

type fakeSession struct {
	marked []string // metadata per marked offset
}

func (s *fakeSession) Claims() map[string][]int32                       { return nil }
func (s *fakeSession) MemberID() string                                 { return "m1" }
func (s *fakeSession) GenerationID() int32                              { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)          {}
func (s *fakeSession) Commit()                                          {}
func (s *fakeSession) ResetOffset(string, int32, int64, string)         {}
func (s *fakeSession) Context() context.Context                         { return context.Background() }
func (s *fakeSession) MarkMessage(_ *sarama.ConsumerMessage, md string) { s.marked = append(s.marked, md) }

type fakeClaim struct{ ch chan *sarama.ConsumerMessage }

func (c fakeClaim) Topic() string                            { return "order.checkout.requested" }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func claimOf(values ...string) fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "order.checkout.requested", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return fakeClaim{ch: ch}
}

func TestConsumeClaim(t *testing.T) {
	var seen []string
	h := &cgHandler{
		logger: logging.Base(),
		handle: func(_ context.Context, ev usecase.CheckoutRequestedMsg) error {
			seen = append(seen, ev.OrderID)
			if ev.OrderID == "O2" {
				return errors.New("db down")
			}
			return nil
		},
	}
	sess := &fakeSession{}

	err := h.ConsumeClaim(sess, claimOf(`{"orderId":"O1"}`, `not json`, `{"orderId":"O2"}`))
	assert.NoError(t, err)
	assert.Equal(t, []string{"O1", "O2"}, seen)
	// O1 marked, poison marked, O2 left for redelivery
	assert.Equal(t, []string{"", "decode-error"}, sess.marked)
}

type fakeCreator struct {
	out usecase.CreatePaymentOutput
	err error
}

func (f fakeCreator) Execute(context.Context, string) (usecase.CreatePaymentOutput, error) {
	return f.out, f.err
}

func TestCheckoutRequestedHandler(t *testing.T) {
	ctx := context.Background()
	ev := usecase.CheckoutRequestedMsg{OrderID: "O1"}

	assert.NoError(t, NewCheckoutRequestedHandler(fakeCreator{out: usecase.CreatePaymentOutput{TransactionID: "ABC"}}).Handle(ctx, ev))
	assert.NoError(t, NewCheckoutRequestedHandler(fakeCreator{err: usecase.ErrOrderNotFound}).Handle(ctx, ev))
	assert.NoError(t, NewCheckoutRequestedHandler(fakeCreator{err: usecase.ErrDeclined}).Handle(ctx, ev))

	boom := errors.New("db down")
	assert.ErrorIs(t, NewCheckoutRequestedHandler(fakeCreator{err: boom}).Handle(ctx, ev), boom)
}
