package app

import (
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	opened []*amqp091.Channel
	failAt int // 1-based call that fails; 0 never fails
}

func (f *fakeConn) Channel() (*amqp091.Channel, error) {
	if f.failAt == len(f.opened)+1 {
		return nil, errors.New("channel_max reached")
	}
	ch := &amqp091.Channel{}
	f.opened = append(f.opened, ch)
	return ch, nil
}

func TestOpenChannels_SeparatePublishAndConsume(t *testing.T) {
	conn := &fakeConn{}
	pub, consume, err := openChannels(conn)
	require.NoError(t, err)
	require.Len(t, conn.opened, 2)
	assert.NotSame(t, pub, consume)
	assert.Same(t, conn.opened[0], pub)
	assert.Same(t, conn.opened[1], consume)
}

func TestOpenChannels_Errors(t *testing.T) {
	for name, failAt := range map[string]int{"publish": 1, "consume": 2} {
		t.Run(name, func(t *testing.T) {
			pub, consume, err := openChannels(&fakeConn{failAt: failAt})
			require.Error(t, err)
			assert.Contains(t, err.Error(), name+" channel")
			assert.Nil(t, pub)
			assert.Nil(t, consume)
		})
	}
}
