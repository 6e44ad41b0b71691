package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"gridbot/internal/core"
)

func TestPublish_DeliversInOrder(t *testing.T) {
	b := New(nil)
	var order []int

	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		order = append(order, 1)
		return nil
	})
	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		order = append(order, 2)
		return nil
	})

	b.Publish(context.Background(), core.EventOrderFilled, nil)

	assert.Equal(t, []int{1, 2}, order)
}

func TestPublish_HandlerErrorDoesNotStopPeers(t *testing.T) {
	b := New(nil)
	secondRan := false

	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		return errors.New("boom")
	})
	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		secondRan = true
		return nil
	})

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), core.EventOrderFilled, nil)
	})
	assert.True(t, secondRan)
}

func TestPublish_HandlerPanicDoesNotStopPeers(t *testing.T) {
	b := New(nil)
	secondRan := false

	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		panic("boom")
	})
	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		secondRan = true
		return nil
	})

	assert.NotPanics(t, func() {
		b.Publish(context.Background(), core.EventOrderFilled, nil)
	})
	assert.True(t, secondRan)
}

func TestPublish_UnsubscribedEventIsNoop(t *testing.T) {
	b := New(nil)
	assert.NotPanics(t, func() {
		b.Publish(context.Background(), core.EventStopBot, "reason")
	})
}
