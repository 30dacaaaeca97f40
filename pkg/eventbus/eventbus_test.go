package eventbus

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type roleChanged struct{ id string }
type edgeChanged struct{ id string }

func bufferedLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(logrus.WarnLevel)
	return log, buf
}

func TestMatchSignature(t *testing.T) {
	t.Parallel()

	require.True(t, MatchSignature(func(*roleChanged) {}, []any{&roleChanged{}}))
	require.False(t, MatchSignature(func(*roleChanged) {}, []any{&edgeChanged{}}))
	require.False(t, MatchSignature(func(*roleChanged) {}, []any{}))
	require.False(t, MatchSignature(func(*roleChanged) {}, []any{&roleChanged{}, &roleChanged{}}))
	require.True(t, MatchSignature(func(context.Context) {}, []any{context.Background()}))
	require.True(t, MatchSignature(func(*roleChanged) {}, []any{nil}))
	require.False(t, MatchSignature("not a func", []any{}))
}

func TestBus_Publish(t *testing.T) {
	t.Parallel()

	log, buf := bufferedLogger()
	b := New(log)

	var got []string
	b.Subscribe(func(e *roleChanged) { got = append(got, "role:"+e.id) })
	b.Subscribe(func(e *edgeChanged) { got = append(got, "edge:"+e.id) })

	b.Publish(&roleChanged{id: "a"})
	b.Publish(&edgeChanged{id: "b"})
	require.Equal(t, []string{"role:a", "edge:b"}, got)
	require.Empty(t, buf.String())

	b.Publish("unhandled")
	require.Contains(t, buf.String(), "no matching subscribers")
}

func TestBus_PublishLogsPanicAndContinues(t *testing.T) {
	t.Parallel()

	log, buf := bufferedLogger()
	b := New(log)

	after := false
	b.Subscribe(func(*roleChanged) { panic("boom") })
	b.Subscribe(func(*roleChanged) { after = true })

	require.NotPanics(t, func() { b.Publish(&roleChanged{}) })
	require.True(t, after)
	require.Contains(t, buf.String(), "panicked")
	require.Contains(t, buf.String(), "boom")
}

func TestBus_PublishE(t *testing.T) {
	t.Parallel()

	t.Run("no subscribers", func(t *testing.T) {
		require.ErrorIs(t, New(nil).PublishE(&roleChanged{}), ErrNoSubscribers)
	})

	t.Run("joins handler errors", func(t *testing.T) {
		b := New(nil)
		err1, err2 := errors.New("err1"), errors.New("err2")
		b.Subscribe(func(*roleChanged) error { return err1 })
		b.Subscribe(func(*roleChanged) error { return nil })
		b.Subscribe(func(*roleChanged) error { return err2 })

		err := b.PublishE(&roleChanged{})
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		b := New(nil)
		called := false
		b.Subscribe(func(*roleChanged) error { panic("boom") })
		b.Subscribe(func(*roleChanged) error { called = true; return nil })

		err := b.PublishE(&roleChanged{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "panicked")
		require.True(t, called)
	})

	t.Run("nil argument reaches pointer handlers", func(t *testing.T) {
		b := New(nil)
		var got *roleChanged = &roleChanged{}
		b.Subscribe(func(e *roleChanged) error { got = e; return nil })
		require.NoError(t, b.PublishE(nil))
		require.Nil(t, got)
	})
}

func TestBus_SubscribeRejectsBadHandlers(t *testing.T) {
	t.Parallel()

	b := New(nil)
	require.Panics(t, func() { b.Subscribe(42) })
	require.Panics(t, func() { b.Subscribe(func(*roleChanged) int { return 1 }) })
	require.Zero(t, b.SubscribersCount())
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := New(nil)
	h := func(*roleChanged) {}
	b.Subscribe(h)
	b.Subscribe(func(*edgeChanged) {})
	require.Equal(t, 2, b.SubscribersCount())

	b.Unsubscribe(h)
	require.Equal(t, 1, b.SubscribersCount())
	require.ErrorIs(t, b.PublishE(&roleChanged{}), ErrNoSubscribers)
}
