package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var ErrNilResult = errors.New("result is nil")

// SafeBackgroundTask runs a blocking function on behalf of an actor, bounded
// by an optional timeout, and hands the outcome to OnSuccess or OnError.
// Run blocks the calling actor until the function returns or times out.
type SafeBackgroundTask[T any] struct {
	ctx       actor.Context
	fn        func() (*T, error)
	timeout   *time.Duration
	onError   func(error)
	onSuccess func(T)
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		ctx: ctx,
		fn:  fn,
	}
}

func NewBackgroundTaskErr(ctx actor.Context, fn func() error) *SafeBackgroundTask[struct{}] {
	return &SafeBackgroundTask[struct{}]{
		ctx: ctx,
		fn: func() (*struct{}, error) {
			return &struct{}{}, fn()
		},
	}
}

func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = &timeout
	return t
}

func (t *SafeBackgroundTask[T]) OnError(fn func(error)) *SafeBackgroundTask[T] {
	t.onError = fn
	return t
}

func (t *SafeBackgroundTask[T]) OnSuccess(fn func(T)) *SafeBackgroundTask[T] {
	t.onSuccess = fn
	return t
}

func (t *SafeBackgroundTask[T]) PipeTo(pid *actor.PID) {
	t.onSuccess = func(value T) {
		t.ctx.Send(pid, value)
	}
	t.Run()
}

func (t *SafeBackgroundTask[T]) Run() {
	bg := io.Map(io.Eval(t.fn), func(a *T) T {
		if a != nil {
			return *a
		}
		panic(ErrNilResult)
	})
	if t.timeout != nil {
		bg = io.WithTimeout[T](*t.timeout)(bg)
	}
	result := io.RunSync(bg)
	if result.Error != nil {
		if t.onError != nil {
			t.onError(result.Error)
		}
		return
	}
	if t.onSuccess != nil {
		t.onSuccess(result.Value)
	}
}
