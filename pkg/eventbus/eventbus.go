// Package eventbus routes in-process events to handlers by argument types.
package eventbus

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoSubscribers        = errors.New("eventbus: no matching subscribers")
	ErrInvalidHandlerReturn = errors.New("eventbus: invalid handler return signature")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

type EventBus interface {
	// Publish calls every matching handler, logging failures.
	Publish(args ...any)
	// PublishE calls every matching handler and joins their errors. Panics are
	// returned as errors.
	PublishE(args ...any) error
	Subscribe(handler any)
	Unsubscribe(handler any)
	SubscribersCount() int
}

type bus struct {
	log      *logrus.Logger
	mu       sync.RWMutex
	handlers []reflect.Value
}

func New(log *logrus.Logger) EventBus {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &bus{log: log}
}

// MatchSignature reports whether handler can be called with args.
func MatchSignature(handler any, args []any) bool {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		param := t.In(i)
		if arg == nil {
			if param.Kind() != reflect.Interface && param.Kind() != reflect.Ptr {
				return false
			}
			continue
		}
		if !reflect.TypeOf(arg).AssignableTo(param) {
			return false
		}
	}
	return true
}

func (b *bus) Subscribe(handler any) {
	v := reflect.ValueOf(handler)
	if v.Kind() != reflect.Func {
		panic("eventbus: handler must be a function")
	}
	out := v.Type()
	if out.NumOut() > 1 || (out.NumOut() == 1 && out.Out(0) != errorType) {
		panic(fmt.Sprintf("eventbus: handler %s must return nothing or error", out))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, v)
}

func (b *bus) Unsubscribe(handler any) {
	ptr := reflect.ValueOf(handler).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.Pointer() == ptr {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

func (b *bus) SubscribersCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *bus) Publish(args ...any) {
	called, errs := b.dispatch(args)
	for _, err := range errs {
		b.log.WithError(err).Error("eventbus: handler failed")
	}
	if called == 0 {
		b.log.Warnf("eventbus: no matching subscribers for %d args", len(args))
	}
}

func (b *bus) PublishE(args ...any) error {
	called, errs := b.dispatch(args)
	if called == 0 {
		return ErrNoSubscribers
	}
	return errors.Join(errs...)
}

// dispatch runs the matching handlers in subscription order. A failing handler
// does not stop the ones after it.
func (b *bus) dispatch(args []any) (int, []error) {
	b.mu.RLock()
	handlers := make([]reflect.Value, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Value{}
			continue
		}
		in[i] = reflect.ValueOf(arg)
	}

	called := 0
	var errs []error
	for _, h := range handlers {
		if !MatchSignature(h.Interface(), args) {
			continue
		}
		called++
		if err := call(h, in); err != nil {
			errs = append(errs, err)
		}
	}
	return called, errs
}

func call(h reflect.Value, in []reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventbus: handler %s panicked: %v", h.Type(), r)
		}
	}()
	args := make([]reflect.Value, len(in))
	for i, v := range in {
		if !v.IsValid() {
			v = reflect.Zero(h.Type().In(i))
		}
		args[i] = v
	}
	out := h.Call(args)
	if len(out) == 0 || out[0].IsNil() {
		return nil
	}
	return out[0].Interface().(error)
}
