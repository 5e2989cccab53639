package streamkit

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// Change Notification (ChangeToken Pattern)
// ============================================================================
// Consumers either poll HasChanged or register a callback. Tokens are single
// use: once changed they stay changed, and a follower asks for a new token
// after acting on the change.

// ChangeToken represents a change notification token.
type ChangeToken interface {
	// HasChanged returns true if a change has occurred.
	// Once true, it remains true.
	HasChanged() bool

	// ActiveChangeCallbacks indicates if the token proactively raises callbacks.
	// If false, consumers should poll HasChanged instead.
	ActiveChangeCallbacks() bool

	// RegisterChangeCallback registers a callback to be invoked when change
	// occurs and returns a function to unregister it.
	RegisterChangeCallback(callback func()) (unregister func())
}

// callbackList is shared by the token implementations that fire callbacks.
type callbackList struct {
	mu        sync.Mutex
	changed   atomic.Bool
	callbacks []func()
}

func (l *callbackList) register(callback func()) func() {
	l.mu.Lock()
	if l.changed.Load() {
		l.mu.Unlock()
		// registering on a spent token fires immediately
		callback()
		return func() {}
	}
	l.callbacks = append(l.callbacks, callback)
	index := len(l.callbacks) - 1
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if index < len(l.callbacks) {
			// nil instead of removing to keep indexes stable
			l.callbacks[index] = nil
		}
	}
}

func (l *callbackList) signal() {
	l.mu.Lock()
	if l.changed.Swap(true) {
		l.mu.Unlock()
		return
	}
	callbacks := l.callbacks
	l.callbacks = nil
	l.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

// CallbackChangeToken is a ChangeToken fired by its owner, typically from a
// file system event.
type CallbackChangeToken struct {
	list callbackList
}

// NewCallbackChangeToken creates a new ChangeToken that supports active callbacks.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.list.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return t.list.register(callback)
}

// SignalChange marks the token as changed and invokes all callbacks.
// Only the first call has an effect.
func (t *CallbackChangeToken) SignalChange() {
	t.list.signal()
}

// ============================================================================
// Polling ChangeToken
// ============================================================================

// PollingConfig configures a polling change token.
type PollingConfig struct {
	// Interval between polls (default: 1 second)
	Interval time.Duration
	// CheckFunc returns true if a change is detected
	CheckFunc func() bool
}

// PollingChangeToken is a ChangeToken for sources without native events.
//
// To avoid leaking the polling goroutine either cancel the context passed to
// NewPollingChangeToken or call Stop. A cleanup stops the goroutine if the
// token becomes unreachable first, but do not rely on it.
type PollingChangeToken struct {
	list    *callbackList
	cancel  context.CancelFunc
	stopped atomic.Bool
}

// NewPollingChangeToken starts polling config.CheckFunc every interval until
// it reports a change, ctx is done or Stop is called.
func NewPollingChangeToken(ctx context.Context, config PollingConfig) *PollingChangeToken {
	if config.Interval <= 0 {
		config.Interval = time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &PollingChangeToken{list: &callbackList{}, cancel: cancel}

	// The goroutine only holds the list, so an abandoned token can still be
	// collected and its cleanup cancels the poller.
	go poll(ctx, t.list, config)
	runtime.AddCleanup(t, func(cancel context.CancelFunc) { cancel() }, cancel)

	return t
}

func poll(ctx context.Context, list *callbackList, config PollingConfig) {
	ticker := time.NewTicker(config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if config.CheckFunc != nil && config.CheckFunc() {
				list.signal()
				return
			}
		}
	}
}

func (t *PollingChangeToken) HasChanged() bool {
	return t.list.changed.Load()
}

func (t *PollingChangeToken) ActiveChangeCallbacks() bool {
	return true
}

func (t *PollingChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	return t.list.register(callback)
}

// Stop stops the polling goroutine.
// It is safe to call Stop multiple times.
func (t *PollingChangeToken) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	t.cancel()
}

// SizeChanged returns a PollingConfig that fires when the size reported by s
// differs from the size observed when the config was built.
func SizeChanged(s Sizer, interval time.Duration) PollingConfig {
	last, err := s.Size()
	if err != nil {
		last = -1
	}
	return PollingConfig{
		Interval: interval,
		CheckFunc: func() bool {
			size, err := s.Size()
			return err != nil || size != last
		},
	}
}

// ============================================================================
// Static ChangeTokens
// ============================================================================

// CancelledChangeToken is a ChangeToken that is already in a "changed" state.
type CancelledChangeToken struct{}

func (CancelledChangeToken) HasChanged() bool {
	return true
}

func (CancelledChangeToken) ActiveChangeCallbacks() bool {
	return false
}

func (CancelledChangeToken) RegisterChangeCallback(callback func()) func() {
	callback()
	return func() {}
}

// NeverChangeToken is a ChangeToken that never changes.
type NeverChangeToken struct{}

func (NeverChangeToken) HasChanged() bool {
	return false
}

func (NeverChangeToken) ActiveChangeCallbacks() bool {
	return false
}

func (NeverChangeToken) RegisterChangeCallback(func()) func() {
	return func() {}
}

// ============================================================================
// Helpers
// ============================================================================

// WaitForChange blocks until token changes or ctx is done.
func WaitForChange(ctx context.Context, token ChangeToken) error {
	done := make(chan struct{})
	var once sync.Once
	unregister := token.RegisterChangeCallback(func() {
		once.Do(func() { close(done) })
	})
	defer unregister()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnChange keeps producing tokens and runs changeAction every time the
// current one fires. It stops when tokenProducer fails or when the returned
// cancel function is called.
//
// Example:
//
//	cancel := streamkit.OnChange(
//	    func() (streamkit.ChangeToken, error) {
//	        return local.Watch(ctx, "app.log")
//	    },
//	    func() {
//	        log.Println("app.log changed")
//	    },
//	)
//	defer cancel()
func OnChange(tokenProducer func() (ChangeToken, error), changeAction func()) (cancel func()) {
	ctx, cancelFunc := context.WithCancel(context.Background())

	go func() {
		for {
			token, err := tokenProducer()
			if err != nil {
				return
			}
			if err := WaitForChange(ctx, token); err != nil {
				return
			}
			changeAction()
		}
	}()

	return cancelFunc
}
