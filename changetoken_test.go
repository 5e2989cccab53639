package streamkit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestCallbackChangeToken(t *testing.T) {
	token := NewCallbackChangeToken()

	if token.HasChanged() {
		t.Error("new token should not have changed")
	}
	if !token.ActiveChangeCallbacks() {
		t.Error("callback token should report active callbacks")
	}

	var fired, removed atomic.Int32
	token.RegisterChangeCallback(func() { fired.Add(1) })
	unregister := token.RegisterChangeCallback(func() { removed.Add(1) })
	unregister()

	token.SignalChange()
	token.SignalChange()

	if !token.HasChanged() {
		t.Error("token should have changed after SignalChange")
	}
	if fired.Load() != 1 {
		t.Errorf("callback fired %d times, want 1", fired.Load())
	}
	if removed.Load() != 0 {
		t.Error("unregistered callback was called")
	}

	var late atomic.Bool
	token.RegisterChangeCallback(func() { late.Store(true) })
	if !late.Load() {
		t.Error("registering on a changed token should fire immediately")
	}
}

func TestPollingChangeToken(t *testing.T) {
	var flag atomic.Bool
	token := NewPollingChangeToken(context.Background(), PollingConfig{
		Interval:  5 * time.Millisecond,
		CheckFunc: flag.Load,
	})
	defer token.Stop()

	done := make(chan struct{})
	token.RegisterChangeCallback(func() { close(done) })

	flag.Store(true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("polling token did not fire")
	}
	if !token.HasChanged() {
		t.Error("HasChanged() = false after firing")
	}

	token.Stop()
	token.Stop()
}

func TestPollingChangeTokenStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	token := NewPollingChangeToken(ctx, PollingConfig{
		Interval:  time.Millisecond,
		CheckFunc: func() bool { return false },
	})
	cancel()
	token.Stop()

	if token.HasChanged() {
		t.Error("stopped token should not report a change")
	}
}

type fakeSizer struct {
	size atomic.Int64
}

func (f *fakeSizer) Size() (int64, error) { return f.size.Load(), nil }

func TestSizeChanged(t *testing.T) {
	s := &fakeSizer{}
	s.size.Store(10)

	cfg := SizeChanged(s, 5*time.Millisecond)
	if cfg.CheckFunc() {
		t.Error("CheckFunc() reported a change before the size moved")
	}

	token := NewPollingChangeToken(context.Background(), cfg)
	defer token.Stop()

	s.size.Store(11)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := WaitForChange(ctx, token); err != nil {
		t.Fatalf("WaitForChange() error = %v", err)
	}
}

func TestStaticChangeTokens(t *testing.T) {
	var called bool
	CancelledChangeToken{}.RegisterChangeCallback(func() { called = true })
	if !called || !(CancelledChangeToken{}).HasChanged() {
		t.Error("CancelledChangeToken should be changed and fire immediately")
	}

	called = false
	NeverChangeToken{}.RegisterChangeCallback(func() { called = true })
	if called || (NeverChangeToken{}).HasChanged() {
		t.Error("NeverChangeToken should never fire")
	}
}

func TestWaitForChange(t *testing.T) {
	t.Run("already changed", func(t *testing.T) {
		if err := WaitForChange(context.Background(), CancelledChangeToken{}); err != nil {
			t.Errorf("WaitForChange() error = %v", err)
		}
	})

	t.Run("context done", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := WaitForChange(ctx, NeverChangeToken{})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitForChange() error = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("signalled later", func(t *testing.T) {
		token := NewCallbackChangeToken()
		go func() {
			time.Sleep(5 * time.Millisecond)
			token.SignalChange()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := WaitForChange(ctx, token); err != nil {
			t.Errorf("WaitForChange() error = %v", err)
		}
	})
}

func TestOnChange(t *testing.T) {
	tokens := make(chan *CallbackChangeToken, 4)
	fired := make(chan struct{}, 4)

	cancel := OnChange(func() (ChangeToken, error) {
		token := NewCallbackChangeToken()
		tokens <- token
		return token, nil
	}, func() {
		fired <- struct{}{}
	})
	defer cancel()

	for i := range 2 {
		var token *CallbackChangeToken
		select {
		case token = <-tokens:
		case <-time.After(2 * time.Second):
			t.Fatalf("no token produced for round %d", i)
		}
		token.SignalChange()

		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("change action not run for round %d", i)
		}
	}
}

func TestOnChangeStopsOnProducerError(t *testing.T) {
	var calls atomic.Int32
	cancel := OnChange(func() (ChangeToken, error) {
		calls.Add(1)
		return nil, errors.New("gone")
	}, func() {
		t.Error("change action should not run")
	})
	defer cancel()

	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("producer called %d times, want 1", calls.Load())
	}
}
