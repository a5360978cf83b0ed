package breaker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func newTestBreaker(cfg Config) (*Breaker, *time.Time) {
	b := New(cfg)
	now := time.Now()
	b.nowFunc = func() time.Time { return now }
	return b, &now
}

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestClosedToOpen(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, ResetTimeout: 5 * time.Second})

	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %s", s)
	}

	for range 2 {
		if err := b.Execute(t.Context(), fail, nil); !errors.Is(err, errUpstream) {
			t.Fatalf("expected upstream error verbatim, got %v", err)
		}
	}
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed after 2 failures, got %s", s)
	}

	_ = b.Execute(t.Context(), fail, nil) // 3rd failure => trip
	if s := b.State(); s != Open {
		t.Fatalf("expected Open after 3 failures, got %s", s)
	}
	if b.Stats().LastFailureAt.IsZero() {
		t.Fatal("expected LastFailureAt to be recorded")
	}
}

func TestOpenRejectsWithoutInvoking(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, ResetTimeout: 5 * time.Second})

	_ = b.Execute(t.Context(), fail, nil) // trip
	*now = now.Add(2 * time.Second)

	called := false
	err := b.Execute(t.Context(), func(context.Context) error {
		called = true
		return nil
	}, nil)

	if called {
		t.Fatal("operation must not run while Open")
	}
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OpenError, got %T", err)
	}
	if oe.RetryIn != 3*time.Second {
		t.Fatalf("RetryIn = %v, want 3s", oe.RetryIn)
	}
}

func TestOpenUsesFallback(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 1, ResetTimeout: time.Minute})
	_ = b.Execute(t.Context(), fail, nil)

	v, err := Do(t.Context(), b,
		func(context.Context) (string, error) {
			t.Fatal("operation must not run while Open")
			return "", nil
		},
		func(context.Context) (string, error) { return "stale", nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "stale" {
		t.Fatalf("got %q, want fallback value", v)
	}
}

func TestFallbackIgnoredWhenClosed(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 5, ResetTimeout: time.Minute})

	err := b.Execute(t.Context(), fail, func(context.Context) error {
		t.Fatal("fallback must not run while Closed")
		return nil
	})
	if !errors.Is(err, errUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestHalfOpenTrialSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 2, ResetTimeout: 5 * time.Second})

	_ = b.Execute(t.Context(), fail, nil)
	_ = b.Execute(t.Context(), fail, nil)
	*now = now.Add(6 * time.Second)

	calls := 0
	err := b.Execute(t.Context(), func(context.Context) error {
		calls++
		if s := b.State(); s != HalfOpen {
			t.Errorf("expected HalfOpen during trial, got %s", s)
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("trial invoked %d times, want 1", calls)
	}
	st := b.Stats()
	if st.State != Closed || st.Failures != 0 {
		t.Fatalf("expected Closed with 0 failures, got %+v", st)
	}
}

func TestHalfOpenTrialFailureReopens(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, ResetTimeout: 5 * time.Second})

	_ = b.Execute(t.Context(), fail, nil)
	*now = now.Add(6 * time.Second)

	if err := b.Execute(t.Context(), fail, nil); !errors.Is(err, errUpstream) {
		t.Fatalf("expected trial error, got %v", err)
	}
	st := b.Stats()
	if st.State != Open {
		t.Fatalf("expected Open after failed trial, got %s", st.State)
	}
	if st.Failures != 2 {
		t.Fatalf("Failures = %d, want 2", st.Failures)
	}
	if !st.LastFailureAt.Equal(*now) {
		t.Fatalf("LastFailureAt = %v, want %v", st.LastFailureAt, *now)
	}

	// The reset window restarts from the failed trial.
	*now = now.Add(3 * time.Second)
	if err := b.Execute(t.Context(), succeed, nil); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
}

func TestResetTimeoutIsExclusive(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, ResetTimeout: 5 * time.Second})

	_ = b.Execute(t.Context(), fail, nil)
	*now = now.Add(5 * time.Second)

	if err := b.Execute(t.Context(), succeed, nil); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen exactly at the reset boundary, got %v", err)
	}
}

func TestHalfOpenAllowsSingleTrial(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, ResetTimeout: time.Second})

	_ = b.Execute(t.Context(), fail, nil)
	*now = now.Add(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var trials atomic.Int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(t.Context(), func(context.Context) error {
			trials.Add(1)
			close(started)
			<-release
			return nil
		}, nil)
	}()
	<-started

	for range 5 {
		err := b.Execute(t.Context(), func(context.Context) error {
			trials.Add(1)
			return nil
		}, nil)
		if !errors.Is(err, ErrOpen) {
			t.Fatalf("expected concurrent caller rejected during trial, got %v", err)
		}
	}

	close(release)
	wg.Wait()

	if n := trials.Load(); n != 1 {
		t.Fatalf("trial ran %d times, want 1", n)
	}
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %s", s)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, ResetTimeout: 5 * time.Second})

	_ = b.Execute(t.Context(), fail, nil)
	_ = b.Execute(t.Context(), fail, nil)
	_ = b.Execute(t.Context(), succeed, nil) // resets count
	if f := b.Stats().Failures; f != 0 {
		t.Fatalf("Failures = %d after success, want 0", f)
	}
	_ = b.Execute(t.Context(), fail, nil)
	_ = b.Execute(t.Context(), fail, nil)
	// Only 2 consecutive failures after reset, should still be Closed
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed, got %s", s)
	}
	if n := b.Stats().Successes; n != 1 {
		t.Fatalf("Successes = %d, want 1", n)
	}
}

func TestIsFailureClassifier(t *testing.T) {
	errNotFound := errors.New("not found")
	b, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNotFound) },
	})

	err := b.Execute(t.Context(), func(context.Context) error { return errNotFound }, nil)
	if !errors.Is(err, errNotFound) {
		t.Fatalf("expected error passed through, got %v", err)
	}
	if s := b.State(); s != Closed {
		t.Fatalf("non-failure error must not trip the breaker, got %s", s)
	}
}

func TestPanicReleasesTrial(t *testing.T) {
	b, now := newTestBreaker(Config{FailureThreshold: 1, ResetTimeout: time.Second})

	_ = b.Execute(t.Context(), fail, nil)
	*now = now.Add(2 * time.Second)

	func() {
		defer func() { _ = recover() }()
		_ = b.Execute(t.Context(), func(context.Context) error { panic("boom") }, nil)
	}()

	if s := b.State(); s != Open {
		t.Fatalf("expected Open after panicking trial, got %s", s)
	}
	*now = now.Add(2 * time.Second)
	if err := b.Execute(t.Context(), succeed, nil); err != nil {
		t.Fatalf("expected a new trial to be allowed, got %v", err)
	}
}

func TestOnStateChange(t *testing.T) {
	var transitions []string
	b, now := newTestBreaker(Config{
		Name:             "discord",
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, name+":"+from.String()+">"+to.String())
		},
	})

	_ = b.Execute(t.Context(), fail, nil)
	*now = now.Add(2 * time.Second)
	_ = b.Execute(t.Context(), succeed, nil)

	want := []string{"discord:closed>open", "discord:open>half-open", "discord:half-open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestDefaults(t *testing.T) {
	b := New(Config{})
	cfg := b.Config()
	if cfg.FailureThreshold != DefaultFailureThreshold || cfg.ResetTimeout != DefaultResetTimeout {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestSet(t *testing.T) {
	discord, _ := newTestBreaker(Config{Name: "discord", FailureThreshold: 1})
	database, _ := newTestBreaker(Config{Name: "database", FailureThreshold: 10})
	s := NewSet(discord, database)

	if !s.Healthy() {
		t.Fatal("expected healthy set")
	}
	if b, ok := s.Get("discord"); !ok || b != discord {
		t.Fatal("expected discord breaker")
	}

	_ = discord.Execute(t.Context(), fail, nil)
	if s.Healthy() {
		t.Fatal("expected degraded set with an Open breaker")
	}

	stats := s.Stats()
	if len(stats) != 2 || stats[0].Name != "database" || stats[1].Name != "discord" {
		t.Fatalf("unexpected stats order: %+v", stats)
	}
}
