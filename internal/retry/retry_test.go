package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("connection reset")

func fastPolicy(max int) *Policy {
	return &Policy{
		Name:         "test",
		MaxAttempts:  max,
		InitialDelay: time.Millisecond,
		Factor:       2.0,
		Retryable:    map[Kind]bool{KindNetwork: true},
		Classify:     func(error) Kind { return KindNetwork },
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := fastPolicy(3)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errFlaky
	})

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, errFlaky) {
		t.Fatalf("err = %v, want last error", err)
	}
}

func TestDoSucceedsMidway(t *testing.T) {
	p := fastPolicy(3)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errFlaky
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDoNonRetryablePropagates(t *testing.T) {
	p := fastPolicy(5)
	p.Classify = func(error) Kind { return KindAuth }

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errFlaky
	})

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, errFlaky) {
		t.Fatalf("err = %v", err)
	}
}

func TestDoOnRetryHookRunsBetweenAttempts(t *testing.T) {
	p := fastPolicy(3)

	hooks := 0
	p.OnRetry = func(attempt int, err error) { hooks++ }

	_ = p.Do(context.Background(), func() error { return errFlaky })

	if hooks != 2 {
		t.Fatalf("hooks = %d, want 2 (between 3 attempts)", hooks)
	}
}

func TestDoContextCancelStopsWaiting(t *testing.T) {
	p := fastPolicy(3)
	p.InitialDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error { return errFlaky })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDoWithFallback(t *testing.T) {
	p := fastPolicy(2)

	primary, fallback := 0, 0
	err := p.DoWithFallback(context.Background(),
		func() error { primary++; return errFlaky },
		func() error { fallback++; return nil },
	)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary != 2 || fallback != 1 {
		t.Fatalf("primary = %d fallback = %d, want 2 and 1", primary, fallback)
	}
}

func TestDoWithFallbackNotInvokedOnSuccess(t *testing.T) {
	p := fastPolicy(2)

	fallback := 0
	err := p.DoWithFallback(context.Background(),
		func() error { return nil },
		func() error { fallback++; return nil },
	)
	if err != nil || fallback != 0 {
		t.Fatalf("err = %v fallback = %d", err, fallback)
	}
}

func TestClassifyFile(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{errors.New("open /tmp/x: no such file or directory"), KindFileNotFound},
		{errors.New("permission denied"), KindFilePermission},
		{errors.New("resource busy"), KindFileBusy},
		{errors.New("something else"), KindUnknown},
	}
	for _, c := range cases {
		if got := ClassifyFile(c.err); got != c.want {
			t.Errorf("ClassifyFile(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestClassifyGPU(t *testing.T) {
	if got := ClassifyGPU(errors.New("CUDA out of memory")); got != KindGPUMemory {
		t.Fatalf("got %v, want KindGPUMemory", got)
	}
	if got := ClassifyGPU(errors.New("cuda runtime error")); got != KindGPURuntime {
		t.Fatalf("got %v, want KindGPURuntime", got)
	}
}
