package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Kind is a closed classification of failures the retry policies understand.
// Boundary adapters map library-specific errors onto a Kind; the policies
// never inspect concrete error types themselves.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindRateLimit
	KindAuth
	KindGPUMemory
	KindGPURuntime
	KindFilePermission
	KindFileNotFound
	KindFileBusy
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "auth"
	case KindGPUMemory:
		return "gpu_memory"
	case KindGPURuntime:
		return "gpu_runtime"
	case KindFilePermission:
		return "file_permission"
	case KindFileNotFound:
		return "file_not_found"
	case KindFileBusy:
		return "file_busy"
	default:
		return "unknown"
	}
}

// Classifier maps an error to a Kind at a component boundary.
type Classifier func(error) Kind

// Policy retries an operation while its classified failure kind is in the
// retryable set. Delay grows as InitialDelay * Factor^(attempt-1). The last
// error is returned after MaxAttempts; non-retryable kinds return immediately.
type Policy struct {
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	Retryable    map[Kind]bool
	Classify     Classifier

	// OnRetry runs between a failed attempt and the next one. GPU callers
	// hang their cache-clear side effect here; the policy itself owns no
	// device state.
	OnRetry func(attempt int, err error)

	Log *logrus.Logger
}

// APIPolicy covers transient LLM/HTTP client failures.
func APIPolicy(classify Classifier) *Policy {
	return &Policy{
		Name:         "api",
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		Factor:       2.0,
		Retryable: map[Kind]bool{
			KindNetwork:   true,
			KindTimeout:   true,
			KindRateLimit: true,
		},
		Classify: classify,
	}
}

// GPUPolicy covers out-of-memory and generic runtime failures of
// GPU-backed model calls.
func GPUPolicy(classify Classifier) *Policy {
	return &Policy{
		Name:         "gpu",
		MaxAttempts:  2,
		InitialDelay: 2 * time.Second,
		Factor:       1.5,
		Retryable: map[Kind]bool{
			KindGPUMemory:  true,
			KindGPURuntime: true,
		},
		Classify: classify,
	}
}

// FilePolicy covers contention on local files and spawned media tools.
func FilePolicy(classify Classifier) *Policy {
	return &Policy{
		Name:         "file",
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		Factor:       1.5,
		Retryable: map[Kind]bool{
			KindFilePermission: true,
			KindFileBusy:       true,
			KindFileNotFound:   true,
		},
		Classify: classify,
	}
}

func (p *Policy) backoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.Multiplier = p.Factor
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	return bo
}

// Do runs op, retrying per the policy. Context cancellation stops the wait
// between attempts and returns ctx.Err().
func (p *Policy) Do(ctx context.Context, op func() error) error {
	bo := p.backoff()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		kind := KindUnknown
		if p.Classify != nil {
			kind = p.Classify(lastErr)
		}
		if !p.Retryable[kind] {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		if p.Log != nil {
			p.Log.WithFields(logrus.Fields{
				"policy":  p.Name,
				"attempt": attempt,
				"kind":    kind.String(),
			}).WithError(lastErr).Warn("retrying after failure")
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
	return lastErr
}

// DoWithFallback runs primary under the policy; once its retries are
// exhausted, fallback runs exactly once with no retries of its own.
func (p *Policy) DoWithFallback(ctx context.Context, primary, fallback func() error) error {
	err := p.Do(ctx, primary)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if p.Log != nil {
		p.Log.WithField("policy", p.Name).WithError(err).Warn("primary exhausted, invoking fallback")
	}
	return fallback()
}
