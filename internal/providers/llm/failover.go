package llm

import (
	"context"

	"github.com/minuteflow/minuteflow/internal/retry"
)

// Failover composes two providers behind the API retry policy: the primary
// is retried per the policy, then the secondary is invoked exactly once.
type Failover struct {
	Primary   Provider
	Secondary Provider
	Policy    *retry.Policy
}

func NewFailover(primary, secondary Provider, policy *retry.Policy) *Failover {
	if policy == nil {
		policy = retry.APIPolicy(retry.ClassifyAPI)
	}
	return &Failover{Primary: primary, Secondary: secondary, Policy: policy}
}

func (f *Failover) Analyze(ctx context.Context, transcript, systemPrompt string) (*Analysis, error) {
	var out *Analysis
	err := f.do(ctx,
		func() error {
			a, err := f.Primary.Analyze(ctx, transcript, systemPrompt)
			out = a
			return err
		},
		func() error {
			a, err := f.Secondary.Analyze(ctx, transcript, systemPrompt)
			out = a
			return err
		},
	)
	return out, err
}

func (f *Failover) Chat(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	var out string
	err := f.do(ctx,
		func() error {
			s, err := f.Primary.Chat(ctx, messages, systemPrompt)
			out = s
			return err
		},
		func() error {
			s, err := f.Secondary.Chat(ctx, messages, systemPrompt)
			out = s
			return err
		},
	)
	return out, err
}

func (f *Failover) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := f.do(ctx,
		func() error {
			v, err := f.Primary.Embed(ctx, text)
			out = v
			return err
		},
		func() error {
			v, err := f.Secondary.Embed(ctx, text)
			out = v
			return err
		},
	)
	return out, err
}

func (f *Failover) do(ctx context.Context, primary, secondary func() error) error {
	if f.Secondary == nil {
		return f.Policy.Do(ctx, primary)
	}
	return f.Policy.DoWithFallback(ctx, primary, secondary)
}

func (f *Failover) Close() error {
	err := f.Primary.Close()
	if f.Secondary != nil {
		if err2 := f.Secondary.Close(); err == nil {
			err = err2
		}
	}
	return err
}
