package submit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliathlabs/bridge-tracker/internal/metrics"
)

// RetryPolicy reruns a submission a bounded number of times. Only
// transient errors earn another attempt; rejections and permanent
// errors surface immediately. One policy serves the approve, deposit,
// and burn flows.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	// BeforeRetry runs before each retry, giving the caller a chance to
	// re-verify provider readiness. Optional.
	BeforeRetry func(ctx context.Context)
	Logger      *zap.Logger
}

// Do runs fn up to 1+MaxRetries times
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if p.BeforeRetry != nil {
				p.BeforeRetry(ctx)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		class := Classify(err)
		if class != ClassTransient {
			return err
		}
		if attempt == p.MaxRetries {
			break
		}

		metrics.SubmissionRetries.WithLabelValues(string(class)).Inc()
		if p.Logger != nil {
			p.Logger.Debug("submission attempt failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}

	return lastErr
}
