package submit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{name: "wrapped rejection sentinel", err: fmt.Errorf("send: %w", ErrRejected), want: ClassRejected},
		{name: "eip-1193 code in message", err: errors.New("rpc error: code 4001"), want: ClassRejected},
		{name: "ethers action rejected", err: errors.New("ACTION_REJECTED: user rejected transaction"), want: ClassRejected},
		{name: "user denied", err: errors.New("MetaMask Tx Signature: User denied transaction signature"), want: ClassRejected},
		{name: "nonce error", err: errors.New("nonce too low"), want: ClassTransient},
		{name: "timeout", err: errors.New("request timeout after 10s"), want: ClassTransient},
		{name: "network error", err: errors.New("network error: dial tcp refused"), want: ClassTransient},
		{name: "connection reset", err: errors.New("connection reset by peer"), want: ClassTransient},
		{name: "provider hiccup", err: errors.New("provider not initialized"), want: ClassTransient},
		{name: "unexpected provider state", err: errors.New("unexpected response"), want: ClassTransient},
		{name: "context deadline", err: context.DeadlineExceeded, want: ClassTransient},
		{name: "wrapped deadline", err: fmt.Errorf("wait: %w", context.DeadlineExceeded), want: ClassTransient},
		{name: "revert is permanent", err: errors.New("execution reverted: insufficient funds"), want: ClassPermanent},
		{name: "arbitrary error is permanent", err: errors.New("boom"), want: ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryPolicyRejectedShortCircuits(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxRetries: 5}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return ErrRejected
	})

	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyTransientExhausts(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxRetries: 2}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyBeforeRetryHook(t *testing.T) {
	rechecks := 0
	calls := 0

	err := RetryPolicy{
		MaxRetries:  2,
		BeforeRetry: func(ctx context.Context) { rechecks++ },
	}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, rechecks, "readiness is re-verified before each retry")
}

func TestRetryPolicyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryPolicy{MaxRetries: 3}.Do(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls, "cancellation stops further attempts")
}
