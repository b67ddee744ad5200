package anchor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSubmitWithBackoffRetriesUntilSuccess(t *testing.T) {
	calls := 0
	want := "0x" + strings.Repeat("ab", 32)
	result, err := submitWithBackoff(context.Background(), 3, time.Millisecond, zap.NewNop(), func() (*Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rpc unavailable")
		}
		return &Result{Root: want}, nil
	})
	if err != nil {
		t.Fatalf("submitWithBackoff: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	if result.Root != want {
		t.Errorf("result root: got %q", result.Root)
	}
}

func TestSubmitWithBackoffExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("nonce too low")
	_, err := submitWithBackoff(context.Background(), 2, time.Millisecond, zap.NewNop(), func() (*Result, error) {
		calls++
		return nil, boom
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error should wrap the last attempt's failure, got %v", err)
	}
}

func TestSubmitWithBackoffHonorsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := submitWithBackoff(ctx, 3, time.Hour, zap.NewNop(), func() (*Result, error) {
		calls++
		return nil, errors.New("rpc unavailable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (no retry after cancellation)", calls)
	}
}
