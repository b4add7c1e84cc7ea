package imagegen

import (
	"context"
	"errors"
	"testing"
	"time"

	"spellforge/poll"
)

func TestRunWithTimeout_Completes(t *testing.T) {
	got, err := RunWithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Errorf("got %d, %v", got, err)
	}
}

func TestRunWithTimeout_Expires(t *testing.T) {
	_, err := RunWithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	var te *poll.TimeoutError
	if !errors.As(err, &te) || te.Timeout != 20*time.Millisecond {
		t.Errorf("TimeoutError = %+v", te)
	}
}

func TestRunWithTimeout_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunWithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("parent cancellation must not be reported as a timeout")
	}
}

func TestRunWithTimeout_NoTimeout(t *testing.T) {
	_, err := RunWithTimeout(context.Background(), 0, func(ctx context.Context) (int, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Error("unexpected deadline")
		}
		return 0, nil
	})
	if err != nil {
		t.Errorf("err = %v", err)
	}
}
