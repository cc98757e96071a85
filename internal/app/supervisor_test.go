package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logx "skladbot/pkg/logx"
)

func TestSupervisorErrorCancelsContext(t *testing.T) {
	sup := NewSupervisor(context.Background(), logx.Nop())
	boom := errors.New("boom")

	sup.Go("failing", func(ctx context.Context) error { return boom })

	select {
	case <-sup.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after error")
	}
	if err := sup.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v, want boom", err)
	}
}

func TestSupervisorRecoversPanic(t *testing.T) {
	sup := NewSupervisor(context.Background(), logx.Nop())

	sup.Go0("panicking", func(ctx context.Context) { panic("oops") })

	err := sup.Wait(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panic in panicking") {
		t.Fatalf("Wait = %v", err)
	}
}

func TestSupervisorCanceledErrorIgnored(t *testing.T) {
	sup := NewSupervisor(context.Background(), logx.Nop())

	sup.Go("blocking", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := sup.Stop(context.Background()); err != nil {
		t.Fatalf("Stop = %v, want nil", err)
	}
}

func TestSupervisorWaitTimeout(t *testing.T) {
	sup := NewSupervisor(context.Background(), logx.Nop())
	release := make(chan struct{})
	sup.Go0("stuck", func(ctx context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sup.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
	close(release)
	if err := sup.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait = %v", err)
	}
}
