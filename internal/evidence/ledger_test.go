package evidence_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/chainproof/compliance-copilot/internal/evidence"
	"go.uber.org/zap"
)

var ctx = context.Background()

func TestAppend_growsLedger(t *testing.T) {
	l := evidence.NewLedger(zap.NewNop())

	leaf := l.Append(ctx, "evidence-hash-1")
	if leaf == "" {
		t.Fatal("Append returned empty leaf hash")
	}
	if n := l.Len(ctx); n != 1 {
		t.Errorf("Len: got %d, want 1", n)
	}
}

func TestProof_roundTrip(t *testing.T) {
	l := evidence.NewLedger(zap.NewNop())
	for i := 0; i < 6; i++ {
		l.Append(ctx, fmt.Sprintf("ev-%d", i))
	}

	p, ok := l.Proof(ctx, "ev-3")
	if !ok {
		t.Fatal("no proof for ev-3")
	}
	if !l.VerifyProof(ctx, p) {
		t.Error("ledger rejected its own proof")
	}
	if p.RootHash != l.Root(ctx) {
		t.Error("proof root does not match ledger root")
	}
}

func TestMetricsRecorder_calledPerAppend(t *testing.T) {
	l := evidence.NewLedger(zap.NewNop())

	count := 0
	l.SetMetricsRecorder(func() { count++ })

	l.Append(ctx, "a")
	l.Append(ctx, "b")
	if count != 2 {
		t.Errorf("metrics recorder called %d times, want 2", count)
	}
}

func TestConcurrentAppendAndRead(t *testing.T) {
	l := evidence.NewLedger(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			l.Append(ctx, fmt.Sprintf("ev-%d", i))
		}(i)
		go func() {
			defer wg.Done()
			_ = l.Root(ctx)
		}()
	}
	wg.Wait()

	if n := l.Len(ctx); n != 8 {
		t.Errorf("Len after concurrent appends: got %d, want 8", n)
	}
	if root := l.Root(ctx); len(root) != 64 {
		t.Errorf("root is not 64 hex chars: %q", root)
	}
}

func TestExport_roundTrip(t *testing.T) {
	l := evidence.NewLedger(zap.NewNop())
	l.Append(ctx, "a")
	l.Append(ctx, "b")
	l.Append(ctx, "c")

	export := l.Export(ctx)
	if export.RootHash != l.Root(ctx) {
		t.Error("export root does not match ledger root")
	}
	if got := len(export.Leaves); got != 3 {
		t.Errorf("export leaves: got %d, want 3", got)
	}

	info := l.Info(ctx)
	if info.TotalLeaves != 3 {
		t.Errorf("Info.TotalLeaves: got %d, want 3", info.TotalLeaves)
	}
}
