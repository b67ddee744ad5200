package anchor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NoopAnchorer records anchored roots in memory and logs them instead of
// touching a chain. Used in development and tests when no RPC endpoint is
// configured.
type NoopAnchorer struct {
	mu     sync.RWMutex
	events []Event
	logger *zap.Logger
}

func NewNoopAnchorer(logger *zap.Logger) *NoopAnchorer {
	return &NoopAnchorer{logger: logger}
}

func (n *NoopAnchorer) AnchorRoot(_ context.Context, root string) (*Result, error) {
	canonical, err := NormalizeRoot(root)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	n.mu.Lock()
	n.events = append(n.events, Event{
		Root:       canonical,
		AnchoredBy: "noop",
		Timestamp:  now,
	})
	n.mu.Unlock()

	n.logger.Info("root anchored (noop)", zap.String("root", canonical))
	return &Result{Root: canonical, AnchoredAt: now}, nil
}

func (n *NoopAnchorer) Events(_ context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Event, 0, limit)
	for i := len(n.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, n.events[i])
	}
	return out, nil
}

func (n *NoopAnchorer) Health(_ context.Context) (*Health, error) {
	return &Health{Connected: true, ChainID: "noop", ContractVersion: "noop"}, nil
}
