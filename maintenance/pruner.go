// Package maintenance provides background services for offload storage.
//
// The Pruner deletes offloaded payloads once they outlive a retention
// period. Keys surfaced by a compaction stay registered after their object
// is pruned; reads of such keys fail with a storage error, not unknown_key.
package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/youssefsiam38/ctxoffload/storage"
)

// Default pruner configuration values
const (
	DefaultPruneInterval = 1 * time.Hour
	DefaultRetention     = 7 * 24 * time.Hour
)

// PrunerConfig holds configuration for the pruner.
type PrunerConfig struct {
	// Interval is how often to prune.
	// Default: 1 hour
	Interval time.Duration

	// Retention is how long an object is kept after its last write.
	// Default: 7 days
	Retention time.Duration

	// OnPrune is called after a pass that deleted at least one object.
	OnPrune func(count int)

	// OnError is called when a pass fails.
	OnError func(err error)

	// now is replaced in tests
	now func() time.Time
}

// DefaultPrunerConfig returns the default pruner configuration.
func DefaultPrunerConfig() *PrunerConfig {
	return &PrunerConfig{
		Interval:  DefaultPruneInterval,
		Retention: DefaultRetention,
	}
}

// PruneResult holds the results of one pruning pass.
type PruneResult struct {
	// Horizon is the cutoff; objects last written before it were deleted.
	Horizon time.Time

	// Deleted is the number of objects removed.
	Deleted int

	// Err is set when the pass failed. Deleted may still be non-zero.
	Err error
}

// Pruner periodically deletes expired objects from a blob backend.
type Pruner struct {
	target storage.Expirer
	config *PrunerConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewPruner creates a new pruner for target.
func NewPruner(target storage.Expirer, config *PrunerConfig) (*Pruner, error) {
	if config == nil {
		config = DefaultPrunerConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultPruneInterval
	}
	if config.Retention == 0 {
		config.Retention = DefaultRetention
	}
	if config.Retention < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRetention, config.Retention)
	}
	if config.now == nil {
		config.now = time.Now
	}

	return &Pruner{
		target: target,
		config: config,
	}, nil
}

// Start begins the pruning loop.
// It returns immediately and prunes in a goroutine.
func (p *Pruner) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	p.done = make(chan struct{})
	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)

	return nil
}

// Stop stops the pruning loop and waits for the current pass to finish.
func (p *Pruner) Stop(ctx context.Context) error {
	if !p.started.Load() {
		return ErrNotStarted
	}

	p.cancel()
	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.started.Store(false)
	return nil
}

// run is the main pruning loop.
func (p *Pruner) run(ctx context.Context) {
	defer close(p.done)

	// Prune immediately on start
	p.prune(ctx)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	result := p.RunOnce(ctx)

	if p.config.OnPrune != nil && result.Deleted > 0 {
		p.config.OnPrune(result.Deleted)
	}

	if p.config.OnError != nil && result.Err != nil && ctx.Err() == nil {
		p.config.OnError(result.Err)
	}
}

// RunOnce performs a single pruning pass and returns the result.
func (p *Pruner) RunOnce(ctx context.Context) *PruneResult {
	result := &PruneResult{Horizon: p.config.now().Add(-p.config.Retention)}

	deleted, err := p.target.DeleteBefore(ctx, result.Horizon)
	result.Deleted = deleted
	if err != nil {
		result.Err = fmt.Errorf("prune: %w", err)
	}
	return result
}

// IsRunning returns true if the pruner is running.
func (p *Pruner) IsRunning() bool {
	return p.started.Load()
}
