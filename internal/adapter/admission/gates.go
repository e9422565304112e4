package admission

/*
				Porter Admission - Model Gates
	GateRegistry bounds concurrent upstream requests per model with a
	counting gate (weighted semaphore). Gates are created lazily on the
	first request for a model name; creation is race-free so two callers
	hitting a brand new model observe the same gate instance rather than
	silently doubling its capacity.

	Acquire blocks until a slot frees up, honouring context cancellation -
	a cancelled wait consumes nothing. Models are fully independent: a
	saturated model never delays requests for another.
*/

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/semaphore"

	"github.com/thushan/porter/internal/logger"
)

type GateRegistry struct {
	gates    *xsync.Map[string, *semaphore.Weighted]
	logger   *logger.StyledLogger
	capacity int64
}

func NewGateRegistry(maxPerModel int, logger *logger.StyledLogger) *GateRegistry {
	return &GateRegistry{
		gates:    xsync.NewMap[string, *semaphore.Weighted](),
		capacity: int64(maxPerModel),
		logger:   logger,
	}
}

// Acquire obtains a slot on the model's gate, creating the gate on first
// use. Blocks until a slot is free or ctx is cancelled.
func (g *GateRegistry) Acquire(ctx context.Context, model string) (*GateSlot, error) {
	gate, _ := g.gates.LoadOrCompute(model, func() (*semaphore.Weighted, bool) {
		return semaphore.NewWeighted(g.capacity), false
	})

	if err := gate.Acquire(ctx, 1); err != nil {
		// cancelled while waiting - no slot was consumed
		return nil, err
	}

	g.logger.Debug("model gate acquired", "model", model)

	return &GateSlot{
		gate:   gate,
		model:  model,
		logger: g.logger,
	}, nil
}

// TrackedModels reports how many distinct models have gates. Gates are
// never removed; model catalogs are small and static in practice.
func (g *GateRegistry) TrackedModels() int {
	return g.gates.Size()
}

// GateSlot is a held slot on a model's gate. Release is idempotent so it
// can sit behind a defer on every exit path without double-freeing.
type GateSlot struct {
	gate     *semaphore.Weighted
	logger   *logger.StyledLogger
	model    string
	released atomic.Bool
}

func (s *GateSlot) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	s.gate.Release(1)
	s.logger.Debug("model gate released", "model", s.model)
}
