package app

import (
	"context"
	"fmt"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"
)

const defaultCheckInterval = time.Second

type task struct {
	fn   func(*Controller)
	done chan struct{}
}

// RunnerConfig configures the event loop.
type RunnerConfig struct {
	CheckInterval time.Duration
	// Planner is optional. When set it is consulted on every tick before
	// the barrier check.
	Planner ports.EntryPlanner
}

// Runner is the single sequential queue in front of a Controller. Gateway
// events, periodic checks and caller tasks are all executed on the Run
// goroutine, one at a time.
type Runner struct {
	controller *Controller
	events     <-chan domain.Event
	cfg        RunnerConfig
	logger     ports.Logger
	tasks      chan task
}

// NewRunner wires a controller to an event source.
func NewRunner(controller *Controller, events <-chan domain.Event, cfg RunnerConfig, logger ports.Logger) (*Runner, error) {
	if controller == nil || events == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Runner")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	return &Runner{
		controller: controller,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		tasks:      make(chan task),
	}, nil
}

// Run processes events, ticks and tasks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info(ctx, "Runner started", map[string]interface{}{"checkInterval": r.cfg.CheckInterval.String()})
	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()

	events := r.events
	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "Runner stopped")
			return nil
		case ev, ok := <-events:
			if !ok {
				r.logger.Warn(ctx, "Runner: Event channel closed, continuing with ticks only")
				events = nil
				continue
			}
			r.controller.HandleEvent(ctx, ev)
		case <-ticker.C:
			r.tick(ctx)
		case t := <-r.tasks:
			t.fn(r.controller)
			close(t.done)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if r.cfg.Planner != nil {
		r.controller.TryEnter(ctx, r.cfg.Planner)
	}
	r.controller.CheckOrders(ctx)
}

// Do runs fn on the Run goroutine and waits for it to finish.
func (r *Runner) Do(ctx context.Context, fn func(*Controller)) error {
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case r.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
