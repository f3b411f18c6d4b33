package simulate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/progress"
)

// Runner walks a Plan depth first, creating one child node per unit and
// advancing the leaves.
type Runner struct {
	Plan Plan
	// StepDelay is slept before every leaf step.
	StepDelay time.Duration
	// ActivityEvery emits an Activity signal every N leaf steps; 0 disables it.
	ActivityEvery int
	Logger        *zap.Logger

	steps int
}

// NewRoot builds a root node sized for the runner's plan.
func (r *Runner) NewRoot(opts ...progress.Option) (*progress.Node, error) {
	if len(r.Plan) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPlan)
	}
	opts = append(opts, progress.WithDivisions(r.Plan[0]))
	root, err := progress.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("new root: %w", err)
	}
	return root, nil
}

// Run executes the plan against root. When ctx is cancelled the root is
// forced to completion and the context error is returned.
func (r *Runner) Run(ctx context.Context, root *progress.Node) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(r.Plan) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPlan)
	}
	r.steps = 0
	start := time.Now()
	if err := r.walk(ctx, root, r.Plan); err != nil {
		root.Done()
		logger.Warn("simulation aborted", zap.Int("steps", r.steps), zap.Error(err))
		return err
	}
	// A plan whose parts are all empty still completes the root.
	root.Done()
	logger.Info("simulation finished",
		zap.String("plan", r.Plan.String()),
		zap.Int("steps", r.steps),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (r *Runner) walk(ctx context.Context, node *progress.Node, levels Plan) error {
	n := levels[0]
	for i := 0; i < n; i++ {
		if len(levels) == 1 {
			if err := r.step(ctx, node); err != nil {
				return err
			}
			continue
		}
		child, err := node.CreateChild(fmt.Sprintf("part %d/%d", i+1, n), levels[1])
		if err != nil {
			return fmt.Errorf("create child: %w", err)
		}
		if err := r.walk(ctx, child, levels[1:]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) step(ctx context.Context, node *progress.Node) error {
	if err := sleep(ctx, r.StepDelay); err != nil {
		return err
	}
	r.steps++
	if r.ActivityEvery > 0 && r.steps%r.ActivityEvery == 0 {
		node.Activity()
	}
	node.Inc()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("simulation cancelled: %w", err)
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("simulation cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
