package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/progress-tree/internal/clock/system"
	"github.com/JakeFAU/progress-tree/internal/id/uuid"
	"github.com/JakeFAU/progress-tree/internal/progress"
	"github.com/JakeFAU/progress-tree/internal/simulate"
)

// newSimulateCmd creates the 'simulate' subcommand, which runs a synthetic
// nested workload and reports its progress through the app's sinks.
func newSimulateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic nested workload",
		Long: `Runs a plan such as 3x4x10 (3 parts, each split into 4 parts of 10 steps)
against a progress tree. Percent, title, activity and done records flow to the
log, Prometheus and snapshot sinks; with --server-addr they can be watched live.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd.Context())
		},
	}
	flags := cmd.Flags()
	flags.String("plan", "", "division counts from root to leaves, e.g. 3x4x10")
	flags.String("title", "", "root title")
	flags.Duration("step-delay", 0, "delay before every leaf step")
	flags.Int("activity-every", 0, "emit an activity signal every N leaf steps")
	flags.String("server-addr", "", "serve /healthz, /metrics and /v1/runs on this address")
	flags.Duration("linger", 0, "keep the status server up this long after the run finishes")

	for key, flag := range map[string]string{
		"simulate.plan":           "plan",
		"simulate.title":          "title",
		"simulate.step_delay":     "step-delay",
		"simulate.activity_every": "activity-every",
		"simulate.linger":         "linger",
		"server.addr":             "server-addr",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func runSimulate(ctx context.Context) error {
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	plan, err := simulate.ParsePlan(cfg.Simulate.Plan)
	if err != nil {
		return fmt.Errorf("parse plan: %w", err)
	}
	runner := &simulate.Runner{
		Plan:          plan,
		StepDelay:     cfg.Simulate.StepDelay,
		ActivityEvery: cfg.Simulate.ActivityEvery,
		Logger:        logger,
	}
	root, err := runner.NewRoot(
		progress.WithTitle(cfg.Simulate.Title),
		progress.WithSeparator(cfg.Progress.Separator),
		progress.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	runID, err := uuid.New().NewRunID()
	if err != nil {
		return err
	}
	fwd, err := progress.Forward(root, runID, appInstance.GetEmitter(), system.New())
	if err != nil {
		return err
	}
	defer fwd.Stop()

	logger.Info("simulation started",
		zap.String("run_id", runID.String()),
		zap.String("plan", plan.String()),
		zap.Int("steps", plan.Steps()),
	)
	if err := runner.Run(ctx, root); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("simulation interrupted", zap.String("run_id", runID.String()))
			return nil
		}
		return fmt.Errorf("run simulation: %w", err)
	}
	return linger(ctx, cfg.Simulate.Linger)
}

func linger(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
