package loadgen

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"storegate/probe"
	"storegate/utils"
)

// Sample is one recorded request outcome.
type Sample struct {
	Scenario string
	Endpoint string
	Status   int
	Latency  time.Duration
	Failed   bool
}

// Engine runs a plan's stages against the configured targets and aggregates
// the per-request samples into a Report.
type Engine struct {
	plan *Plan
	// Seed fixes the workers' randomness for reproducible runs; zero seeds
	// from the clock.
	Seed int64
}

// NewEngine creates an engine for a validated plan.
func NewEngine(plan *Plan) *Engine {
	return &Engine{plan: plan}
}

// Ready verifies both target services answer HTTP before any load starts.
// A run against dead targets would only report its own connection errors.
func (e *Engine) Ready(ctx context.Context, attempts int, interval time.Duration) error {
	waiter := &probe.Waiter{Interval: interval, MaxAttempts: attempts}
	for _, base := range []string{e.plan.UserServiceURL, e.plan.ProductServiceURL} {
		checker := probe.NewHTTPChecker(base+"/health", interval)
		if _, err := waiter.Wait(ctx, checker); err != nil {
			return fmt.Errorf("target not ready: %w", err)
		}
	}
	return nil
}

// Run executes every stage in order and returns the aggregated report. A
// cancelled context ends the run early; the report still covers whatever
// completed, alongside the context error.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	seed := e.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	samples := make(chan Sample, 1024)
	report := newReport()
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for sample := range samples {
			report.observe(sample)
		}
	}()

	started := time.Now()
	var runErr error
	nextWorker := 0
	for i, stage := range e.plan.Stages {
		utils.LogInfo("Stage starting",
			"stage", i+1,
			"workers", stage.Workers,
			"duration", time.Duration(stage.Duration).String(),
		)
		stageCtx, cancel := context.WithTimeout(ctx, time.Duration(stage.Duration))
		group, groupCtx := errgroup.WithContext(stageCtx)
		for w := 0; w < stage.Workers; w++ {
			worker := newWorker(nextWorker, e.plan, seed+int64(nextWorker), samples)
			nextWorker++
			group.Go(func() error {
				worker.loop(groupCtx)
				return nil
			})
		}
		_ = group.Wait()
		cancel()

		if err := ctx.Err(); err != nil {
			utils.LogWarn("Run cancelled, stopping after stage", "stage", i+1)
			runErr = err
			break
		}
	}

	close(samples)
	<-collectorDone

	report.Elapsed = time.Since(started)
	report.finalize()
	return report, runErr
}
