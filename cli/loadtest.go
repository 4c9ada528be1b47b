package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"storegate/config"
	"storegate/loadgen"
	"storegate/utils"
)

var (
	loadPlanPath string
	loadWorkers  int
	loadDuration time.Duration
	loadSeed     int64
	loadCSVPath  string
	loadSkipWait bool
)

func init() {
	loadtestCmd.Flags().StringVar(&loadPlanPath, "plan", "", "YAML plan file (default $LOAD_PLAN, else a built-in plan)")
	loadtestCmd.Flags().IntVar(&loadWorkers, "workers", 0, "override worker count (collapses the plan to one stage)")
	loadtestCmd.Flags().DurationVar(&loadDuration, "duration", 0, "override run duration (collapses the plan to one stage)")
	loadtestCmd.Flags().Int64Var(&loadSeed, "seed", 0, "fix the scenario randomness for reproducible runs")
	loadtestCmd.Flags().StringVar(&loadCSVPath, "csv", "", "also write the per-endpoint summary to this CSV file")
	loadtestCmd.Flags().BoolVar(&loadSkipWait, "skip-ready-check", false, "start load without probing the targets first")
	rootCmd.AddCommand(loadtestCmd)
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Run scripted load against a storefront deployment",
	Long: "loadtest drives the catalog, search, account, and restock journeys against\n" +
		"the two services and prints a per-endpoint latency report. The run fails\n" +
		"when the error rate breaches the plan's limit.",
	RunE: runLoadtest,
}

func runLoadtest(cmd *cobra.Command, args []string) error {
	utils.InitLogging("storegate")
	cfg := config.LoadLoadtestConfig()

	plan, err := resolvePlan(cfg)
	if err != nil {
		return err
	}

	// Environment base URLs override the plan; deployments set these per
	// target while the plan file stays shared.
	plan.UserServiceURL = config.GetEnvOrDefault("USER_SERVICE_URL", plan.UserServiceURL)
	plan.ProductServiceURL = config.GetEnvOrDefault("PRODUCT_SERVICE_URL", plan.ProductServiceURL)

	applyStageOverrides(plan, cfg)
	if err := plan.Validate(); err != nil {
		return err
	}

	engine := loadgen.NewEngine(plan)
	engine.Seed = loadSeed
	if !loadSkipWait {
		if err := engine.Ready(cmd.Context(), cfg.ReadyAttempts, cfg.ReadyInterval); err != nil {
			return err
		}
	}

	report, err := engine.Run(cmd.Context())
	if err != nil {
		return err
	}
	report.WriteText(cmd.OutOrStdout())

	if csvPath := firstNonEmpty(loadCSVPath, cfg.CSVPath); csvPath != "" {
		if err := writeCSVReport(report, csvPath); err != nil {
			return err
		}
		utils.LogInfo("CSV summary written", "path", csvPath)
	}

	if report.Exceeded(plan.ErrorRateLimit) {
		return fmt.Errorf("error rate %.2f%% exceeds limit %.2f%%",
			report.ErrorRate()*100, plan.ErrorRateLimit*100)
	}
	return nil
}

func resolvePlan(cfg *config.LoadtestConfig) (*loadgen.Plan, error) {
	path := firstNonEmpty(loadPlanPath, cfg.PlanPath)
	if path == "" {
		return loadgen.DefaultPlan(), nil
	}
	return loadgen.LoadPlan(path)
}

// applyStageOverrides collapses the plan to a single stage when the operator
// pins workers or duration on the command line.
func applyStageOverrides(plan *loadgen.Plan, cfg *config.LoadtestConfig) {
	workers := loadWorkers
	if workers == 0 {
		workers = cfg.Workers
	}
	duration := loadDuration
	if duration == 0 {
		duration = cfg.Duration
	}
	if workers == 0 && duration == 0 {
		return
	}

	stage := loadgen.Stage{Duration: loadgen.Duration(30 * time.Second), Workers: 5}
	if len(plan.Stages) > 0 {
		stage = plan.Stages[0]
	}
	if workers > 0 {
		stage.Workers = workers
	}
	if duration > 0 {
		stage.Duration = loadgen.Duration(duration)
	}
	plan.Stages = []loadgen.Stage{stage}
}

func writeCSVReport(report *loadgen.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := report.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
