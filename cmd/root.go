package cmd

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/workforce-sim/workforce-sim/coord"
	"github.com/workforce-sim/workforce-sim/coord/cache"
	"github.com/workforce-sim/workforce-sim/coord/metric"
	"github.com/workforce-sim/workforce-sim/coord/optimize"
	"github.com/workforce-sim/workforce-sim/coord/profile"
)

var (
	// CLI flags for the coordination optimizer
	logLevel           string        // Log verbosity level
	configPath         string        // Optional YAML coordination config
	simulationYears    int           // Number of simulation years to optimize across
	targetReductionPct float64       // Overhead-reduction goal in percent
	workerPoolSize     int           // Measurement worker pool size (0 = NumCPU)
	measureTimeout     time.Duration // Worker pool join timeout

	// CLI flags for resource recommendation
	employees int // Workforce size for the planned simulation
	planYears int // Planned simulation span in years
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "workforce-sim",
	Short: "Multi-year coordination core for the workforce simulator",
}

// loadConfig merges the optional config file over defaults, then applies
// flag overrides.
func loadConfig() coord.Config {
	cfg := coord.DefaultConfig()
	if configPath != "" {
		loaded, err := coord.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Unable to load coordination config: %v", err)
		}
		cfg = loaded
	}
	if targetReductionPct > 0 {
		cfg.Optimizer.TargetReductionPct = targetReductionPct
	}
	if workerPoolSize > 0 {
		cfg.Optimizer.WorkerPoolSize = workerPoolSize
	}
	if measureTimeout > 0 {
		cfg.Optimizer.MeasureTimeout = measureTimeout
	}
	return cfg
}

// optimizeCmd runs the full coordination optimization pass
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Measure, optimize, and grade coordination overhead",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := loadConfig()

		metrics := metric.NewMetrics()
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			logrus.Fatalf("Unable to register metrics: %v", err)
		}

		cm, err := cache.NewManager(cfg.Cache, cache.WithObserver(metric.NewCacheObserver(metrics)))
		if err != nil {
			logrus.Fatalf("Unable to build cache manager: %v", err)
		}
		prof := profile.NewProfiler(cfg.Profiler)
		prof.StartContinuousMonitoring()
		defer prof.StopContinuousMonitoring()

		opt := optimize.New(cfg.Optimizer, cm, prof)

		logrus.Infof("Starting coordination optimization over %d years (target %.1f%%)",
			simulationYears, cfg.Optimizer.TargetReductionPct)
		report, err := opt.Optimize(simulationYears)
		if err != nil {
			metrics.OptimizationRuns.WithLabelValues("failed").Inc()
			logrus.Fatalf("Optimization run failed: %v", err)
		}
		metrics.OptimizationRuns.WithLabelValues("succeeded").Inc()
		metrics.OverheadReductionPct.Set(report.ActualReductionPct)

		os.Stdout.WriteString(report.Summary())
	},
}

// recommendCmd prints resource-strategy advice for a planned simulation
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend memory and I/O strategy for a simulation size",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		ro := optimize.NewResourceOptimizer(nil)
		rec := ro.Recommend(optimize.SimulationParams{Employees: employees, Years: planYears})

		logrus.Infof("Projected working set: %.1f MB (available %.1f MB)", rec.ProjectedWorkingSetMB, rec.AvailableMemoryMB)
		logrus.Infof("Memory strategy      : %s", rec.Memory)
		logrus.Infof("Worker count         : %d", rec.Workers)
		logrus.Infof("Checkpoint cadence   : every %d years (compress=%v)", rec.CheckpointEveryYears, rec.CompressCheckpoints)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	optimizeCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	optimizeCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML coordination config")
	optimizeCmd.Flags().IntVar(&simulationYears, "years", 5, "Number of simulation years to optimize across")
	optimizeCmd.Flags().Float64Var(&targetReductionPct, "target-reduction", 0, "Overhead-reduction target percent (0 = config default)")
	optimizeCmd.Flags().IntVar(&workerPoolSize, "workers", 0, "Measurement worker pool size (0 = logical CPUs)")
	optimizeCmd.Flags().DurationVar(&measureTimeout, "measure-timeout", 0, "Worker pool join timeout (0 = config default)")

	recommendCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	recommendCmd.Flags().IntVar(&employees, "employees", 10000, "Workforce size for the planned simulation")
	recommendCmd.Flags().IntVar(&planYears, "years", 5, "Planned simulation span in years")

	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(recommendCmd)
}
