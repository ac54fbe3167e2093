package cmd

import (
    "context"
    "github.com/aleph-zero/segstack/bench"
    "github.com/spf13/cobra"
    "github.com/spf13/viper"
    "log/slog"
    "os"
    "os/signal"
    "syscall"
)

var benchCmd = &cobra.Command{
    Use:   "bench",
    Short: "Benchmark the segmented stack",
    Long:  "Run a push/pop workload against the segmented stack and a slice-backed stack",
    RunE: func(cmd *cobra.Command, args []string) error {
        logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
        slog.SetDefault(logger)

        ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
        defer stop()

        config := bench.NewConfig(
            bench.WithWorkers(viper.GetInt("bench.workers")),
            bench.WithOperations(viper.GetInt("bench.operations")),
            bench.WithPopRatio(viper.GetFloat64("bench.pop-ratio")),
            bench.WithGroupSizes(viper.GetInt("bench.min-group-size"), viper.GetInt("bench.max-group-size")),
            bench.WithSeed(viper.GetInt64("bench.seed")))

        logger.InfoContext(ctx, "Running benchmark", "config", config)
        results, err := bench.Run(ctx, config)
        if err != nil {
            logger.ErrorContext(ctx, "Benchmark failed", "err", err)
            return err
        }
        return bench.Report(cmd.OutOrStdout(), results)
    },
}

func init() {
    rootCmd.AddCommand(benchCmd)

    defaults := bench.NewConfig()
    benchCmd.Flags().Int("bench.workers", defaults.Workers, "Concurrent workers, each with its own stack")
    benchCmd.Flags().Int("bench.operations", defaults.Operations, "Operations per worker")
    benchCmd.Flags().Float64("bench.pop-ratio", defaults.PopRatio, "Probability that an operation is a pop")
    benchCmd.Flags().Int("bench.min-group-size", 0, "Minimum group size (0 picks one per element size)")
    benchCmd.Flags().Int("bench.max-group-size", 0, "Maximum group size (0 means unbounded)")
    benchCmd.Flags().Int64("bench.seed", defaults.Seed, "Random seed")

    for _, name := range []string{"bench.workers", "bench.operations", "bench.pop-ratio",
        "bench.min-group-size", "bench.max-group-size", "bench.seed"} {
        viper.BindPFlag(name, benchCmd.Flags().Lookup(name))
    }
}
