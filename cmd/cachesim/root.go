package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/cachesim/trace"
)

var (
	// CLI flags shared by run and mrc
	logLevel string           // log verbosity
	seed     int64            // workload and policy seed
	zipfCfg  trace.ZipfConfig // synthetic workload
	format   string           // output format: table or yaml
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cachesim",
	Short: "Cache eviction policy simulator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addWorkloadFlags registers the Zipf workload flags on cmd.
func addWorkloadFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&zipfCfg.Objects, "objects", 100_000, "Number of distinct objects")
	cmd.Flags().IntVar(&zipfCfg.Requests, "requests", 1_000_000, "Number of requests")
	cmd.Flags().Float64Var(&zipfCfg.S, "zipf-s", 1.1, "Zipf exponent (> 1)")
	cmd.Flags().Float64Var(&zipfCfg.V, "zipf-v", 1, "Zipf offset (>= 1)")
	cmd.Flags().Uint32Var(&zipfCfg.MinSize, "min-object-size", 1, "Minimum object size in bytes")
	cmd.Flags().Uint32Var(&zipfCfg.MaxSize, "max-object-size", 1, "Maximum object size in bytes")
	cmd.Flags().Int32Var(&zipfCfg.TTL, "ttl", 0, "TTL of every request (0 = none)")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed for the workload and randomized policies")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, yaml)")

	addWorkloadFlags(runCmd)
	addWorkloadFlags(mrcCmd)
	rootCmd.AddCommand(runCmd, mrcCmd)
}
