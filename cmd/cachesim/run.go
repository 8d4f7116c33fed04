package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/config"
	"github.com/IvanBrykalov/cachesim/metrics/prom"
	"github.com/IvanBrykalov/cachesim/policy/registry"
	"github.com/IvanBrykalov/cachesim/sim"
)

var (
	configPath     string   // experiment file; overrides the flags below
	policies       []string // registry specs, e.g. "slru:n_segments=2"
	sizes          []int64  // explicit cache sizes in bytes
	maxSize        int64    // largest cache size
	sizeStep       int64    // size step
	workers        int      // concurrent simulations
	warmupFraction float64  // trace share not counted
	checkInv       bool     // audit policies after every request
	metricsFile    string   // Prometheus textfile output
)

// runCmd simulates policies over a range of cache sizes
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate eviction policies and print their miss-ratio curves",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := experiment()
		if err != nil {
			logrus.Fatalf("Invalid experiment: %v", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := runExperiment(ctx, e, cmd.OutOrStdout(), format, metricsFile); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
	},
}

// experiment loads --config or assembles an experiment from flags.
func experiment() (*config.Experiment, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	wl := zipfCfg
	e := &config.Experiment{
		Seed:            seed,
		Workers:         workers,
		WarmupFraction:  warmupFraction,
		CheckInvariants: checkInv,
		Sizes:           sizes,
		MaxSize:         maxSize,
		SizeStep:        sizeStep,
		Workload:        config.Workload{Zipf: &wl},
	}
	for _, text := range policies {
		s, err := registry.Parse(text)
		if err != nil {
			return nil, err
		}
		e.Policies = append(e.Policies, s)
	}
	return e, e.Validate()
}

func runExperiment(ctx context.Context, e *config.Experiment, out io.Writer, format, metricsFile string) error {
	named, err := e.Named()
	if err != nil {
		return err
	}
	cacheSizes, err := e.CacheSizes()
	if err != nil {
		return err
	}
	r, err := e.Reader()
	if err != nil {
		return err
	}
	opt := e.Options()
	var reg *prometheus.Registry
	if metricsFile != "" {
		reg = prometheus.NewRegistry()
		opt.Metrics = func(label string, size int64) cache.Metrics {
			return prom.New(reg, "cachesim", "", prometheus.Labels{
				"policy":     label,
				"cache_size": strconv.FormatInt(size, 10),
			})
		}
	}

	logrus.Infof("Starting simulation: %d requests, %d policies, %d sizes", e.Workload.Zipf.Requests, len(named), len(cacheSizes))
	curves, err := sim.RunPolicies(ctx, named, r, cacheSizes, opt)
	if err != nil {
		return err
	}
	logrus.Info("Simulation complete.")

	if reg != nil {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		logrus.Debugf("Wrote metrics to '%s'", metricsFile)
	}
	return writeCurves(out, format, curves...)
}

func writeCurves(out io.Writer, format string, curves ...sim.MissRatioCurve) error {
	switch format {
	case "table":
		return sim.WriteTable(out, curves...)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(curves); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (table, yaml)", format)
	}
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Experiment YAML file (overrides workload, policy and size flags)")
	runCmd.Flags().StringSliceVar(&policies, "policy", []string{"lru"}, "Policy spec name[:key=value,...]; repeatable")
	runCmd.Flags().Int64SliceVar(&sizes, "sizes", nil, "Comma-separated cache sizes in bytes")
	runCmd.Flags().Int64Var(&maxSize, "max-size", 0, "Largest cache size in bytes (with --size-step)")
	runCmd.Flags().Int64Var(&sizeStep, "size-step", 0, "Cache size step in bytes (default max-size/10)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent simulations (0 = GOMAXPROCS)")
	runCmd.Flags().Float64Var(&warmupFraction, "warmup-fraction", 0, "Fraction of the trace processed before counting")
	runCmd.Flags().BoolVar(&checkInv, "check-invariants", false, "Audit policy state after every request (slow)")
	runCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")
}
