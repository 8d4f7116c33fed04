package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/IvanBrykalov/cachesim/profiler"
	"github.com/IvanBrykalov/cachesim/sim"
	"github.com/IvanBrykalov/cachesim/trace"
)

var (
	mrcMaxObjects int64 // largest cache size in objects
	mrcStep       int64 // size step in objects
)

// mrcCmd computes the exact LRU curve from stack distances
var mrcCmd = &cobra.Command{
	Use:   "mrc",
	Short: "Compute the exact LRU miss-ratio curve (sizes in objects) in one pass",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := zipfCfg
		cfg.Seed = seed
		if err := runMRC(cmd.OutOrStdout(), cfg, mrcMaxObjects, mrcStep, format); err != nil {
			logrus.Fatalf("Profiling failed: %v", err)
		}
	},
}

func runMRC(out io.Writer, cfg trace.ZipfConfig, maxObjects, step int64, format string) error {
	r, err := trace.NewZipf(cfg)
	if err != nil {
		return err
	}
	if step == 0 {
		step = max(maxObjects/10, 1)
	}
	sizes, err := sim.StepSizes(maxObjects, step)
	if err != nil {
		return err
	}
	logrus.Infof("Profiling %d requests for %d sizes", cfg.Requests, len(sizes))
	curve, err := profiler.LRUMissRatioCurve(r, sizes)
	if err != nil {
		return err
	}
	return writeCurves(out, format, curve)
}

func init() {
	mrcCmd.Flags().Int64Var(&mrcMaxObjects, "max-objects", 10_000, "Largest cache size in objects")
	mrcCmd.Flags().Int64Var(&mrcStep, "step", 0, "Cache size step in objects (default max-objects/10)")
}
