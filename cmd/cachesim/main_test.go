package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/cachesim/config"
	"github.com/IvanBrykalov/cachesim/policy/registry"
	"github.com/IvanBrykalov/cachesim/sim"
	"github.com/IvanBrykalov/cachesim/trace"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func smallZipf() trace.ZipfConfig {
	return trace.ZipfConfig{Objects: 300, Requests: 3000, S: 1.2, V: 1, MinSize: 1, MaxSize: 4}
}

func TestExperimentFromFlags(t *testing.T) {
	zipfCfg = smallZipf()
	policies = []string{"lru", "slru:n_segments=2"}
	sizes, maxSize, sizeStep = nil, 200, 50
	t.Cleanup(func() { policies, maxSize, sizeStep = []string{"lru"}, 0, 0 })

	e, err := experiment()
	require.NoError(t, err)
	got, err := e.CacheSizes()
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 100, 150, 200}, got)
	require.Len(t, e.Policies, 2)
	assert.Equal(t, "slru:n_segments=2", e.Policies[1].String())

	policies = []string{"lru:bogus"}
	_, err = experiment()
	assert.Error(t, err)
}

func TestRunExperiment_TableAndMetrics(t *testing.T) {
	t.Parallel()

	wl := smallZipf()
	e := &config.Experiment{
		Seed:     1,
		Sizes:    []int64{64, 256},
		Workload: config.Workload{Zipf: &wl},
	}
	for _, text := range []string{"fifo", "arc"} {
		s, err := registry.Parse(text)
		require.NoError(t, err)
		e.Policies = append(e.Policies, s)
	}
	require.NoError(t, e.Validate())

	path := filepath.Join(t.TempDir(), "cachesim.prom")
	var out bytes.Buffer
	require.NoError(t, runExperiment(context.Background(), e, &out, "table", path))
	assert.Contains(t, out.String(), "arc")
	assert.Equal(t, 5, strings.Count(out.String(), "\n"), "header plus one line per point")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `cachesim_misses_total{cache_size="256",policy="arc"}`)
}

func TestRunExperiment_YAML(t *testing.T) {
	t.Parallel()

	wl := smallZipf()
	s, err := registry.Parse("lru")
	require.NoError(t, err)
	e := &config.Experiment{MaxSize: 100, SizeStep: 50, Workload: config.Workload{Zipf: &wl}}
	e.Policies = append(e.Policies, s)
	require.NoError(t, e.Validate())

	var out bytes.Buffer
	require.NoError(t, runExperiment(context.Background(), e, &out, "yaml", ""))
	var curves []sim.MissRatioCurve
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &curves))
	require.Len(t, curves, 1)
	require.Len(t, curves[0], 2)
	assert.Equal(t, int64(3000), curves[0][0].Requests)

	assert.Error(t, runExperiment(context.Background(), e, &out, "csv", ""))
}

func TestRunMRC(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, runMRC(&out, smallZipf(), 100, 25, "yaml"))
	var curves []sim.MissRatioCurve
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &curves))
	require.Len(t, curves, 1)
	c := curves[0]
	require.Len(t, c, 4)
	assert.Equal(t, int64(100), c[3].CacheSize)
	for i := 1; i < len(c); i++ {
		assert.LessOrEqual(t, c[i].Misses, c[i-1].Misses)
	}

	assert.Error(t, runMRC(&out, trace.ZipfConfig{}, 100, 25, "table"))
}
