package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/config"
	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
)

func Test_LoadPlan_EmptyPathReturnsDefaultPlan(t *testing.T) {
	plan, err := config.LoadPlan("")

	require.NoError(t, err)
	assert.Equal(t, loadgen.DefaultPlan(), plan)
}

func Test_LoadPlan_ReadsWrittenPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")

	var buf bytes.Buffer
	require.NoError(t, config.WritePlan(&buf, loadgen.DefaultPlan()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	plan, err := config.LoadPlan(path)

	require.NoError(t, err)
	assert.Equal(t, loadgen.DefaultPlan(), plan)
}

func Test_WritePlan_UsesSnakeCaseKeys(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, config.WritePlan(&buf, loadgen.DefaultPlan()))

	assert.Contains(t, buf.String(), "vertex_labels: 104")
	assert.Contains(t, buf.String(), "fan_out: 100")
	assert.Contains(t, buf.String(), "kind: delete-vertices")
}

func Test_DecodePlan_ReadsHandWrittenPlan(t *testing.T) {
	plan, err := config.DecodePlan(strings.NewReader(`
workers: 2
vertex_labels: 4
edge_labels: 2
fan_out: 10
setup:
  - kind: add-vertices
    batches: 3
    iterations: 5
cycles: 1
cycle:
  - kind: delete-vertices
    batches: 1
    iterations: 2
`))

	require.NoError(t, err)
	assert.Equal(t, 2, plan.Workers)
	assert.Equal(t, 10, plan.FanOut)
	assert.Equal(t, []loadgen.PhaseSpec{{Kind: loadgen.PhaseAddVertices, Batches: 3, Iterations: 5}}, plan.Setup)
	assert.Equal(t, 4, plan.Batches())
}

func Test_DecodePlan_RejectsUnknownKeys(t *testing.T) {
	_, err := config.DecodePlan(strings.NewReader("workers: 2\nfanout: 10\n"))

	assert.ErrorContains(t, err, "fanout")
}

func Test_DecodePlan_RejectsInvalidPlan(t *testing.T) {
	_, err := config.DecodePlan(strings.NewReader("workers: 3\nvertex_labels: 4\nedge_labels: 3\nfan_out: 1\n"))

	assert.ErrorIs(t, err, loadgen.ErrInvalidPlan)
}

func Test_LoadPlan_MissingFile(t *testing.T) {
	_, err := config.LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}
