package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/dynamic-graph-loadgen-go/loadgen"
)

// LoadPlan reads a run plan from a YAML file. An empty path returns loadgen.DefaultPlan.
// Unknown keys are rejected and the plan is validated.
func LoadPlan(path string) (loadgen.Plan, error) {
	if path == "" {
		return loadgen.DefaultPlan(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return loadgen.Plan{}, fmt.Errorf("read plan: %w", err)
	}

	return DecodePlan(bytes.NewReader(raw))
}

// DecodePlan decodes and validates a YAML run plan.
func DecodePlan(r io.Reader) (loadgen.Plan, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var plan loadgen.Plan
	if err := decoder.Decode(&plan); err != nil {
		return loadgen.Plan{}, fmt.Errorf("decode plan: %w", err)
	}

	if err := plan.Validate(); err != nil {
		return loadgen.Plan{}, err
	}

	return plan, nil
}

// WritePlan writes plan as YAML.
func WritePlan(w io.Writer, plan loadgen.Plan) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(plan); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}

	return encoder.Close()
}
