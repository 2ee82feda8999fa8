package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/telemetry"
)

// TofuProvisioner drives the OpenTofu CLI. It implements Provisioner by
// shelling out to the binary with a rendered configuration directory as
// the working directory; no templating or discovery happens here.
type TofuProvisioner struct {
	// Binary is the executable to invoke. Defaults to "tofu".
	Binary string

	// Metrics records tool invocations when set.
	Metrics *telemetry.Metrics
}

// NewTofuProvisioner creates a provisioner using the default binary name.
func NewTofuProvisioner() *TofuProvisioner {
	return &TofuProvisioner{Binary: "tofu"}
}

// Plan runs init (idempotent) followed by plan.
func (p *TofuProvisioner) Plan(ctx context.Context, workDir string) error {
	if _, err := p.run(ctx, workDir, "init", "-input=false"); err != nil {
		return err
	}
	_, err := p.run(ctx, workDir, "plan", "-input=false")
	return err
}

// Apply provisions the infrastructure and parses the instance address from
// `tofu output -json`.
func (p *TofuProvisioner) Apply(ctx context.Context, workDir string) (InfraOutputs, error) {
	if _, err := p.run(ctx, workDir, "init", "-input=false"); err != nil {
		return InfraOutputs{}, err
	}
	if _, err := p.run(ctx, workDir, "apply", "-input=false", "-auto-approve"); err != nil {
		return InfraOutputs{}, err
	}
	out, err := p.run(ctx, workDir, "output", "-json")
	if err != nil {
		return InfraOutputs{}, err
	}
	return parseInfraOutputs(out)
}

// Destroy tears the infrastructure down. A destroy against already-absent
// infrastructure exits zero, which keeps the operation idempotent.
func (p *TofuProvisioner) Destroy(ctx context.Context, workDir string) error {
	if _, err := p.run(ctx, workDir, "init", "-input=false"); err != nil {
		return err
	}
	_, err := p.run(ctx, workDir, "destroy", "-input=false", "-auto-approve")
	return err
}

func (p *TofuProvisioner) run(ctx context.Context, workDir string, args ...string) (string, error) {
	binary := p.Binary
	if binary == "" {
		binary = "tofu"
	}

	log.Debug().
		Str("binary", binary).
		Strs("args", args).
		Str("dir", workDir).
		Msg("invoking infrastructure tool")

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	timer := telemetry.NewTimer()
	err := cmd.Run()
	if p.Metrics != nil {
		p.Metrics.RecordToolCall(binary, args[0], timer.Duration())
		if err != nil {
			p.Metrics.RecordToolError(binary, args[0])
		}
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &ToolError{
			Tool:     binary,
			Args:     args,
			ExitCode: exitCode,
			Output:   truncateOutput(stdout.String() + stderr.String()),
			Err:      err,
		}
	}
	return stdout.String(), nil
}

// tofuOutputValue is one entry of `tofu output -json`.
type tofuOutputValue struct {
	Value json.RawMessage `json:"value"`
}

// instanceAddressOutputs are the output names probed for the instance
// address, in order of preference.
var instanceAddressOutputs = []string{"instance_address", "instance_ip", "ip_address"}

func parseInfraOutputs(raw string) (InfraOutputs, error) {
	var outputs map[string]tofuOutputValue
	if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
		return InfraOutputs{}, fmt.Errorf("parse infrastructure outputs: %w", err)
	}

	for _, key := range instanceAddressOutputs {
		entry, ok := outputs[key]
		if !ok {
			continue
		}
		var addr string
		if err := json.Unmarshal(entry.Value, &addr); err != nil {
			return InfraOutputs{}, fmt.Errorf("parse output %q: %w", key, err)
		}
		if addr = strings.TrimSpace(addr); addr != "" {
			return InfraOutputs{InstanceAddress: addr}, nil
		}
	}
	return InfraOutputs{}, fmt.Errorf("infrastructure outputs contain no instance address (looked for %s)",
		strings.Join(instanceAddressOutputs, ", "))
}
