package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Installer installs a manifest into the runtime environment
type Installer interface {
	Install(ctx context.Context, m *Manifest) error
}

// PipInstaller shells out to the workload interpreter's pip. NoCache
// maps to --no-cache-dir so the package-manager cache is not retained
// between builds.
type PipInstaller struct {
	Python  string
	NoCache bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// Install runs `<python> -m pip install -r <manifest>`
func (p PipInstaller) Install(ctx context.Context, m *Manifest) error {
	python := p.Python
	if python == "" {
		python = "python"
	}

	args := []string{"-m", "pip", "install", "-r", m.Path}
	if p.NoCache {
		args = append(args, "--no-cache-dir")
	}

	cmd := exec.CommandContext(ctx, python, args...)
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pip install failed: %w", err)
	}
	return nil
}
