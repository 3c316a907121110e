package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const stampFile = "manifest.sha256"

// Receipt proves that the runtime environment was provisioned. The
// runner requires one before it will start the workload, which is what
// enforces the install-before-launch ordering.
type Receipt struct {
	ManifestHash string    `json:"manifest_hash"`
	Installed    bool      `json:"installed"` // false when the stamp matched and install was skipped
	CompletedAt  time.Time `json:"completed_at"`
}

// Provisioner installs the dependency manifest exactly when it changes.
// The manifest hash is stamped on disk after a successful install;
// while the stamp matches, Ensure is a no-op, so changed application
// code never re-triggers dependency installation.
type Provisioner struct {
	ManifestPath string
	StampDir     string
	Installer    Installer
}

// Ensure makes the Build Environment current and returns a receipt.
// An installer failure is fatal to startup: it aborts with an error and
// no stamp is written, so the next attempt installs again.
func (p *Provisioner) Ensure(ctx context.Context) (*Receipt, error) {
	if p.Installer == nil {
		return nil, fmt.Errorf("no installer configured")
	}

	manifest, err := LoadManifest(p.ManifestPath)
	if err != nil {
		return nil, err
	}
	hash := manifest.Hash()

	stampPath := filepath.Join(p.StampDir, stampFile)
	if prev, err := os.ReadFile(stampPath); err == nil {
		if strings.TrimSpace(string(prev)) == hash {
			return &Receipt{
				ManifestHash: hash,
				Installed:    false,
				CompletedAt:  time.Now(),
			}, nil
		}
	}

	if err := p.Installer.Install(ctx, manifest); err != nil {
		return nil, fmt.Errorf("dependency install failed: %w", err)
	}

	if err := p.writeStamp(stampPath, hash); err != nil {
		return nil, err
	}

	return &Receipt{
		ManifestHash: hash,
		Installed:    true,
		CompletedAt:  time.Now(),
	}, nil
}

func (p *Provisioner) writeStamp(path, hash string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create stamp directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hash+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write manifest stamp: %w", err)
	}
	return nil
}
