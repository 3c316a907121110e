package provision

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the pinned dependency declaration that must be installed
// into the runtime environment before the workload starts.
type Manifest struct {
	Path         string
	Requirements []string
}

type yamlManifest struct {
	Requirements []string `yaml:"requirements"`
}

// LoadManifest reads a manifest file. YAML files declare a
// `requirements` list; anything else is treated as plain requirement
// lines (pip style), with comments and blank lines stripped.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m := &Manifest{Path: path}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var parsed yamlManifest
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
		m.Requirements = cleanLines(parsed.Requirements)
	default:
		m.Requirements = cleanLines(strings.Split(string(data), "\n"))
	}

	if len(m.Requirements) == 0 {
		return nil, fmt.Errorf("manifest %s declares no requirements", path)
	}

	return m, nil
}

// Hash returns a stable digest of the declared requirements. Whitespace
// and comments do not affect the digest, so cosmetic edits never force a
// reinstall.
func (m *Manifest) Hash() string {
	h := sha256.New()
	for _, req := range m.Requirements {
		h.Write([]byte(req))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
