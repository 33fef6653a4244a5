package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ServiceManager abstracts the host's service manager (launchd on macOS)
// for step 5 of the open command and the final step of the close
// command. Shelling out to the host CLI (launchctl) mirrors the pack's
// own pattern for driving external tools it does not vendor a library
// for (deeklead-horde's doctor checks shell to `rl`/`hd`/`tmux`; see
// RepoFingerprintCheck.Fix in the teacher's doctor package).
type ServiceManager interface {
	// Registered reports whether the service definition already exists
	// in the user's service directory.
	Registered() bool
	// Register symlinks the exporter-owned service definition at
	// sourcePath into the user's service directory.
	Register(sourcePath string) error
	// Loaded reports whether the service manager currently has the
	// service loaded.
	Loaded() (bool, error)
	// Load asks the service manager to load the service definition.
	// Returns nil if it is already loaded.
	Load() error
	// Unload asks the service manager to unload the service definition.
	// Returns nil if it is not currently loaded.
	Unload() error
}

// launchdManager drives launchd via launchctl, matching macOS's standard
// per-user service manager.
type launchdManager struct {
	label       string // e.g. dev.claude-dashboard.exporter
	servicePath string // path to the definition under the user's service dir
}

// NewLaunchdManager returns a ServiceManager for the given launchd label,
// whose definition lives at servicePath (typically
// ~/Library/LaunchAgents/<label>.plist).
func NewLaunchdManager(label, servicePath string) ServiceManager {
	return &launchdManager{label: label, servicePath: servicePath}
}

func (m *launchdManager) Registered() bool {
	_, err := os.Lstat(m.servicePath)
	return err == nil
}

func (m *launchdManager) Register(sourcePath string) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("service definition source missing: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.servicePath), 0o755); err != nil {
		return fmt.Errorf("creating service directory: %w", err)
	}
	if err := os.Symlink(sourcePath, m.servicePath); err != nil && !os.IsExist(err) {
		return fmt.Errorf("symlinking service definition: %w", err)
	}
	return nil
}

func (m *launchdManager) Loaded() (bool, error) {
	out, err := exec.Command("launchctl", "list", m.label).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "Could not find") {
			return false, nil
		}
		return false, fmt.Errorf("launchctl list: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return true, nil
}

func (m *launchdManager) Load() error {
	loaded, err := m.Loaded()
	if err != nil {
		return err
	}
	if loaded {
		return nil
	}
	out, err := exec.Command("launchctl", "load", m.servicePath).CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "already loaded") {
			return nil
		}
		return fmt.Errorf("launchctl load: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (m *launchdManager) Unload() error {
	loaded, err := m.Loaded()
	if err != nil || !loaded {
		return nil
	}
	out, err := exec.Command("launchctl", "unload", m.servicePath).CombinedOutput()
	if err != nil {
		return fmt.Errorf("launchctl unload: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
