package daemon

import (
	"os"
	"path/filepath"
)

// Paths collects every on-disk location the daemon reads from or owns
// (§6). EventLog/ModelStats/StatsCache/SessionsRoot/OrgRoot are external
// and read-only; the rest are exclusively owned by this system (§3).
type Paths struct {
	EventLog          string
	ModelStats        string
	StatsCache        string
	SessionsRoot      string
	OrgRoot           string
	SlugSnapshot      string
	VisibilityCache   string
	PIDFile           string
}

// DefaultPaths returns the well-known locations under the per-user data
// directory the spec describes (§6): $FACILITY_DATA_DIR, defaulting to
// ~/.claude, for everything the agents themselves write, and
// $FACILITY_ORG_ROOT, defaulting to ~/code, for the directory tree whose
// immediate children are project working directories.
func DefaultPaths() Paths {
	home, _ := os.UserHomeDir()

	dataDir := os.Getenv("FACILITY_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(home, ".claude")
	}
	orgRoot := os.Getenv("FACILITY_ORG_ROOT")
	if orgRoot == "" {
		orgRoot = filepath.Join(home, "code")
	}

	return Paths{
		EventLog:        filepath.Join(dataDir, "events.log"),
		ModelStats:      filepath.Join(dataDir, "model-stats"),
		StatsCache:      filepath.Join(dataDir, "stats-cache.json"),
		SessionsRoot:    filepath.Join(dataDir, "projects"),
		OrgRoot:         orgRoot,
		SlugSnapshot:    filepath.Join(dataDir, ".slug-map.json"),
		VisibilityCache: filepath.Join(dataDir, ".visibility-cache.json"),
		PIDFile:         filepath.Join(dataDir, ".exporter.pid"),
	}
}
