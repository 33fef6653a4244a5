package procscan

import (
	"path/filepath"
	"strings"
)

// ProjectDir derives the on-disk project directory for a process's cwd:
// if cwd sits under orgRoot, the project directory is orgRoot's
// immediate child on the path to cwd, so monorepo subdirectories map to
// their containing project; otherwise cwd's own basename is returned as
// a best-effort fallback.
func ProjectDir(cwd, orgRoot string) string {
	if cwd == "" {
		return ""
	}
	clean := filepath.Clean(cwd)
	root := filepath.Clean(orgRoot)
	if !strings.HasPrefix(clean, root+string(filepath.Separator)) {
		return filepath.Base(clean)
	}
	rel := strings.TrimPrefix(clean, root+string(filepath.Separator))
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 0 || parts[0] == "" {
		return filepath.Base(clean)
	}
	return filepath.Join(root, parts[0])
}
