package slugs

import (
	"encoding/json"
	"os"

	"github.com/mhofwell/claude-dashboard/internal/domain"
)

// LoadSnapshot reads the persisted directory-name -> slug map from the
// previous run. A missing or unreadable file yields an empty map so the
// first-ever run treats every directory as newly observed.
func LoadSnapshot(path string) domain.SlugMap {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SlugMap{}
	}
	var m domain.SlugMap
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.SlugMap{}
	}
	return m
}

// SaveSnapshot persists the current directory-name -> slug map so the
// next run can diff against it for rename detection (§4.6).
func SaveSnapshot(path string, m domain.SlugMap) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
