package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const BaseDirName = "repeatscan-reports"

// EnsureAt creates the workspace layout under base and returns base.
func EnsureAt(base string) (string, error) {
	if base == "" {
		base = BaseDirName
	}
	p := filepath.Join(base, "reports")
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", p, err)
	}
	return base, nil
}
