package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"repeatscan/internal/report"
)

// Report is the summary written next to every run's exports.
type Report struct {
	RunID       string         `json:"run_id"`
	Source      string         `json:"source"`
	Mode        string         `json:"mode"`
	MinLength   int            `json:"min_length"`
	Thresholds  []int          `json:"thresholds"`
	Records     int            `json:"records"`
	Runes       int            `json:"runes"`
	SkippedRows int            `json:"skipped_rows"`
	Summary     report.Summary `json:"summary"`
	Outputs     []string       `json:"outputs"`
	Traces      any            `json:"traces,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type RunInfo struct {
	ID         uuid.UUID
	Root       string
	ReportPath string
	CSVPath    string
	JSONPath   string
	DBPath     string
}

// CreateRun allocates reports/<source-hash>/<run-id> under the workspace root.
func CreateRun(workspaceRoot, sourceName string) (*RunInfo, error) {
	id := uuid.New()
	runRoot := filepath.Join(workspaceRoot, "reports", sourceHash(sourceName), id.String())
	if err := os.MkdirAll(runRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &RunInfo{
		ID:         id,
		Root:       runRoot,
		ReportPath: filepath.Join(runRoot, "report.json"),
		CSVPath:    filepath.Join(runRoot, "matches.csv"),
		JSONPath:   filepath.Join(runRoot, "matches.json"),
		DBPath:     filepath.Join(runRoot, "findings.db"),
	}, nil
}

func SaveReport(path string, r Report) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func sourceHash(name string) string {
	trimmed := strings.TrimSpace(strings.ToLower(filepath.Base(name)))
	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:])[:12]
}
