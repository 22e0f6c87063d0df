package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"repeatscan/internal/report"
)

type Run struct {
	ID        uuid.UUID
	Source    string
	Mode      string
	MinLength int
	CreatedAt time.Time
}

// PersistReport stores one run with its matches and occurrences in a single
// transaction. A run id that already exists is replaced.
func PersistReport(dbPath string, run Run, findings []report.Finding) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := run.ID.String()
	if _, err := tx.Exec(`DELETE FROM occurrences WHERE match_id IN (SELECT id FROM matches WHERE run_id = ?)`, id); err != nil {
		return fmt.Errorf("clear occurrences: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM matches WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clear run: %w", err)
	}

	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if _, err := tx.Exec(
		`INSERT INTO runs(id, source, mode, min_length, created_at) VALUES(?,?,?,?,?)`,
		id,
		run.Source,
		run.Mode,
		run.MinLength,
		created.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	matchStmt, err := tx.Prepare(`INSERT INTO matches(run_id, sequence, length, bucket, support) VALUES(?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare match insert: %w", err)
	}
	defer matchStmt.Close()
	occStmt, err := tx.Prepare(`INSERT INTO occurrences(match_id, record_id, source_row, label, text, start_offset) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare occurrence insert: %w", err)
	}
	defer occStmt.Close()

	for _, f := range findings {
		var bucket any
		if f.Bucket > 0 {
			bucket = f.Bucket
		}
		res, err := matchStmt.Exec(id, f.Match.Sequence, f.Match.Length, bucket, len(f.Match.Records))
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		matchID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("match last insert id: %w", err)
		}
		for _, occ := range f.Occurrences {
			if _, err := occStmt.Exec(matchID, occ.RecordID, occ.Row, occ.Label, occ.Text, occ.Offset); err != nil {
				return fmt.Errorf("insert occurrence: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
