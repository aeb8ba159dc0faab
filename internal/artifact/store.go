// Package artifact persists exported sample snapshots to sqlite. Each
// export becomes one artifact row plus its sample rows, written in a single
// transaction so a failed save leaves nothing behind.
package artifact

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/balance.report/internal/monitoring"
	"github.com/banshee-data/balance.report/internal/sample"
)

// Artifact kinds.
const (
	KindSession = "session"
	KindTrial   = "trial"
)

type Store struct {
	*sql.DB
	path string
}

// Artifact is one saved export's metadata.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStore opens (creating if needed) the sqlite database at path. The
// schema is managed by migrations; call MigrateUp before first use.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, path: path}, nil
}

// DefaultName builds the conventional timestamp-suffixed artifact name,
// e.g. "session_20260823_141505".
func DefaultName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, now.Format("20060102_150405"))
}

// WriteArtifact stores the snapshot under a fresh uuid. The artifact row
// and all sample rows commit together or not at all.
func (s *Store) WriteArtifact(name, kind string, snap sample.Snapshot) (Artifact, error) {
	a := Artifact{
		ID:        uuid.NewString(),
		Name:      name,
		Kind:      kind,
		RowCount:  snap.Rows(),
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.Begin()
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to begin artifact transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO artifacts (id, name, kind, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Kind, a.RowCount, a.CreatedAt,
	); err != nil {
		return Artifact{}, fmt.Errorf("failed to insert artifact %q: %w", name, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO artifact_samples (
		artifact_id, seq, cog_x, cog_y, sensor1, sensor2, sensor3, sensor4, battery, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for seq, row := range snap.Matrix {
		if _, err := stmt.Exec(
			a.ID, seq,
			row[sample.ColCogX], row[sample.ColCogY],
			row[sample.ColSensor1], row[sample.ColSensor2],
			row[sample.ColSensor3], row[sample.ColSensor4],
			row[sample.ColBattery], row[sample.ColTimestamp],
		); err != nil {
			return Artifact{}, fmt.Errorf("failed to insert sample %d of %q: %w", seq, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Artifact{}, fmt.Errorf("failed to commit artifact %q: %w", name, err)
	}
	return a, nil
}

// ReadArtifact loads an artifact and its samples by id.
func (s *Store) ReadArtifact(id string) (Artifact, sample.Snapshot, error) {
	var a Artifact
	err := s.QueryRow(
		`SELECT id, name, kind, row_count, created_at FROM artifacts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Kind, &a.RowCount, &a.CreatedAt)
	if err != nil {
		return Artifact{}, sample.Snapshot{}, fmt.Errorf("failed to read artifact %s: %w", id, err)
	}

	rows, err := s.Query(
		`SELECT cog_x, cog_y, sensor1, sensor2, sensor3, sensor4, battery, timestamp
		 FROM artifact_samples WHERE artifact_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return Artifact{}, sample.Snapshot{}, err
	}
	defer rows.Close()

	buf := sample.NewBuffer(a.RowCount)
	for rows.Next() {
		var r [sample.Width]float64
		if err := rows.Scan(&r[0], &r[1], &r[2], &r[3], &r[4], &r[5], &r[6], &r[7]); err != nil {
			return Artifact{}, sample.Snapshot{}, err
		}
		buf.Put(sample.FromRow(r[:]))
	}
	if err := rows.Err(); err != nil {
		return Artifact{}, sample.Snapshot{}, err
	}
	return a, sample.TakeSnapshot(buf), nil
}

// ListArtifacts returns recent artifact metadata, newest first.
func (s *Store) ListArtifacts() ([]Artifact, error) {
	rows, err := s.Query(
		`SELECT id, name, kind, row_count, created_at FROM artifacts ORDER BY created_at DESC LIMIT 100`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &a.RowCount, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// AttachAdminRoutes mounts the tailsql browser and a backup endpoint under
// /debug/. These routes are for localhost/tailnet debugging only.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", s.path), s.DB, &tailsql.DBOptions{
		Label: "Balance DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := s.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
	return nil
}
