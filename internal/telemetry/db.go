// Package telemetry records the avoidance engine's per-cycle outputs to
// sqlite for later analysis and exposes admin debug routes over the
// database.
package telemetry

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/units"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS constraints (
			stamp TIMESTAMP,
			original_x DOUBLE,
			original_y DOUBLE,
			adapted_x DOUBLE,
			adapted_y DOUBLE,
			interfering BOOLEAN,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS fused_map (
			stamp TIMESTAMP,
			increment_deg DOUBLE,
			min_distance_cm INTEGER,
			max_distance_cm INTEGER,
			distances_cm TEXT,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS episodes (
			episode_id TEXT PRIMARY KEY,
			started_at TIMESTAMP,
			ended_at TIMESTAMP,
			hold_commanded BOOLEAN DEFAULT FALSE
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) RecordConstraints(c avoid.Constraints) error {
	_, err := db.Exec(
		"INSERT INTO constraints (stamp, original_x, original_y, adapted_x, adapted_y, interfering) VALUES (?, ?, ?, ?, ?, ?)",
		c.Stamp, c.Original.X, c.Original.Y, c.Adapted.X, c.Adapted.Y, c.Interfering)
	return err
}

func (db *DB) RecordFusedMap(m avoid.ObstacleMap) error {
	distances, err := json.Marshal(m.DistancesCM)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		"INSERT INTO fused_map (stamp, increment_deg, min_distance_cm, max_distance_cm, distances_cm) VALUES (?, ?, ?, ?, ?)",
		m.Stamp, m.IncrementDeg, m.MinDistanceCM, m.MaxDistanceCM, string(distances))
	return err
}

// BeginEpisode opens an interference episode and returns its ID.
func (db *DB) BeginEpisode(startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec("INSERT INTO episodes (episode_id, started_at) VALUES (?, ?)", id, startedAt)
	if err != nil {
		return "", err
	}
	return id, nil
}

// MarkHoldCommanded records that the failsafe fired during an episode.
func (db *DB) MarkHoldCommanded(episodeID string) error {
	_, err := db.Exec("UPDATE episodes SET hold_commanded = TRUE WHERE episode_id = ?", episodeID)
	return err
}

// EndEpisode closes an interference episode.
func (db *DB) EndEpisode(episodeID string, endedAt time.Time) error {
	_, err := db.Exec("UPDATE episodes SET ended_at = ? WHERE episode_id = ?", endedAt, episodeID)
	return err
}

type ConstraintEvent struct {
	Stamp       time.Time
	OriginalX   float64
	OriginalY   float64
	AdaptedX    float64
	AdaptedY    float64
	Interfering bool
}

func (e *ConstraintEvent) String() string {
	return fmt.Sprintf("Stamp: %s, Original: (%f, %f), Adapted: (%f, %f), Interfering: %t",
		e.Stamp.Format(time.RFC3339Nano), e.OriginalX, e.OriginalY, e.AdaptedX, e.AdaptedY, e.Interfering)
}

func (db *DB) ConstraintEvents(limit int) ([]ConstraintEvent, error) {
	rows, err := db.Query(
		"SELECT stamp, original_x, original_y, adapted_x, adapted_y, interfering FROM constraints ORDER BY stamp DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ConstraintEvent
	for rows.Next() {
		var e ConstraintEvent
		if err := rows.Scan(&e.Stamp, &e.OriginalX, &e.OriginalY, &e.AdaptedX, &e.AdaptedY, &e.Interfering); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

type FusedMapRow struct {
	Stamp         time.Time
	IncrementDeg  float64
	MinDistanceCM uint16
	MaxDistanceCM uint16
	DistancesCM   []uint16
}

// FusedMaps returns the most recent fused map snapshots, newest first.
func (db *DB) FusedMaps(limit int) ([]FusedMapRow, error) {
	rows, err := db.Query(
		"SELECT stamp, increment_deg, min_distance_cm, max_distance_cm, distances_cm FROM fused_map ORDER BY stamp DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var maps []FusedMapRow
	for rows.Next() {
		var m FusedMapRow
		var distances string
		if err := rows.Scan(&m.Stamp, &m.IncrementDeg, &m.MinDistanceCM, &m.MaxDistanceCM, &distances); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(distances), &m.DistancesCM); err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return maps, nil
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://avoid.db", db.DB, &tailsql.DBOptions{
		Label: "Avoidance DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("constraints", "Recent constraint decisions (?units=mps|mph|kmph)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := r.URL.Query().Get("units")
		if u == "" {
			u = units.MPS
		}
		if !units.IsValid(u) {
			http.Error(w, fmt.Sprintf("unknown units %q", u), http.StatusBadRequest)
			return
		}
		events, err := db.ConstraintEvents(500)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to load constraint events: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, e := range events {
			fmt.Fprintf(w, "%s original=(%.2f, %.2f) adapted=(%.2f, %.2f) %s interfering=%t\n",
				e.Stamp.Format(time.RFC3339Nano),
				units.ConvertSpeed(e.OriginalX, u), units.ConvertSpeed(e.OriginalY, u),
				units.ConvertSpeed(e.AdaptedX, u), units.ConvertSpeed(e.AdaptedY, u),
				u, e.Interfering)
		}
	}))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
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

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
