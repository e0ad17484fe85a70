package telemetry

import (
	"log"

	"github.com/banshee-data/proximity.guard/internal/avoid"
)

// Recorder adapts a DB to the engine's publisher interface and tracks
// interference episodes across cycles. Recording failures are logged
// and never propagate into the control loop.
type Recorder struct {
	db *DB

	episodeID string
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) PublishObstacleMap(m avoid.ObstacleMap) {
	if err := r.db.RecordFusedMap(m); err != nil {
		log.Printf("telemetry: record fused map: %v", err)
	}
}

func (r *Recorder) PublishConstraints(c avoid.Constraints) {
	if err := r.db.RecordConstraints(c); err != nil {
		log.Printf("telemetry: record constraints: %v", err)
	}

	switch {
	case c.Interfering && r.episodeID == "":
		id, err := r.db.BeginEpisode(c.Stamp)
		if err != nil {
			log.Printf("telemetry: begin episode: %v", err)
			return
		}
		r.episodeID = id
	case !c.Interfering && r.episodeID != "":
		if err := r.db.EndEpisode(r.episodeID, c.Stamp); err != nil {
			log.Printf("telemetry: end episode: %v", err)
		}
		r.episodeID = ""
	}
}

func (r *Recorder) PublishCommand(cmd avoid.VehicleCommand) {
	if r.episodeID == "" {
		return
	}
	if err := r.db.MarkHoldCommanded(r.episodeID); err != nil {
		log.Printf("telemetry: mark hold commanded: %v", err)
	}
}
