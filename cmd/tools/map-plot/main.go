// Command map-plot renders recorded fused obstacle maps from the
// telemetry database as an HTML scatter plot (polar bins projected to
// XY, vehicle at the origin). Debugging aid for reviewing what the
// engine saw during a flight.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/proximity.guard/internal/avoid"
	"github.com/banshee-data/proximity.guard/internal/telemetry"
)

var (
	dbFile = flag.String("db", "avoid.db", "Telemetry database path")
	out    = flag.String("o", "map-plot.html", "Output HTML file")
	limit  = flag.Int("n", 200, "Number of most recent fused maps to plot")
)

func main() {
	flag.Parse()

	db, err := telemetry.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	maps, err := db.FusedMaps(*limit)
	if err != nil {
		log.Fatalf("Failed to load fused maps: %v", err)
	}
	if len(maps) == 0 {
		log.Fatal("No fused maps recorded")
	}

	// Project every known bin of every snapshot to XY. The third value
	// colors points by age rank: 0 is the newest snapshot.
	data := make([]opts.ScatterData, 0, len(maps)*avoid.NumBins)
	maxAbs := 0.0
	for rank, m := range maps {
		for i, cm := range m.DistancesCM {
			if cm == avoid.UnknownDistance {
				continue
			}
			bearing := (float64(i)*m.IncrementDeg + m.IncrementDeg/2) * math.Pi / 180
			rng := float64(cm) / 100
			x := rng * math.Cos(bearing)
			y := rng * math.Sin(bearing)
			if math.Abs(x) > maxAbs {
				maxAbs = math.Abs(x)
			}
			if math.Abs(y) > maxAbs {
				maxAbs = math.Abs(y)
			}
			data = append(data, opts.ScatterData{Value: []interface{}{x, y, rank}})
		}
	}
	if len(data) == 0 {
		log.Fatal("Every bin in every recorded map is unknown")
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Fused Obstacle Map (Polar->XY)", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fused Obstacle Map", Subtitle: fmt.Sprintf("snapshots=%d points=%d newest=%s", len(maps), len(data), maps[0].Stamp.Format("2006-01-02 15:04:05"))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(len(maps) - 1),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#fde725", "#6ece58", "#1f9e89", "#31688e", "#440154"}},
		}),
	)

	scatter.AddSeries("obstacles", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}
	defer f.Close()

	if err := scatter.Render(f); err != nil {
		log.Fatalf("Failed to render chart: %v", err)
	}
	log.Printf("Wrote %s", *out)
}
