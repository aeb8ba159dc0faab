// Command plot-session renders a saved session or trial artifact as a PNG
// sway plot and prints a summary of the recorded balance.
//
// Usage:
//
//	plot-session -db balance.db -id <artifact-id> -out session.png
//	plot-session -db balance.db -latest
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/balance.report/internal/artifact"
)

var (
	dbFile     = flag.String("db", "balance.db", "Path to the artifact database")
	artifactID = flag.String("id", "", "Artifact id to plot")
	latest     = flag.Bool("latest", false, "Plot the most recent artifact")
	outFile    = flag.String("out", "session.png", "Output PNG path")
)

func main() {
	flag.Parse()

	if *artifactID == "" && !*latest {
		fmt.Fprintln(os.Stderr, "either -id or -latest is required")
		flag.Usage()
		os.Exit(2)
	}

	store, err := artifact.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open artifact database: %v", err)
	}
	defer store.Close()

	id := *artifactID
	if *latest {
		list, err := store.ListArtifacts()
		if err != nil {
			log.Fatalf("failed to list artifacts: %v", err)
		}
		if len(list) == 0 {
			log.Fatal("no artifacts in the database")
		}
		id = list[0].ID
	}

	meta, snap, err := store.ReadArtifact(id)
	if err != nil {
		log.Fatalf("failed to read artifact: %v", err)
	}
	if snap.Rows() == 0 {
		log.Fatalf("artifact %s (%s) has no samples", meta.Name, meta.ID)
	}

	xs := snap.Fields["cog_x"]
	ys := snap.Fields["cog_y"]

	if err := renderSwayPlot(meta, xs, ys, *outFile); err != nil {
		log.Fatalf("failed to render plot: %v", err)
	}
	printSummary(meta, xs, ys)
	fmt.Printf("wrote %s\n", *outFile)
}

func renderSwayPlot(meta artifact.Artifact, xs, ys []float64, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (%s, %d samples)", meta.Name, meta.Kind, meta.RowCount)
	p.X.Label.Text = "COG X (cm)"
	p.Y.Label.Text = "COG Y (cm)"

	pts := make(plotter.XYs, len(xs))
	maxAbs := 1.0
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
		if a := math.Abs(xs[i]); a > maxAbs {
			maxAbs = a
		}
		if a := math.Abs(ys[i]); a > maxAbs {
			maxAbs = a
		}
	}
	// symmetric square axes so the sway shape reads true
	pad := maxAbs * 1.05
	p.X.Min, p.X.Max = -pad, pad
	p.Y.Min, p.Y.Max = -pad, pad

	path2d, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	path2d.Width = vg.Points(0.5)
	path2d.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	p.Add(path2d)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Radius = vg.Points(1.2)
	scatter.Color = color.RGBA{R: 110, G: 206, B: 88, A: 255}
	p.Add(scatter)

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

func printSummary(meta artifact.Artifact, xs, ys []float64) {
	meanX, stdX := stat.MeanStdDev(xs, nil)
	meanY, stdY := stat.MeanStdDev(ys, nil)
	pathLength := 0.0
	for i := 1; i < len(xs); i++ {
		pathLength += math.Hypot(xs[i]-xs[i-1], ys[i]-ys[i-1])
	}

	fmt.Printf("artifact %s (%s) created %s\n", meta.Name, meta.ID, meta.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  samples:     %d\n", meta.RowCount)
	fmt.Printf("  mean COG:    (%.2f, %.2f) cm\n", meanX, meanY)
	fmt.Printf("  sway stddev: (%.2f, %.2f) cm\n", stdX, stdY)
	fmt.Printf("  path length: %.1f cm\n", pathLength)
}
