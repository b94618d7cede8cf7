// Command vrrop-statsviz reads a pair of Stats CSV files (one for the
// image stream, one for odometry) and renders an HTML latency report
// (go-echarts) plus a PNG latency sparkline (gonum/plot), so an
// operator can eyeball a recorded session's jitter without a live
// server.
//
// Each input CSV has the header stamp_unix_nanos,size_bytes,latency_ms.
//
// Usage:
//
//	vrrop-statsviz -images=images_stats.csv -odometry=odometry_stats.csv -out=report.html -sparkline=latency.png
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	imagesCSV   = flag.String("images", "", "path to the images stream Stats CSV")
	odometryCSV = flag.String("odometry", "", "path to the odometry stream Stats CSV")
	outHTML     = flag.String("out", "report.html", "output path for the HTML latency chart")
	sparkline   = flag.String("sparkline", "", "optional output path for a PNG latency sparkline")
)

// sample is one row of a Stats CSV: a timestamped latency/size
// observation for either the image or odometry stream.
type sample struct {
	StampUnixNanos int64
	SizeBytes      int
	LatencyMS      float64
}

func readStatsCSV(path string) ([]sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	// records[0] is the header: stamp_unix_nanos,size_bytes,latency_ms
	out := make([]sample, 0, len(records)-1)
	for _, row := range records[1:] {
		if len(row) != 3 {
			continue
		}
		stamp, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad stamp_unix_nanos %q: %w", path, row[0], err)
		}
		size, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("%s: bad size_bytes %q: %w", path, row[1], err)
		}
		latency, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad latency_ms %q: %w", path, row[2], err)
		}
		out = append(out, sample{StampUnixNanos: stamp, SizeBytes: size, LatencyMS: latency})
	}
	return out, nil
}

func main() {
	flag.Parse()
	if *imagesCSV == "" || *odometryCSV == "" {
		log.Fatal("vrrop-statsviz: -images and -odometry are required")
	}

	images, err := readStatsCSV(*imagesCSV)
	if err != nil {
		log.Fatalf("vrrop-statsviz: %v", err)
	}
	odometry, err := readStatsCSV(*odometryCSV)
	if err != nil {
		log.Fatalf("vrrop-statsviz: %v", err)
	}

	if err := renderHTMLReport(*outHTML, images, odometry); err != nil {
		log.Fatalf("vrrop-statsviz: rendering HTML report: %v", err)
	}
	log.Printf("vrrop-statsviz: wrote %s", *outHTML)

	if *sparkline != "" {
		if err := renderSparkline(*sparkline, images, odometry); err != nil {
			log.Fatalf("vrrop-statsviz: rendering sparkline: %v", err)
		}
		log.Printf("vrrop-statsviz: wrote %s", *sparkline)
	}
}

func latencyLineData(samples []sample) []opts.LineData {
	data := make([]opts.LineData, 0, len(samples))
	for _, s := range samples {
		data = append(data, opts.LineData{Value: s.LatencyMS})
	}
	return data
}

func axisLabels(samples []sample) []string {
	labels := make([]string, 0, len(samples))
	for _, s := range samples {
		labels = append(labels, time.Unix(0, s.StampUnixNanos).UTC().Format("15:04:05.000"))
	}
	return labels
}

func renderHTMLReport(path string, images, odometry []sample) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "VRROP Stream Latency", Subtitle: fmt.Sprintf("images=%d odometry=%d samples", len(images), len(odometry))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latency (ms)"}),
	)

	labels := axisLabels(images)
	if len(odometry) > len(images) {
		labels = axisLabels(odometry)
	}
	line.SetXAxis(labels).
		AddSeries("images", latencyLineData(images)).
		AddSeries("odometry", latencyLineData(odometry))

	page := components.NewPage()
	page.AddCharts(line)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func renderSparkline(path string, images, odometry []sample) error {
	p := plot.New()
	p.Title.Text = "Image Latency"
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "latency (ms)"

	pts := make(plotter.XYs, len(images))
	for i, s := range images {
		pts[i] = plotter.XY{X: float64(i), Y: s.LatencyMS}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)

	return p.Save(8*vg.Inch, 2*vg.Inch, path)
}
