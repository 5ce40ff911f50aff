package ga

import (
	"fmt"
	"io"
	"os"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// IterationStats summarizes the ranks of one iteration's population.
type IterationStats struct {
	Iteration int
	Best      float64
	Worst     float64
	Mean      float64
	Std       float64
	Duration  time.Duration
}

func newIterationStats[T any](iteration int, sorted []Ranked[T], d time.Duration) IterationStats {
	ranks := make([]float64, 0, len(sorted))
	for _, r := range sorted {
		// Invalid creatures are left out of the moments.
		if r.Rank != Worst {
			ranks = append(ranks, r.Rank)
		}
	}
	it := IterationStats{
		Iteration: iteration,
		Best:      sorted[0].Rank,
		Worst:     sorted[len(sorted)-1].Rank,
		Duration:  d,
	}
	if len(ranks) > 0 {
		it.Mean, it.Std = stat.MeanStdDev(ranks, nil)
		if len(ranks) == 1 {
			it.Std = 0
		}
	}
	return it
}

// Statistics records the progress of a run.
type Statistics struct {
	Iterations []IterationStats
	Total      time.Duration
}

// WriteTo writes one whitespace separated line per iteration preceded by a
// commented header.
func (s Statistics) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintln(w, "# iteration best worst mean std duration_ms")
	written := int64(n)
	if err != nil {
		return written, err
	}
	for _, it := range s.Iterations {
		n, err = fmt.Fprintf(w, "%d %g %g %g %g %d\n", it.Iteration, it.Best, it.Worst,
			it.Mean, it.Std, it.Duration.Milliseconds())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Save writes the statistics table to a file.
func (s Statistics) Save(path string) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fp.Close()
	if _, err := s.WriteTo(fp); err != nil {
		return fmt.Errorf("writing statistics: %w", err)
	}
	return fp.Close()
}

// SavePlot plots best and mean rank over iterations. The image format
// follows the file extension of path.
func (s Statistics) SavePlot(title, path string) error {
	if len(s.Iterations) == 0 {
		return fmt.Errorf("no iterations to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Rank"

	best := make(plotter.XYs, len(s.Iterations))
	mean := make(plotter.XYs, len(s.Iterations))
	for i, it := range s.Iterations {
		best[i].X, best[i].Y = float64(it.Iteration), it.Best
		mean[i].X, mean[i].Y = float64(it.Iteration), it.Mean
	}
	bestLine, err := plotter.NewLine(best)
	if err != nil {
		return err
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return err
	}
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(bestLine, meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Top = false
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
