// Package mod_report renders the per-comparison outputs: a tab-delimited
// summary line and three diagnostic figures (percent-modified density,
// precision-recall curve, ROC curve) collected into one multi-page PDF.
package mod_report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"

	"modval_go/mod_metrics"
)

// PlotConfig carries the fixed rendering constants. They are shared across
// all comparisons of a run so the figures stay visually comparable, and
// passed explicitly rather than held in package state.
type PlotConfig struct {
	Bandwidth float64
	GridSize  int
	Width     vg.Length
	Height    vg.Length
}

// DefaultPlotConfig matches the constants of the upstream aggregation
// pipeline: bandwidth 1 percent, 1000 grid points.
func DefaultPlotConfig() PlotConfig {
	return PlotConfig{
		Bandwidth: 1.0,
		GridSize:  1000,
		Width:     8 * vg.Inch,
		Height:    7 * vg.Inch,
	}
}

// Writer appends summary lines to a report stream and figure pages to a
// PDF document. Both are append-only and owned by a single goroutine.
type Writer struct {
	out   io.Writer
	pdf   *vgpdf.Canvas
	cfg   PlotConfig
	pages int
}

// NewWriter builds a Writer over the report stream.
func NewWriter(out io.Writer, cfg PlotConfig) *Writer {
	return &Writer{
		out: out,
		pdf: vgpdf.New(cfg.Width, cfg.Height),
		cfg: cfg,
	}
}

// WriteSummary appends the tab-delimited metrics line for one comparison.
func (w *Writer) WriteSummary(name string, res *mod_metrics.Result) error {
	_, err := fmt.Fprintf(w.out,
		"Modified base metrics for %s:\t%.6f (at %.4f )\t%.6f\t%.6f\t%d\t%d\n",
		name, res.OptimalF1, res.OptimalThreshold, res.AvgPrecision,
		res.ROCAUC, res.NumMod, res.NumCtrl)
	return err
}

func (w *Writer) addPage(p *plot.Plot) {
	if w.pages > 0 {
		w.pdf.NextPage()
	}
	p.Draw(draw.New(w.pdf))
	w.pages++
}

// kde evaluates a Gaussian kernel density estimate on a regular grid
// spanning the data plus three bandwidths on either side.
func (w *Writer) kde(vals []float64) plotter.XYs {
	if len(vals) == 0 {
		return nil
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	lo -= 3 * w.cfg.Bandwidth
	hi += 3 * w.cfg.Bandwidth

	kernel := distuv.Normal{Mu: 0, Sigma: w.cfg.Bandwidth}
	step := (hi - lo) / float64(w.cfg.GridSize-1)
	pts := make(plotter.XYs, w.cfg.GridSize)
	for i := range pts {
		x := lo + step*float64(i)
		density := 0.0
		for _, v := range vals {
			density += kernel.Prob(x - v)
		}
		pts[i].X = x
		pts[i].Y = density / float64(len(vals))
	}
	return pts
}

// PlotDensity appends a page comparing the percent-modified distributions
// of the two classes.
func (w *Writer) PlotDensity(name string, modVals, ctrlVals []float64) error {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "Percent Modified"
	p.Y.Label.Text = "Density"
	p.Legend.Top = true

	classes := []struct {
		label string
		vals  []float64
		color color.RGBA
	}{
		{"Is Modified? Yes", modVals, color.RGBA{B: 255, A: 255}},
		{"Is Modified? No", ctrlVals, color.RGBA{R: 255, G: 100, B: 100, A: 255}},
	}
	for _, class := range classes {
		pts := w.kde(class.vals)
		if pts == nil {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Color = class.color
		line.LineStyle.Width = vg.Points(2)
		p.Add(line)
		p.Legend.Add(class.label, line)
	}

	w.addPage(p)
	return nil
}

// PlotPR appends the precision-recall curve as a post-step line.
func (w *Writer) PlotPR(name string, res *mod_metrics.Result) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s   Precision-Recall curve: AP=%.2f", name, res.AvgPrecision)
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = -0.05, 1.05
	p.Y.Min, p.Y.Max = -0.05, 1.05

	pts := make(plotter.XYs, len(res.Precision))
	for i := range res.Precision {
		pts[i].X = res.Recall[i]
		pts[i].Y = res.Precision[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.StepStyle = plotter.PostStep
	line.LineStyle.Color = color.RGBA{B: 200, A: 255}
	line.LineStyle.Width = vg.Points(2)
	p.Add(line)

	w.addPage(p)
	return nil
}

// PlotROC appends the ROC curve.
func (w *Writer) PlotROC(name string, res *mod_metrics.Result) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s   ROC curve: auc=%.2f", name, res.ROCAUC)
	p.X.Label.Text = "False Positive Rate"
	p.Y.Label.Text = "True Positive Rate"
	p.X.Min, p.X.Max = -0.05, 1.05
	p.Y.Min, p.Y.Max = -0.05, 1.05

	pts := make(plotter.XYs, len(res.FPR))
	for i := range res.FPR {
		pts[i].X = res.FPR[i]
		pts[i].Y = res.TPR[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Color = color.RGBA{R: 50, G: 100, B: 200, A: 255}
	line.LineStyle.Width = vg.Points(2)
	p.Add(line)

	w.addPage(p)
	return nil
}

// WritePDF writes the accumulated figure pages.
func (w *Writer) WritePDF(out io.Writer) error {
	_, err := w.pdf.WriteTo(out)
	return err
}
