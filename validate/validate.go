// Package validate runs a validation batch: it assembles the modified
// sample, resolves which comparison basis is active, and processes each
// comparison to completion before starting the next.
package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"

	"modval_go/bed_methyl"
	"modval_go/config"
	"modval_go/ground_truth"
	"modval_go/mod_metrics"
	"modval_go/mod_sample"
)

// ErrNoBasis reports a run with neither control files nor ground truth
// files. This is the only configuration error that fails the run.
var ErrNoBasis = errors.New(
	"must provide either ground truth CSVs or control bed methyl files")

// Basis is the active comparison basis of a run.
type Basis int

const (
	BasisNone Basis = iota
	BasisControl
	BasisGroundTruth
)

// ResolveBasis applies the fixed precedence rule to a configuration:
// control files beat ground truth files, ground truth files beat
// valid-position restrictions. Conflicts resolve with a warning, never an
// error. The returned bool reports whether valid-position filtering stays
// in effect.
func ResolveBasis(haveControl, haveGroundTruth, haveValidPos bool, log *logrus.Logger) (Basis, bool) {
	if haveControl {
		if haveGroundTruth && log != nil {
			log.Warn("Cannot process both control data and ground truth data. Ignoring ground truth CSV.")
		}
		return BasisControl, haveValidPos
	}
	if haveGroundTruth {
		if haveValidPos && log != nil {
			log.Warn("Cannot process both ground truth data and valid sites. Ignoring valid sites.")
		}
		return BasisGroundTruth, false
	}
	return BasisNone, false
}

// Sink consumes per-comparison results. mod_report.Writer is the
// production implementation.
type Sink interface {
	WriteSummary(name string, res *mod_metrics.Result) error
	PlotDensity(name string, modVals, ctrlVals []float64) error
	PlotPR(name string, res *mod_metrics.Result) error
	PlotROC(name string, res *mod_metrics.Result) error
}

// Runner executes one batch.
type Runner struct {
	Opts   *config.Options
	Log    *logrus.Logger
	Report Sink
	Pick   mod_metrics.Picker
}

// Run processes the batch. It returns ErrNoBasis when no comparison basis
// was configured; parse failures abort immediately.
func (r *Runner) Run() error {
	opts := r.Opts

	basis, useValidPos := ResolveBasis(
		len(opts.ControlFiles) > 0,
		len(opts.GroundTruthFiles) > 0,
		len(opts.ValidPositions) > 0,
		r.Log)
	if basis == BasisNone {
		return ErrNoBasis
	}

	modSamp, err := r.parseSample(opts.ModifiedFiles, "Mod")
	if err != nil {
		return err
	}

	switch basis {
	case BasisControl:
		ctrlSamp, err := r.parseSample(opts.ControlFiles, "Control")
		if err != nil {
			return err
		}
		if !useValidPos {
			return r.compareSamples("sample", modSamp, ctrlSamp)
		}
		ignoreStrand := opts.StrandOffset != nil
		for _, vpFile := range opts.ValidPositions {
			validPos, err := bed_methyl.ParseBeds([]string{vpFile}, ignoreStrand)
			if err != nil {
				return err
			}
			err = r.compareSamples(
				filepath.Base(vpFile),
				modSamp.Restrict(validPos),
				ctrlSamp.Restrict(validPos))
			if err != nil {
				return err
			}
		}
	case BasisGroundTruth:
		tables, err := ground_truth.Parse(opts.GroundTruthFiles, opts.StrictGroundTruth)
		if err != nil {
			return err
		}
		for _, table := range tables {
			modVals, ctrlVals := splitByLabels(modSamp, table)
			if err := r.compare(filepath.Base(table.Source), modVals, ctrlVals); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) parseSample(paths []string, name string) (*mod_sample.Sample, error) {
	cov, modCov, err := bed_methyl.ParseBedMethyls(paths, r.Opts.StrandOffset)
	if err != nil {
		return nil, err
	}
	return mod_sample.New(name, cov, modCov, r.Opts.CoverageThreshold, r.Log), nil
}

func (r *Runner) compareSamples(name string, modSamp, ctrlSamp *mod_sample.Sample) error {
	return r.compare(name, modSamp.PctMod(), ctrlSamp.PctMod())
}

// splitByLabels extracts percent-modified values from the sample at every
// labeled position it covers, split into the two truth classes. Collapsed
// label entries match any strand of their contig; stranded entries only
// match a strand-partitioned sample.
func splitByLabels(samp *mod_sample.Sample, table ground_truth.Table) (modVals, ctrlVals []float64) {
	regions := make([]bed_methyl.Region, 0, len(table.Sites))
	for region := range table.Sites {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Contig != regions[j].Contig {
			return regions[i].Contig < regions[j].Contig
		}
		return regions[i].Strand < regions[j].Strand
	})

	for _, region := range regions {
		for _, site := range table.Sites[region] {
			cov, modCov, ok := samp.Lookup(region, site.Pos)
			if !ok || cov <= 0 {
				continue
			}
			pct := 100 * float64(modCov) / float64(cov)
			if site.IsMod {
				modVals = append(modVals, pct)
			} else {
				ctrlVals = append(ctrlVals, pct)
			}
		}
	}
	return modVals, ctrlVals
}

// compare runs the metric engine on one comparison and hands the results
// to the sink. An empty comparison is skipped with a notice; a figure
// rendering failure is logged and does not abort the batch.
func (r *Runner) compare(name string, modVals, ctrlVals []float64) error {
	if !r.Opts.AllowUnbalanced {
		modVals, ctrlVals = mod_metrics.Balance(modVals, ctrlVals, r.Pick)
	}
	res, err := mod_metrics.Evaluate(modVals, ctrlVals)
	if err != nil {
		if errors.Is(err, mod_metrics.ErrNoValidSites) {
			r.Log.Infof("Skipping %q. No valid sites available.", name)
			return nil
		}
		return err
	}

	if err := r.Report.WriteSummary(name, res); err != nil {
		return fmt.Errorf("writing summary for %s: %v", name, err)
	}

	r.Log.Infof("Plotting %s", name)
	if err := r.Report.PlotDensity(name, modVals, ctrlVals); err != nil {
		r.Log.Warnf("density plot for %s failed: %v", name, err)
	}
	if err := r.Report.PlotPR(name, res); err != nil {
		r.Log.Warnf("precision-recall plot for %s failed: %v", name, err)
	}
	if err := r.Report.PlotROC(name, res); err != nil {
		r.Log.Warnf("ROC plot for %s failed: %v", name, err)
	}
	return nil
}
