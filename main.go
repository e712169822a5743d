package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"

	"modval_go/config"
	"modval_go/mod_metrics"
	"modval_go/mod_report"
	"modval_go/validate"
)

func main() {
	app := &cli.App{
		Name:            "modval",
		Usage:           "Validate aggregated per-position modified base calls against a control sample or ground truth",
		HideHelpCommand: true,
		Version:         config.Version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "modified-bed-methyl-files",
				Aliases:  []string{"m"},
				Usage:    "Bed methyl files from modified sample(s)",
				Category: "Required",
			},
			&cli.StringSliceFlag{
				Name:     "ground-truth-csvs",
				Aliases:  []string{"g"},
				Usage:    "Ground truth csvs with (contig, strand, pos, is_mod) values. To collapse to forward strand coordinates, strand should be '.'",
				Category: "Comparison basis",
			},
			&cli.StringSliceFlag{
				Name:     "control-bed-methyl-files",
				Aliases:  []string{"c"},
				Usage:    "Bed methyl files from control sample(s)",
				Category: "Comparison basis",
			},
			&cli.StringSliceFlag{
				Name:     "valid-positions",
				Usage:    "BED file containing positions to be considered. Multiple files may be provided",
				Category: "Optional",
			},
			&cli.IntFlag{
				Name:     "coverage-threshold",
				Value:    1,
				Usage:    "Only include sites with sufficient coverage. Default: 1 (= all sites)",
				Category: "Optional",
			},
			&cli.Int64Flag{
				Name:     "strand-offset",
				Usage:    "Offset to combine stranded results. Positive value indicates reverse strand sites have higher position values. Default treat strands independently",
				Category: "Optional",
			},
			&cli.BoolFlag{
				Name:     "allow-unbalance-classes",
				Usage:    "Allow unbalanced classes in modified base metric computation. Default: balance the size of the modified and canonical classes for each comparison",
				Category: "Optional",
			},
			&cli.BoolFlag{
				Name:     "strict-ground-truth",
				Usage:    "Fail on unrecognized is_modified values instead of treating them as unmodified",
				Category: "Optional",
			},
			&cli.StringFlag{
				Name:     "out-pdf",
				Value:    config.DefaultOutPDF,
				Usage:    "Output pdf filename",
				Category: "Optional",
			},
			&cli.StringFlag{
				Name:     "out-filename",
				Usage:    "Output filename for text summary. Default: stdout",
				Category: "Optional",
			},
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Configuration file (YAML) with the same options; command line flags take precedence",
				Category: "Optional",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.New().Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	opts, err := buildOptions(cCtx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if len(opts.ModifiedFiles) == 0 {
		return cli.Exit("at least one modified bed methyl file is required", 1)
	}

	reportOut := os.Stdout
	if opts.OutFilename != "" {
		reportOut, err = os.Create(opts.OutFilename)
		if err != nil {
			return cli.Exit("failed to create the output file: "+err.Error(), 1)
		}
		defer reportOut.Close()
	}

	report := mod_report.NewWriter(reportOut, mod_report.DefaultPlotConfig())
	runner := &validate.Runner{
		Opts:   opts,
		Log:    log,
		Report: report,
		Pick:   mod_metrics.RandomPicker(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
	if err := runner.Run(); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	pdfOut, err := os.Create(opts.OutPDF)
	if err != nil {
		return cli.Exit("failed to create the pdf file: "+err.Error(), 1)
	}
	defer pdfOut.Close()
	if err := report.WritePDF(pdfOut); err != nil {
		return cli.Exit("failed to write the pdf file: "+err.Error(), 1)
	}
	return nil
}

// buildOptions layers the command line flags over the optional YAML config
// file over the defaults.
func buildOptions(cCtx *cli.Context) (*config.Options, error) {
	opts := config.Default()
	if cCtx.IsSet("config") {
		loaded, err := config.Load(cCtx.String("config"))
		if err != nil {
			return nil, err
		}
		opts = loaded
	}

	if cCtx.IsSet("modified-bed-methyl-files") {
		opts.ModifiedFiles = cCtx.StringSlice("modified-bed-methyl-files")
	}
	if cCtx.IsSet("ground-truth-csvs") {
		opts.GroundTruthFiles = cCtx.StringSlice("ground-truth-csvs")
	}
	if cCtx.IsSet("control-bed-methyl-files") {
		opts.ControlFiles = cCtx.StringSlice("control-bed-methyl-files")
	}
	if cCtx.IsSet("valid-positions") {
		opts.ValidPositions = cCtx.StringSlice("valid-positions")
	}
	if cCtx.IsSet("coverage-threshold") {
		opts.CoverageThreshold = cCtx.Int("coverage-threshold")
	}
	if cCtx.IsSet("strand-offset") {
		offset := cCtx.Int64("strand-offset")
		opts.StrandOffset = &offset
	}
	if cCtx.IsSet("allow-unbalance-classes") {
		opts.AllowUnbalanced = cCtx.Bool("allow-unbalance-classes")
	}
	if cCtx.IsSet("strict-ground-truth") {
		opts.StrictGroundTruth = cCtx.Bool("strict-ground-truth")
	}
	if cCtx.IsSet("out-pdf") {
		opts.OutPDF = cCtx.String("out-pdf")
	}
	if cCtx.IsSet("out-filename") {
		opts.OutFilename = cCtx.String("out-filename")
	}
	return opts, nil
}
