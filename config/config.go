// Package config holds the run configuration for a validation batch.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// DefaultOutPDF is the plot document written when no other name is given.
const DefaultOutPDF = "modval_validation.pdf"

// Options describes one validation run. Exactly one comparison basis must
// be present: control files or ground truth files.
type Options struct {
	ModifiedFiles     []string `yaml:"modified_bed_methyl_files"`
	ControlFiles      []string `yaml:"control_bed_methyl_files"`
	GroundTruthFiles  []string `yaml:"ground_truth_csvs"`
	ValidPositions    []string `yaml:"valid_positions"`
	CoverageThreshold int      `yaml:"coverage_threshold"`
	StrandOffset      *int64   `yaml:"strand_offset"`
	AllowUnbalanced   bool     `yaml:"allow_unbalance_classes"`
	StrictGroundTruth bool     `yaml:"strict_ground_truth"`
	OutPDF            string   `yaml:"out_pdf"`
	OutFilename       string   `yaml:"out_filename"`
}

// Default returns the options used when neither flags nor a config file
// override them.
func Default() *Options {
	return &Options{
		CoverageThreshold: 1,
		OutPDF:            DefaultOutPDF,
	}
}

// Load reads a YAML options file over the defaults. Command line flags are
// applied on top by the caller.
func Load(path string) (*Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open the config file: %v", err)
	}
	opts := Default()
	if err := yaml.Unmarshal(raw, opts); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %v", err)
	}
	return opts, nil
}
