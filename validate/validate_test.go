package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"modval_go/config"
	"modval_go/mod_metrics"
)

type captureSink struct {
	summaries []string
	results   map[string]*mod_metrics.Result
	plots     int
}

func newCaptureSink() *captureSink {
	return &captureSink{results: map[string]*mod_metrics.Result{}}
}

func (c *captureSink) WriteSummary(name string, res *mod_metrics.Result) error {
	c.summaries = append(c.summaries, name)
	c.results[name] = res
	return nil
}

func (c *captureSink) PlotDensity(string, []float64, []float64) error {
	c.plots++
	return nil
}

func (c *captureSink) PlotPR(string, *mod_metrics.Result) error {
	c.plots++
	return nil
}

func (c *captureSink) PlotROC(string, *mod_metrics.Result) error {
	c.plots++
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func firstK(n, k int) []int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func bmLine(contig string, pos int64, strand string, cov int, pct float64) string {
	return fmt.Sprintf("%s\t%d\t%d\tm\t0\t%s\t%d\t%d\t0,0,0\t%d\t%.2f\n",
		contig, pos, pos+1, strand, pos, pos+1, cov, pct)
}

func TestResolveBasisPrecedence(t *testing.T) {
	cases := []struct {
		name                  string
		control, gt, validPos bool
		wantBasis             Basis
		wantValid             bool
	}{
		{"nothing", false, false, false, BasisNone, false},
		{"control only", true, false, false, BasisControl, false},
		{"ground truth only", false, true, false, BasisGroundTruth, false},
		{"control beats ground truth", true, true, false, BasisControl, false},
		{"control keeps valid positions", true, false, true, BasisControl, true},
		{"ground truth drops valid positions", false, true, true, BasisGroundTruth, false},
		{"valid positions alone give no basis", false, false, true, BasisNone, false},
	}
	for _, tc := range cases {
		basis, useValid := ResolveBasis(tc.control, tc.gt, tc.validPos, quietLog())
		if basis != tc.wantBasis || useValid != tc.wantValid {
			t.Errorf("%s: ResolveBasis = %v, %v, want %v, %v",
				tc.name, basis, useValid, tc.wantBasis, tc.wantValid)
		}
	}
}

func TestRunRequiresBasis(t *testing.T) {
	runner := &Runner{
		Opts:   &config.Options{ModifiedFiles: []string{"unused.bed"}, CoverageThreshold: 1},
		Log:    quietLog(),
		Report: newCaptureSink(),
		Pick:   firstK,
	}
	if err := runner.Run(); err != ErrNoBasis {
		t.Fatalf("err = %v, want ErrNoBasis", err)
	}
}

func TestRunGroundTruthComparison(t *testing.T) {
	dir := t.TempDir()
	modFile := writeFile(t, dir, "mod.bed",
		bmLine("chr1", 1, "+", 10, 90)+
			bmLine("chr1", 2, "+", 10, 95)+
			bmLine("chr1", 3, "+", 10, 5)+
			bmLine("chr1", 4, "+", 10, 10))
	gtFile := writeFile(t, dir, "gt.csv",
		"chr1,.,1,true\n"+
			"chr1,.,2,true\n"+
			"chr1,.,3,false\n"+
			"chr1,.,4,false\n"+
			"chr9,.,1,true\n") // not covered, skipped

	sink := newCaptureSink()
	runner := &Runner{
		Opts: &config.Options{
			ModifiedFiles:     []string{modFile},
			GroundTruthFiles:  []string{gtFile},
			CoverageThreshold: 1,
		},
		Log:    quietLog(),
		Report: sink,
		Pick:   firstK,
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}

	if len(sink.summaries) != 1 || sink.summaries[0] != "gt.csv" {
		t.Fatalf("summaries = %v, want [gt.csv]", sink.summaries)
	}
	res := sink.results["gt.csv"]
	if res.OptimalF1 != 1 {
		t.Errorf("OptimalF1 = %v, want 1 for separated labels", res.OptimalF1)
	}
	if res.NumMod != 2 || res.NumCtrl != 2 {
		t.Errorf("class sizes = %d, %d, want 2, 2", res.NumMod, res.NumCtrl)
	}
	if sink.plots != 3 {
		t.Errorf("plots = %d, want 3", sink.plots)
	}
}

func TestRunControlBeatsGroundTruth(t *testing.T) {
	dir := t.TempDir()
	modFile := writeFile(t, dir, "mod.bed",
		bmLine("chr1", 1, "+", 10, 90)+bmLine("chr1", 2, "+", 10, 95))
	ctrlFile := writeFile(t, dir, "ctrl.bed",
		bmLine("chr1", 1, "+", 10, 5)+bmLine("chr1", 2, "+", 10, 10))
	gtFile := writeFile(t, dir, "gt.csv", "chr1,.,1,true\n")

	sink := newCaptureSink()
	runner := &Runner{
		Opts: &config.Options{
			ModifiedFiles:     []string{modFile},
			ControlFiles:      []string{ctrlFile},
			GroundTruthFiles:  []string{gtFile},
			CoverageThreshold: 1,
		},
		Log:    quietLog(),
		Report: sink,
		Pick:   firstK,
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}

	// Only the control comparison runs, under the default name.
	if len(sink.summaries) != 1 || sink.summaries[0] != "sample" {
		t.Fatalf("summaries = %v, want [sample]", sink.summaries)
	}
	if res := sink.results["sample"]; res.NumMod != 2 || res.NumCtrl != 2 {
		t.Errorf("class sizes = %d, %d, want 2, 2", res.NumMod, res.NumCtrl)
	}
}

func TestRunGroundTruthIgnoresValidPositions(t *testing.T) {
	dir := t.TempDir()
	modFile := writeFile(t, dir, "mod.bed",
		bmLine("chr1", 1, "+", 10, 90)+bmLine("chr1", 2, "+", 10, 5))
	gtFile := writeFile(t, dir, "gt.csv", "chr1,.,1,true\nchr1,.,2,false\n")
	// Would exclude every position if it were applied.
	vpFile := writeFile(t, dir, "empty.bed", "chr9\t0\t1\n")

	sink := newCaptureSink()
	runner := &Runner{
		Opts: &config.Options{
			ModifiedFiles:     []string{modFile},
			GroundTruthFiles:  []string{gtFile},
			ValidPositions:    []string{vpFile},
			CoverageThreshold: 1,
		},
		Log:    quietLog(),
		Report: sink,
		Pick:   firstK,
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}
	if len(sink.summaries) != 1 || sink.summaries[0] != "gt.csv" {
		t.Fatalf("summaries = %v, want the ground truth comparison only", sink.summaries)
	}
	if res := sink.results["gt.csv"]; res.NumMod != 1 || res.NumCtrl != 1 {
		t.Errorf("class sizes = %d, %d, want 1, 1 (valid positions ignored)",
			res.NumMod, res.NumCtrl)
	}
}

func TestRunValidPositionComparisons(t *testing.T) {
	dir := t.TempDir()
	modFile := writeFile(t, dir, "mod.bed",
		bmLine("chr1", 1, "+", 10, 90)+
			bmLine("chr1", 2, "+", 10, 95)+
			bmLine("chr1", 3, "+", 10, 80))
	ctrlFile := writeFile(t, dir, "ctrl.bed",
		bmLine("chr1", 1, "+", 10, 5)+
			bmLine("chr1", 2, "+", 10, 10)+
			bmLine("chr1", 3, "+", 10, 20))
	vpA := writeFile(t, dir, "a.bed", "chr1\t1\t3\n")
	vpB := writeFile(t, dir, "b.bed", "chr1\t3\t4\n")

	sink := newCaptureSink()
	runner := &Runner{
		Opts: &config.Options{
			ModifiedFiles:     []string{modFile},
			ControlFiles:      []string{ctrlFile},
			ValidPositions:    []string{vpA, vpB},
			CoverageThreshold: 1,
		},
		Log:    quietLog(),
		Report: sink,
		Pick:   firstK,
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}

	if len(sink.summaries) != 2 || sink.summaries[0] != "a.bed" || sink.summaries[1] != "b.bed" {
		t.Fatalf("summaries = %v, want [a.bed b.bed]", sink.summaries)
	}
	if res := sink.results["a.bed"]; res.NumMod != 2 || res.NumCtrl != 2 {
		t.Errorf("a.bed class sizes = %d, %d, want 2, 2", res.NumMod, res.NumCtrl)
	}
	if res := sink.results["b.bed"]; res.NumMod != 1 || res.NumCtrl != 1 {
		t.Errorf("b.bed class sizes = %d, %d, want 1, 1", res.NumMod, res.NumCtrl)
	}
}

func TestRunSkipsEmptyComparison(t *testing.T) {
	dir := t.TempDir()
	modFile := writeFile(t, dir, "mod.bed", bmLine("chr1", 1, "+", 10, 90))
	gtFile := writeFile(t, dir, "gt.csv", "chr9,.,1,true\n")

	sink := newCaptureSink()
	runner := &Runner{
		Opts: &config.Options{
			ModifiedFiles:     []string{modFile},
			GroundTruthFiles:  []string{gtFile},
			CoverageThreshold: 1,
		},
		Log:    quietLog(),
		Report: sink,
		Pick:   firstK,
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}
	if len(sink.summaries) != 0 {
		t.Errorf("summaries = %v, want none for an empty comparison", sink.summaries)
	}
	if sink.plots != 0 {
		t.Errorf("plots = %d, want none for an empty comparison", sink.plots)
	}
}

func TestRunStrandedGroundTruth(t *testing.T) {
	dir := t.TempDir()
	// Forward-strand sample only.
	modFile := writeFile(t, dir, "mod.bed",
		bmLine("chr1", 1, "+", 10, 90)+bmLine("chr1", 2, "+", 10, 10))
	// The reverse-strand record must not match.
	gtFile := writeFile(t, dir, "gt.csv",
		"chr1,+,1,true\n"+
			"chr1,-,2,false\n")

	sink := newCaptureSink()
	runner := &Runner{
		Opts: &config.Options{
			ModifiedFiles:     []string{modFile},
			GroundTruthFiles:  []string{gtFile},
			CoverageThreshold: 1,
			AllowUnbalanced:   true,
		},
		Log:    quietLog(),
		Report: sink,
		Pick:   firstK,
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}
	res := sink.results["gt.csv"]
	if res == nil {
		t.Fatal("missing comparison result")
	}
	if res.NumMod != 1 || res.NumCtrl != 0 {
		t.Errorf("class sizes = %d, %d, want 1, 0 (reverse record unmatched)",
			res.NumMod, res.NumCtrl)
	}
}
