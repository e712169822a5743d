// Package mod_metrics computes binary classification quality metrics over
// percent-modified values: the precision-recall curve with its optimal-F1
// operating point, average precision, and the ROC curve with its AUC.
package mod_metrics

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrNoValidSites reports a comparison with no usable positions in either
// class. Callers skip the comparison rather than failing the batch.
var ErrNoValidSites = errors.New("no valid sites available")

// Picker selects k of n indices uniformly without replacement. It is
// injected so balancing can be made deterministic under test.
type Picker func(n, k int) []int

// RandomPicker returns the production Picker backed by r.
func RandomPicker(r *rand.Rand) Picker {
	return func(n, k int) []int {
		return r.Perm(n)[:k]
	}
}

// Balance down-samples the longer of the two value slices to the length of
// the shorter one using pick. The shorter slice is returned untouched.
func Balance(modVals, ctrlVals []float64, pick Picker) ([]float64, []float64) {
	switch {
	case len(modVals) > len(ctrlVals):
		modVals = subset(modVals, pick(len(modVals), len(ctrlVals)))
	case len(ctrlVals) > len(modVals):
		ctrlVals = subset(ctrlVals, pick(len(ctrlVals), len(modVals)))
	}
	return modVals, ctrlVals
}

func subset(vals []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}

// Result holds the metrics of one comparison together with the full curves
// needed for plotting. Precision and Recall are one longer than Thresholds:
// the final point is (precision=1, recall=0) at an implicit threshold of
// +Inf. Thresholds[i] pairs with Precision[i] and Recall[i].
type Result struct {
	OptimalF1        float64
	OptimalThreshold float64
	AvgPrecision     float64
	ROCAUC           float64

	Precision  []float64
	Recall     []float64
	Thresholds []float64
	FPR        []float64
	TPR        []float64

	NumMod  int
	NumCtrl int
}

// Evaluate computes a Result from the percent-modified values of the
// modified (positive) and control (negative) classes. The positive class
// carries label 1, the negative class label 0, in that order. An entirely
// empty input returns ErrNoValidSites.
func Evaluate(modVals, ctrlVals []float64) (*Result, error) {
	n := len(modVals) + len(ctrlVals)
	if n == 0 {
		return nil, ErrNoValidSites
	}

	scores := make([]float64, 0, n)
	scores = append(scores, modVals...)
	scores = append(scores, ctrlVals...)
	labels := make([]bool, n)
	for i := range modVals {
		labels[i] = true
	}

	precision, recall, thresholds := precisionRecallCurve(labels, scores)

	optimF1, optimThresh := optimalF1(precision, recall, thresholds)
	avgPrecision := averagePrecision(precision, recall)
	fpr, tpr, auc := rocCurve(labels, scores)

	return &Result{
		OptimalF1:        optimF1,
		OptimalThreshold: optimThresh,
		AvgPrecision:     avgPrecision,
		ROCAUC:           auc,
		Precision:        precision,
		Recall:           recall,
		Thresholds:       thresholds,
		FPR:              fpr,
		TPR:              tpr,
		NumMod:           len(modVals),
		NumCtrl:          len(ctrlVals),
	}, nil
}

// precisionRecallCurve sweeps the decision threshold over every distinct
// score, from the highest down, counting a prediction as positive when its
// score is at least the threshold. The returned slices are ordered by
// ascending threshold with the conventional terminal point appended.
func precisionRecallCurve(labels []bool, scores []float64) (precision, recall, thresholds []float64) {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })

	totalPos := 0
	for _, l := range labels {
		if l {
			totalPos++
		}
	}

	tp, predicted := 0, 0
	for i := 0; i < len(order); {
		thresh := scores[order[i]]
		for i < len(order) && scores[order[i]] == thresh {
			if labels[order[i]] {
				tp++
			}
			predicted++
			i++
		}
		precision = append(precision, float64(tp)/float64(predicted))
		if totalPos > 0 {
			recall = append(recall, float64(tp)/float64(totalPos))
		} else {
			recall = append(recall, 0)
		}
		thresholds = append(thresholds, thresh)
	}

	reverse(precision)
	reverse(recall)
	reverse(thresholds)
	precision = append(precision, 1)
	recall = append(recall, 0)
	return precision, recall, thresholds
}

func reverse(vals []float64) {
	for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
		vals[i], vals[j] = vals[j], vals[i]
	}
}

// optimalF1 finds the maximum F1 over all curve points with a nonzero
// precision+recall sum. Ties keep the first maximum in curve order. The
// terminal curve point has no finite threshold.
func optimalF1(precision, recall, thresholds []float64) (f1, thresh float64) {
	bestIdx := -1
	for i := range precision {
		sum := precision[i] + recall[i]
		if sum <= 0 {
			continue
		}
		cur := 2 * precision[i] * recall[i] / sum
		if bestIdx < 0 || cur > f1 {
			bestIdx = i
			f1 = cur
		}
	}
	if bestIdx < 0 {
		return 0, math.Inf(1)
	}
	if bestIdx < len(thresholds) {
		thresh = thresholds[bestIdx]
	} else {
		thresh = math.Inf(1)
	}
	return f1, thresh
}

// averagePrecision is the step-weighted area under the precision-recall
// curve: the sum over recall drops of the drop times the precision at the
// higher-recall side.
func averagePrecision(precision, recall []float64) float64 {
	ap := 0.0
	for i := 0; i < len(recall)-1; i++ {
		ap += (recall[i] - recall[i+1]) * precision[i]
	}
	return ap
}

// rocCurve computes the ROC curve and its trapezoidal AUC using gonum.
// stat.ROC wants scores sorted ascending with labels kept parallel.
func rocCurve(labels []bool, scores []float64) (fpr, tpr []float64, auc float64) {
	y := make([]float64, len(scores))
	copy(y, scores)
	classes := make([]bool, len(labels))
	copy(classes, labels)

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ = stat.ROC(nil, y, classes, nil)
	auc = integrate.Trapezoidal(fpr, tpr)
	return fpr, tpr, auc
}
