// Package mod_sample assembles a tested sample from aggregated coverage
// counts: the set of positions with enough coverage to evaluate, and the
// percent-modified value at each of them.
package mod_sample

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"modval_go/bed_methyl"
)

// Sample owns the coverage and modified-coverage counts of one sample and
// the derived set of test sites. Samples are built once and never mutated;
// Restrict returns a narrowed copy.
type Sample struct {
	Name      string
	Cov       bed_methyl.Counts
	ModCov    bed_methyl.Counts
	TestSites map[bed_methyl.Region]bed_methyl.PosSet
}

// New builds a Sample whose test sites are the positions with coverage of
// at least covThresh. The coverage median and mean across all covered
// positions go to the diagnostics log so an operator can sanity-check the
// input. Absent data yields empty sets, not an error.
func New(name string, cov, modCov bed_methyl.Counts, covThresh int, log *logrus.Logger) *Sample {
	allCov := make([]float64, 0)
	for _, ctgCov := range cov {
		for _, c := range ctgCov {
			allCov = append(allCov, float64(c))
		}
	}
	if log != nil {
		if len(allCov) > 0 {
			sort.Float64s(allCov)
			median := stat.Quantile(0.5, stat.Empirical, allCov, nil)
			mean := stat.Mean(allCov, nil)
			log.Infof("%s coverage median: %.2f   mean: %.2f", name, median, mean)
		} else {
			log.Warnf("%s: no covered positions", name)
		}
	}

	testSites := make(map[bed_methyl.Region]bed_methyl.PosSet)
	for region, ctgCov := range cov {
		sites := make(bed_methyl.PosSet)
		for pos, c := range ctgCov {
			if c >= covThresh {
				sites.Add(pos)
			}
		}
		testSites[region] = sites
	}
	return &Sample{Name: name, Cov: cov, ModCov: modCov, TestSites: testSites}
}

// Restrict returns a new Sample whose test sites are intersected with the
// given valid-position sets. Lookup tries the exact region first, then the
// collapsed region of the same contig, so strand-less BED restrictions
// still apply to stranded samples. Regions with no matching valid set are
// dropped. The receiver is unchanged.
func (s *Sample) Restrict(valid map[bed_methyl.Region]bed_methyl.PosSet) *Sample {
	restricted := make(map[bed_methyl.Region]bed_methyl.PosSet)
	for region, sites := range s.TestSites {
		validSet, ok := valid[region]
		if !ok && region.Strand != bed_methyl.StrandCollapsed {
			validSet, ok = valid[bed_methyl.Region{
				Contig: region.Contig,
				Strand: bed_methyl.StrandCollapsed,
			}]
		}
		if !ok {
			continue
		}
		restricted[region] = sites.Intersect(validSet)
	}
	return &Sample{Name: s.Name, Cov: s.Cov, ModCov: s.ModCov, TestSites: restricted}
}

// Lookup returns the coverage and modified coverage at a position. A
// collapsed query matches any strand of the contig; a stranded query only
// matches its own strand.
func (s *Sample) Lookup(region bed_methyl.Region, pos int64) (cov, modCov int, ok bool) {
	regions := []bed_methyl.Region{region}
	if region.Strand == bed_methyl.StrandCollapsed {
		regions = append(regions,
			bed_methyl.Region{Contig: region.Contig, Strand: bed_methyl.StrandForward},
			bed_methyl.Region{Contig: region.Contig, Strand: bed_methyl.StrandReverse},
		)
	}
	for _, r := range regions {
		if c, found := s.Cov.At(r, pos); found {
			m, _ := s.ModCov.At(r, pos)
			return c, m, true
		}
	}
	return 0, 0, false
}

// PctMod returns the percent-modified value at every test site, in a
// deterministic region/position order.
func (s *Sample) PctMod() []float64 {
	regions := make([]bed_methyl.Region, 0, len(s.TestSites))
	for region := range s.TestSites {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Contig != regions[j].Contig {
			return regions[i].Contig < regions[j].Contig
		}
		return regions[i].Strand < regions[j].Strand
	})

	vals := make([]float64, 0)
	for _, region := range regions {
		sites := s.TestSites[region]
		positions := make([]int64, 0, len(sites))
		for pos := range sites {
			positions = append(positions, pos)
		}
		sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
		for _, pos := range positions {
			cov, _ := s.Cov.At(region, pos)
			if cov <= 0 {
				continue
			}
			modCov, _ := s.ModCov.At(region, pos)
			vals = append(vals, 100*float64(modCov)/float64(cov))
		}
	}
	return vals
}
