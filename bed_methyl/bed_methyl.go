// Package bed_methyl reads aggregated per-position modification counts from
// bedMethyl files and position restrictions from BED files.
package bed_methyl

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
)

// Strand of a genomic record. Collapsed records carry no strand
// information, either because the input had none or because reverse
// strand positions were folded onto the forward strand.
type Strand int

const (
	StrandForward Strand = iota
	StrandReverse
	StrandCollapsed
)

func (s Strand) String() string {
	switch s {
	case StrandForward:
		return "+"
	case StrandReverse:
		return "-"
	default:
		return "."
	}
}

// Region identifies one strand of one contig.
type Region struct {
	Contig string
	Strand Strand
}

// PosSet is a set of genomic positions.
type PosSet map[int64]struct{}

func (ps PosSet) Add(pos int64) {
	ps[pos] = struct{}{}
}

func (ps PosSet) Has(pos int64) bool {
	_, ok := ps[pos]
	return ok
}

// Intersect returns the positions present in both sets.
func (ps PosSet) Intersect(other PosSet) PosSet {
	out := make(PosSet)
	for pos := range ps {
		if other.Has(pos) {
			out.Add(pos)
		}
	}
	return out
}

// Counts holds per-position integer counts keyed by region.
type Counts map[Region]map[int64]int

func (c Counts) add(region Region, pos int64, n int) {
	ctg, ok := c[region]
	if !ok {
		ctg = make(map[int64]int)
		c[region] = ctg
	}
	ctg[pos] += n
}

// At returns the count at a position, or 0 when absent.
func (c Counts) At(region Region, pos int64) (int, bool) {
	ctg, ok := c[region]
	if !ok {
		return 0, false
	}
	n, ok := ctg[pos]
	return n, ok
}

// EachLine calls fn for every line of the named file with its 1-based line
// number. Files ending in .gz are read through a bgzf reader.
func EachLine(path string, fn func(line string, num int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".gz") {
		bgReader, err := bgzf.NewReader(f, 1)
		if err != nil {
			return fmt.Errorf("%s: %v", path, err)
		}
		defer bgReader.Close()

		num := 0
		for {
			b, err := readBgzipLine(bgReader)
			if len(b) > 0 {
				num++
				if ferr := fn(string(bytes.TrimRight(b, "\r\n")), num); ferr != nil {
					return ferr
				}
			}
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return fmt.Errorf("%s: %v", path, err)
			}
		}
	}

	scanner := bufio.NewScanner(f)
	const maxCapacity = 8 * 1000000 // 8 MB
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)
	num := 0
	for scanner.Scan() {
		num++
		if err := fn(scanner.Text(), num); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func readBgzipLine(r *bgzf.Reader) ([]byte, error) {
	var (
		data []byte
		b    byte
		err  error
	)
	for {
		b, err = r.ReadByte()
		if err != nil {
			break
		}
		data = append(data, b)
		if b == '\n' {
			break
		}
	}
	return data, err
}

var strandSymbols = map[string]Strand{
	"+": StrandForward,
	"-": StrandReverse,
	".": StrandCollapsed,
}

// ParseStrand maps a strand symbol to a Strand. Unknown symbols collapse,
// matching the lenient handling of the upstream aggregation output.
func ParseStrand(symbol string) Strand {
	if s, ok := strandSymbols[symbol]; ok {
		return s
	}
	return StrandCollapsed
}

// ParseBedMethyls reads bedMethyl files into coverage and modified-coverage
// counts. Counts accumulate across files and across duplicate positions.
// When strandOffset is non-nil, reverse strand positions are shifted by
// -offset and all records collapse onto a single strand-less region.
func ParseBedMethyls(paths []string, strandOffset *int64) (cov, modCov Counts, err error) {
	cov = make(Counts)
	modCov = make(Counts)
	for _, path := range paths {
		err := EachLine(path, func(line string, num int) error {
			if line == "" || strings.HasPrefix(line, "#") {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) < 11 {
				return fmt.Errorf(
					"%s: line %d: expected at least 11 bedMethyl fields, got %d",
					path, num, len(fields))
			}
			start, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%s: line %d: bad position %q", path, num, fields[1])
			}
			numReads, err := strconv.Atoi(fields[9])
			if err != nil {
				return fmt.Errorf("%s: line %d: bad coverage %q", path, num, fields[9])
			}
			pctMod, err := strconv.ParseFloat(fields[10], 64)
			if err != nil {
				return fmt.Errorf("%s: line %d: bad percent modified %q", path, num, fields[10])
			}
			if numReads <= 0 {
				return nil
			}
			modReads := int(math.Round(float64(numReads) * pctMod / 100))

			strand := ParseStrand(fields[5])
			region := Region{Contig: fields[0], Strand: strand}
			if strandOffset != nil {
				if strand == StrandReverse {
					start -= *strandOffset
				}
				region.Strand = StrandCollapsed
			}
			cov.add(region, start, numReads)
			modCov.add(region, start, modReads)
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return cov, modCov, nil
}

// ParseBeds reads BED files into one merged set of positions per region.
// Every position in [start, end) is included. Records without a strand
// field, and all records when ignoreStrand is set, land on the collapsed
// region of their contig.
func ParseBeds(paths []string, ignoreStrand bool) (map[Region]PosSet, error) {
	sites := make(map[Region]PosSet)
	for _, path := range paths {
		err := EachLine(path, func(line string, num int) error {
			if line == "" || strings.HasPrefix(line, "#") {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return fmt.Errorf(
					"%s: line %d: expected at least 3 BED fields, got %d",
					path, num, len(fields))
			}
			start, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%s: line %d: bad start %q", path, num, fields[1])
			}
			end, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return fmt.Errorf("%s: line %d: bad end %q", path, num, fields[2])
			}
			strand := StrandCollapsed
			if len(fields) >= 6 && !ignoreStrand {
				strand = ParseStrand(fields[5])
			}
			region := Region{Contig: fields[0], Strand: strand}
			set, ok := sites[region]
			if !ok {
				set = make(PosSet)
				sites[region] = set
			}
			for pos := start; pos < end; pos++ {
				set.Add(pos)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return sites, nil
}
