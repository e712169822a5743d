// Package ground_truth loads externally verified modification labels from
// comma-delimited files with (contig, strand, position, is_modified)
// records.
package ground_truth

import (
	"fmt"
	"strconv"
	"strings"

	"modval_go/bed_methyl"
)

// Site is one labeled position.
type Site struct {
	Pos   int64
	IsMod bool
}

// Table holds the labels of a single ground truth file. Files are kept
// separate and evaluated as independent comparisons.
type Table struct {
	Source string
	Sites  map[bed_methyl.Region][]Site
}

// Tokens accepted as "modified". Anything else is treated as unmodified
// unless strict parsing is requested.
var isModVals = map[string]bool{
	"true": true, "t": true, "on": true, "yes": true, "y": true, "1": true,
}

var isCanonVals = map[string]bool{
	"false": true, "f": true, "off": true, "no": true, "n": true, "0": true,
}

// ParseIsMod interprets an is-modified token. With strict set, tokens
// outside the recognized modified and unmodified sets are an error rather
// than silently unmodified.
func ParseIsMod(token string, strict bool) (bool, error) {
	lower := strings.ToLower(token)
	if isModVals[lower] {
		return true, nil
	}
	if strict && !isCanonVals[lower] {
		return false, fmt.Errorf("unrecognized is_modified value %q", token)
	}
	return false, nil
}

// Parse reads each ground truth file into its own Table.
func Parse(paths []string, strict bool) ([]Table, error) {
	tables := make([]Table, 0, len(paths))
	for _, path := range paths {
		table := Table{
			Source: path,
			Sites:  make(map[bed_methyl.Region][]Site),
		}
		err := bed_methyl.EachLine(path, func(line string, num int) error {
			if line == "" {
				return nil
			}
			fields := strings.Split(strings.TrimSpace(line), ",")
			if len(fields) != 4 {
				return fmt.Errorf(
					"%s: line %d: expected 4 comma-delimited fields, got %d",
					path, num, len(fields))
			}
			pos, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				return fmt.Errorf("%s: line %d: bad position %q", path, num, fields[2])
			}
			isMod, err := ParseIsMod(fields[3], strict)
			if err != nil {
				return fmt.Errorf("%s: line %d: %v", path, num, err)
			}
			region := bed_methyl.Region{
				Contig: fields[0],
				Strand: bed_methyl.ParseStrand(fields[1]),
			}
			table.Sites[region] = append(table.Sites[region], Site{Pos: pos, IsMod: isMod})
			return nil
		})
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}
