package interval

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is a single genomic interval with an optional strand
// restriction.  Start is 0-based; End is the bound produced by the source
// format (a 1-based inclusive end for region strings, the half-open end
// for BED rows).  Overlap tests treat both bounds as containment limits,
// matching the behavior of the region formats this package reads.
type Region struct {
	RefName string
	Start   int
	End     int
	// Strand is '+', '-', or 0 when the region applies to both strands.
	Strand byte
}

// Overlaps reports whether either endpoint of [start, end] falls inside
// the region.
func (r Region) Overlaps(start, end int) bool {
	if r.Start <= start && start <= r.End {
		return true
	}
	return r.Start <= end && end <= r.End
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.RefName, r.Start+1, r.End)
}

// ParseRegion parses a region string of the form
//   [contig]:[1-based start]-[1-based end]
// returning a Region with a 0-based start.
func ParseRegion(region string) (Region, error) {
	colonPos := strings.IndexByte(region, ':')
	if colonPos <= 0 {
		return Region{}, fmt.Errorf("interval.ParseRegion: %q is not of the form chr:start-end", region)
	}
	refName := region[:colonPos]
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		return Region{}, fmt.Errorf("interval.ParseRegion: %q is not of the form chr:start-end", region)
	}
	start1, err := strconv.Atoi(rangeStr[:dashPos])
	if err != nil {
		return Region{}, fmt.Errorf("interval.ParseRegion: bad start position in %q", region)
	}
	if start1 <= 0 {
		return Region{}, fmt.Errorf("interval.ParseRegion: position %d in %q out of range", start1, region)
	}
	end, err := strconv.Atoi(rangeStr[dashPos+1:])
	if err != nil {
		return Region{}, fmt.Errorf("interval.ParseRegion: bad end position in %q", region)
	}
	if end < start1 {
		return Region{}, fmt.Errorf("interval.ParseRegion: invalid range in %q", region)
	}
	return Region{RefName: refName, Start: start1 - 1, End: end}, nil
}
