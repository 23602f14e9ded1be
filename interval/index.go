package interval

// DefaultBinSize is the coordinate bin width used by NewRegionIndex when
// the caller passes a nonpositive size.  100kb keeps per-query candidate
// lists short for typical BED inputs while index construction stays
// linear in the number of regions.
const DefaultBinSize = 100000

type binKey struct {
	refName string
	bin     int
}

// RegionIndex maps (chromosome, coordinate bin) to the regions whose
// spans overlap that bin.  A region spanning multiple bins is registered
// in every bin it overlaps, so a point query only inspects the bin
// containing the queried position.  The index is immutable after
// construction and safe for concurrent readers.
type RegionIndex struct {
	binSize int
	bins    map[binKey][]Region
	n       int
}

// NewRegionIndex builds an index over regions.  binSize <= 0 selects
// DefaultBinSize; the choice of bin size affects performance only, never
// query results.
func NewRegionIndex(regions []Region, binSize int) *RegionIndex {
	if binSize <= 0 {
		binSize = DefaultBinSize
	}
	idx := &RegionIndex{
		binSize: binSize,
		bins:    make(map[binKey][]Region),
		n:       len(regions),
	}
	for _, r := range regions {
		for bin := r.Start / binSize; bin <= r.End/binSize; bin++ {
			k := binKey{r.RefName, bin}
			idx.bins[k] = append(idx.bins[k], r)
		}
	}
	return idx
}

// Query returns the candidate regions for the bin containing (refName,
// pos), or nil if none are registered there.  Callers must re-test
// overlap with Region.Overlaps; bin membership alone does not imply
// overlap.
func (idx *RegionIndex) Query(refName string, pos int) []Region {
	return idx.bins[binKey{refName, pos / idx.binSize}]
}

// Len returns the number of regions the index was built from.
func (idx *RegionIndex) Len() int { return idx.n }
