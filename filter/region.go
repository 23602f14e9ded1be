package filter

import (
	"fmt"

	"github.com/grailbio/hts/sam"
	"github.com/gsc0107/ngsutils/interval"
)

// recordOverlaps applies the endpoint-containment overlap test between a
// mapped record's aligned span and a region, honoring the region's
// strand restriction: a '+' region only affects forward-strand records,
// a '-' region only reverse-strand records.
func recordOverlaps(rec *sam.Record, r interval.Region) bool {
	if r.Strand == '+' && rec.Flags&sam.Reverse != 0 {
		return false
	}
	if r.Strand == '-' && rec.Flags&sam.Reverse == 0 {
		return false
	}
	return r.Overlaps(rec.Pos, rec.End())
}

type excludeRegion struct{ region interval.Region }

func newExcludeRegion(args []string) (Criterion, error) {
	region, err := interval.ParseRegion(args[0])
	if err != nil {
		return nil, err
	}
	return &excludeRegion{region}, nil
}

func (c *excludeRegion) Evaluate(rec *sam.Record) bool {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
		return true
	}
	if rec.Ref.Name() != c.region.RefName {
		return true
	}
	return !c.region.Overlaps(rec.Pos, rec.End())
}
func (c *excludeRegion) String() string { return fmt.Sprintf("excluding: %s", c.region) }
func (c *excludeRegion) Close() error   { return nil }

// includeRegion is the negation of excludeRegion: only records
// overlapping the region pass, and unmapped records always fail.  At
// most one instance per pipeline (enforced by Parse).
type includeRegion struct{ excl excludeRegion }

func newIncludeRegion(args []string) (Criterion, error) {
	region, err := interval.ParseRegion(args[0])
	if err != nil {
		return nil, err
	}
	return &includeRegion{excludeRegion{region}}, nil
}

func (c *includeRegion) Evaluate(rec *sam.Record) bool {
	return !c.excl.Evaluate(rec)
}

func (c *includeRegion) EvaluateCached(rec *sam.Record, cache *VerdictCache) bool {
	if verdict, ok := cache.lookup(c, rec); ok {
		return verdict
	}
	verdict := c.Evaluate(rec)
	cache.store(c, rec, verdict)
	return verdict
}

func (c *includeRegion) String() string { return fmt.Sprintf("including: %s", c.excl.region) }
func (c *includeRegion) Close() error   { return nil }

type excludeBED struct {
	path  string
	index *interval.RegionIndex
}

func newExcludeBED(args []string) (Criterion, error) {
	regions, err := interval.ReadBEDFromPath(args[0])
	if err != nil {
		return nil, err
	}
	return &excludeBED{args[0], interval.NewRegionIndex(regions, 0)}, nil
}

func (c *excludeBED) Evaluate(rec *sam.Record) bool {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
		return true
	}
	for _, r := range c.index.Query(rec.Ref.Name(), rec.Pos) {
		if recordOverlaps(rec, r) {
			return false
		}
	}
	return true
}
func (c *excludeBED) String() string { return fmt.Sprintf("excluding from BED: %s", c.path) }
func (c *excludeBED) Close() error   { return nil }

type includeBED struct{ excl excludeBED }

func newIncludeBED(args []string) (Criterion, error) {
	regions, err := interval.ReadBEDFromPath(args[0])
	if err != nil {
		return nil, err
	}
	return &includeBED{excludeBED{args[0], interval.NewRegionIndex(regions, 0)}}, nil
}

func (c *includeBED) Evaluate(rec *sam.Record) bool {
	return !c.excl.Evaluate(rec)
}

func (c *includeBED) EvaluateCached(rec *sam.Record, cache *VerdictCache) bool {
	if verdict, ok := cache.lookup(c, rec); ok {
		return verdict
	}
	verdict := c.Evaluate(rec)
	cache.store(c, rec, verdict)
	return verdict
}

func (c *includeBED) String() string { return fmt.Sprintf("including from BED: %s", c.excl.path) }
func (c *includeBED) Close() error   { return nil }
