// Package filter removes records from a BAM stream based on an ordered
// list of criteria.  Criteria are constructed once from their command
// line arguments, evaluated once per record with short-circuit failure,
// and closed exactly once when the stream ends.
package filter

import (
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// A Criterion is one configured, immutable filtering predicate.  String
// returns the human-readable description written to the failed-read log.
// Close releases any resource the criterion owns (reference handle, open
// name list) and is called exactly once by Run.
type Criterion interface {
	Evaluate(rec *sam.Record) bool
	String() string
	Close() error
}

// Cacheable is implemented by criteria whose verdict may be reused when
// the pipeline evaluates the same record again (region-inclusion
// criteria).  The cache is owned by the pipeline and passed in
// explicitly; it is an optimization only and can be dropped if
// evaluation is ever parallelized.
type Cacheable interface {
	Criterion
	EvaluateCached(rec *sam.Record, cache *VerdictCache) bool
}

// VerdictCache is a single-slot record→verdict cache.  The slot also
// remembers which criterion stored it, so two Cacheable criteria in one
// pipeline never read each other's verdicts.
type VerdictCache struct {
	crit    Criterion
	rec     *sam.Record
	verdict bool
}

func (c *VerdictCache) lookup(crit Criterion, rec *sam.Record) (bool, bool) {
	if c.crit == crit && c.rec == rec {
		return c.verdict, true
	}
	return false, false
}

func (c *VerdictCache) store(crit Criterion, rec *sam.Record, verdict bool) {
	c.crit, c.rec, c.verdict = crit, rec, verdict
}

type constructor struct {
	nargs int
	build func(args []string) (Criterion, error)
}

// registry maps criterion names (minus the leading dash) to validated
// constructors.  Names and argument shapes follow the classic bamutils
// filter tool.
var registry = map[string]constructor{
	"minlen":             {1, newMinLength},
	"length":             {1, newMinLength}, // deprecated spelling of minlen
	"maxlen":             {1, newMaxLength},
	"mapped":             {0, newMapped},
	"mask":               {1, newMaskFlag},
	"noqcfail":           {0, newNoQCFail},
	"nosecondary":        {0, newNoSecondary},
	"eq":                 {2, newTagCompare(opEQ)},
	"lt":                 {2, newTagCompare(opLT)},
	"lte":                {2, newTagCompare(opLTE)},
	"gt":                 {2, newTagCompare(opGT)},
	"gte":                {2, newTagCompare(opGTE)},
	"whitelist":          {1, newWhitelist},
	"blacklist":          {1, newBlacklist},
	"exclude":            {1, newExcludeRegion},
	"include":            {1, newIncludeRegion},
	"excludebed":         {1, newExcludeBED},
	"includebed":         {1, newIncludeBED},
	"mismatch":           {1, newMismatch},
	"mismatch_ref":       {2, newMismatchRef},
	"mismatch_dbsnp":     {2, newMismatchDbSNP},
	"mismatch_ref_dbsnp": {3, newMismatchRefDbSNP},
}

func closeAll(criteria []Criterion) {
	for _, c := range criteria {
		_ = c.Close()
	}
}

// Parse turns an ordered "-name arg..." token list into the criterion
// list it describes.  Unknown names, wrong argument counts, malformed
// arguments, and unopenable resources are all reported here, before any
// record is processed; criteria constructed before the failing token are
// closed.
func Parse(args []string) ([]Criterion, error) {
	var criteria []Criterion
	includes := 0
	i := 0
	for i < len(args) {
		tok := args[i]
		if !strings.HasPrefix(tok, "-") {
			closeAll(criteria)
			return nil, errors.Errorf("unexpected argument %q (criteria start with '-')", tok)
		}
		name := tok[1:]
		ctor, ok := registry[name]
		if !ok {
			closeAll(criteria)
			return nil, errors.Errorf("unknown criterion %q", tok)
		}
		if i+1+ctor.nargs > len(args) {
			closeAll(criteria)
			return nil, errors.Errorf("%s requires %d argument(s)", tok, ctor.nargs)
		}
		crit, err := ctor.build(args[i+1 : i+1+ctor.nargs])
		if err != nil {
			closeAll(criteria)
			return nil, errors.Wrapf(err, "%s", tok)
		}
		if _, ok := crit.(*includeRegion); ok {
			if includes++; includes > 1 {
				closeAll(criteria)
				_ = crit.Close()
				return nil, errors.New("-include supports only a single region; use -includebed for more")
			}
		}
		criteria = append(criteria, crit)
		i += 1 + ctor.nargs
	}
	if len(criteria) == 0 {
		return nil, errors.New("no filtering criteria given")
	}
	return criteria, nil
}
