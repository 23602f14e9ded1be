package filter

import (
	"fmt"
	"io"

	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// RecordWriter receives the records that pass every criterion.
type RecordWriter interface {
	Write(rec *sam.Record) error
}

// Run evaluates every record from iter against criteria in order,
// writing passing records to w.  Evaluation short-circuits at the first
// failing criterion; when failedOut is non-nil one line per failed
// record ("name<TAB>description of the failing criterion") is written to
// it.  Criteria are closed in order when the stream ends, whether or
// not an error cut it short.
func Run(iter bamprovider.Iterator, w RecordWriter, criteria []Criterion, failedOut io.Writer) (passed, failed int, err error) {
	defer closeAll(criteria)
	var cache VerdictCache
	for iter.Scan() {
		rec := iter.Record()
		failedAt := evaluate(rec, criteria, &cache)
		if failedAt < 0 {
			if err = w.Write(rec); err != nil {
				return passed, failed, err
			}
			passed++
			continue
		}
		failed++
		if failedOut != nil {
			if _, err = fmt.Fprintf(failedOut, "%s\t%s\n", rec.Name, criteria[failedAt]); err != nil {
				return passed, failed, err
			}
		}
	}
	return passed, failed, iter.Err()
}

// evaluate returns the index of the first failing criterion, or -1 when
// the record passes all of them.
func evaluate(rec *sam.Record, criteria []Criterion, cache *VerdictCache) int {
	for i, crit := range criteria {
		verdict := false
		if c, ok := crit.(Cacheable); ok {
			verdict = c.EvaluateCached(rec, cache)
		} else {
			verdict = crit.Evaluate(rec)
		}
		if !verdict {
			return i
		}
	}
	return -1
}
