package filter

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/hts/sam"
	"github.com/gsc0107/ngsutils/dbsnp"
	"github.com/gsc0107/ngsutils/variation"
	"github.com/pkg/errors"
)

var zsTag = sam.Tag{'Z', 'S'}

// annotateKnown appends a ZS:i aux recording how many of the record's
// variations were found in the variant catalog.  The annotation is made
// whenever matches were found, whether or not the record goes on to pass
// the mismatch threshold.
func annotateKnown(rec *sam.Record, known int) {
	aux, err := sam.NewAux(zsTag, known)
	if err != nil {
		log.Error.Printf("%s: cannot build ZS aux: %v", rec.Name, err)
		return
	}
	rec.AuxFields = append(rec.AuxFields, aux)
}

// classify splits a record's variations into true mismatches and
// catalogued variants.
func classify(db *dbsnp.Catalog, rec *sam.Record, variations []variation.Variation) (mismatches, known int) {
	chrom := rec.Ref.Name()
	for _, v := range variations {
		if ok, _ := db.IsKnown(chrom, v); ok {
			known++
		} else {
			mismatches++
		}
	}
	return mismatches, known
}

// mismatch bounds the record's NM-derived mismatch count, with indel
// base charges folded into one event per run; records without NM fail.
type mismatch struct{ max int }

func newMismatch(args []string) (Criterion, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, errors.Errorf("bad mismatch bound %q", args[0])
	}
	return &mismatch{n}, nil
}

func (c *mismatch) Evaluate(rec *sam.Record) bool {
	if rec.Flags&sam.Unmapped != 0 {
		return false
	}
	n, ok := variation.MismatchCount(rec)
	if !ok {
		return false
	}
	return n <= c.max
}

func (c *mismatch) String() string {
	return fmt.Sprintf(">%d mismatch%s", c.max, plural(c.max))
}
func (c *mismatch) Close() error { return nil }

// refHandle bundles an indexed FASTA with the file handles it reads
// from, so a criterion can release them at pipeline shutdown.
type refHandle struct {
	fa        fasta.Fasta
	in, idxIn file.File
}

func openFasta(path string) (*refHandle, error) {
	ctx := vcontext.Background()
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	idxIn, err := file.Open(ctx, path+".fai")
	if err != nil {
		_ = in.Close(ctx)
		return nil, errors.Wrapf(err, "opening FASTA index %s.fai", path)
	}
	fa, err := fasta.NewIndexed(in.Reader(ctx), idxIn.Reader(ctx))
	if err != nil {
		_ = in.Close(ctx)
		_ = idxIn.Close(ctx)
		return nil, errors.Wrapf(err, "reading FASTA index %s.fai", path)
	}
	return &refHandle{fa: fa, in: in, idxIn: idxIn}, nil
}

func (h *refHandle) close() error {
	ctx := vcontext.Background()
	err := h.in.Close(ctx)
	if cerr := h.idxIn.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// mismatchRef bounds the count of variations found by direct comparison
// against the reference.  Each indel run counts as exactly one,
// regardless of length; each substitution counts as one.
type mismatchRef struct {
	max  int
	path string
	ref  *refHandle
}

func newMismatchRef(args []string) (Criterion, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, errors.Errorf("bad mismatch bound %q", args[0])
	}
	ref, err := openFasta(args[1])
	if err != nil {
		return nil, err
	}
	return &mismatchRef{n, args[1], ref}, nil
}

func (c *mismatchRef) Evaluate(rec *sam.Record) bool {
	if rec.Flags&sam.Unmapped != 0 {
		return false
	}
	variations, err := variation.FromReference(rec, c.ref.fa)
	if err != nil {
		log.Error.Printf("%s: %v", rec.Name, err)
		return false
	}
	return len(variations) <= c.max
}

func (c *mismatchRef) String() string {
	return fmt.Sprintf(">%d mismatch%s in %s", c.max, plural(c.max), filepath.Base(c.path))
}
func (c *mismatchRef) Close() error { return c.ref.close() }

// mismatchDbSNP bounds the count of MD-derived variations that are NOT
// catalogued variants.  When the NM-derived count already satisfies the
// bound the record passes without positional classification.
type mismatchDbSNP struct {
	max int
	db  *dbsnp.Catalog
}

func newMismatchDbSNP(args []string) (Criterion, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, errors.Errorf("bad mismatch bound %q", args[0])
	}
	db, err := dbsnp.Load(args[1])
	if err != nil {
		return nil, err
	}
	return &mismatchDbSNP{n, db}, nil
}

func (c *mismatchDbSNP) Evaluate(rec *sam.Record) bool {
	if rec.Flags&sam.Unmapped != 0 {
		return false
	}
	if n, ok := variation.MismatchCount(rec); ok && n <= c.max {
		return true
	}
	variations, err := variation.FromMD(rec)
	if err != nil {
		log.Error.Printf("%s: %v", rec.Name, err)
		return false
	}
	mismatches, known := classify(c.db, rec, variations)
	if known > 0 {
		annotateKnown(rec, known)
	}
	return mismatches <= c.max
}

func (c *mismatchDbSNP) String() string {
	return fmt.Sprintf(">%d mismatch%s using %s", c.max, plural(c.max), filepath.Base(c.db.String()))
}
func (c *mismatchDbSNP) Close() error { return nil }

// mismatchRefDbSNP is mismatchRef with catalogued variants excluded from
// the count, for inputs that carry neither NM nor MD.
type mismatchRefDbSNP struct {
	max  int
	path string
	ref  *refHandle
	db   *dbsnp.Catalog
}

func newMismatchRefDbSNP(args []string) (Criterion, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, errors.Errorf("bad mismatch bound %q", args[0])
	}
	ref, err := openFasta(args[1])
	if err != nil {
		return nil, err
	}
	db, err := dbsnp.Load(args[2])
	if err != nil {
		_ = ref.close()
		return nil, err
	}
	return &mismatchRefDbSNP{n, args[1], ref, db}, nil
}

func (c *mismatchRefDbSNP) Evaluate(rec *sam.Record) bool {
	if rec.Flags&sam.Unmapped != 0 {
		return false
	}
	variations, err := variation.FromReference(rec, c.ref.fa)
	if err != nil {
		log.Error.Printf("%s: %v", rec.Name, err)
		return false
	}
	mismatches, known := classify(c.db, rec, variations)
	if known > 0 {
		annotateKnown(rec, known)
	}
	return mismatches <= c.max
}

func (c *mismatchRefDbSNP) String() string {
	return fmt.Sprintf(">%d mismatch%s using %s/%s",
		c.max, plural(c.max), filepath.Base(c.db.String()), filepath.Base(c.path))
}
func (c *mismatchRefDbSNP) Close() error { return c.ref.close() }

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "es"
}
