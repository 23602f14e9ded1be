// Package dbsnp reads a UCSC-style dbSNP dump and answers whether an
// observed read/reference disagreement is a catalogued polymorphism.
//
// The expected input is the tab-delimited snp track dump (optionally
// gzipped): bin, chrom, chromStart, chromEnd, name, score, strand,
// refNCBI, refUCSC, observed, molType, class, ...  Only substitution
// ("single"), insertion, and deletion classes participate in matching.
package dbsnp

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/gsc0107/ngsutils/variation"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Class is a catalogued variant's class.
type Class int

const (
	// ClassOther covers classes this package does not match against
	// (mnp, microsatellite, named, ...).
	ClassOther Class = iota
	// ClassSingle is a single-base substitution.
	ClassSingle
	// ClassInsertion is an insertion relative to the reference.
	ClassInsertion
	// ClassDeletion is a deletion relative to the reference.
	ClassDeletion
)

func parseClass(s string) Class {
	switch s {
	case "single":
		return ClassSingle
	case "insertion":
		return ClassInsertion
	case "deletion":
		return ClassDeletion
	}
	return ClassOther
}

// Entry is one catalogued variant.
type Entry struct {
	Start    int // 0-based chromStart
	End      int
	Name     string
	Strand   byte // '+' or '-'; observed alleles are reported on this strand
	Class    Class
	Observed []string
}

// entryKey orders entries by (start, name) so that all entries at one
// coordinate form a contiguous key range.
type entryKey struct {
	start int
	name  string
	entry *Entry
}

// Compare implements llrb.Comparable.
func (k entryKey) Compare(c llrb.Comparable) int {
	k2 := c.(entryKey)
	if diff := k.start - k2.start; diff != 0 {
		return diff
	}
	return strings.Compare(k.name, k2.name)
}

// Catalog is an in-memory variant catalog, queryable by chromosome and
// coordinate.  Read-only after Load; safe for concurrent readers.
type Catalog struct {
	path  string
	byChr map[string]*llrb.Tree
	n     int
}

// minimum column count through the "class" column of a UCSC snp dump.
const snpColumns = 12

// Read parses catalog entries from UCSC snp-dump text.
func Read(reader io.Reader) (*Catalog, error) {
	c := &Catalog{byChr: make(map[string]*llrb.Tree)}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(nil, 1<<20)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		cols := bytes.Split(line, []byte{'\t'})
		if len(cols) < snpColumns {
			return nil, errors.Errorf("dbsnp: line %d has %d columns, want >= %d", lineIdx, len(cols), snpColumns)
		}
		start, err := strconv.Atoi(string(cols[2]))
		if err != nil {
			return nil, errors.Errorf("dbsnp: bad chromStart on line %d", lineIdx)
		}
		end, err := strconv.Atoi(string(cols[3]))
		if err != nil {
			return nil, errors.Errorf("dbsnp: bad chromEnd on line %d", lineIdx)
		}
		e := &Entry{
			Start:  start,
			End:    end,
			Name:   string(cols[4]),
			Strand: '+',
			Class:  parseClass(string(cols[11])),
		}
		if len(cols[6]) > 0 {
			e.Strand = cols[6][0]
		}
		for _, allele := range strings.Split(string(cols[9]), "/") {
			if allele == "" || allele == "-" {
				continue
			}
			e.Observed = append(e.Observed, allele)
		}
		chrom := string(cols[1])
		tree := c.byChr[chrom]
		if tree == nil {
			tree = &llrb.Tree{}
			c.byChr[chrom] = tree
		}
		tree.Insert(entryKey{start: e.Start, name: e.Name, entry: e})
		c.n++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a catalog from path, transparently decompressing gzipped
// dumps.
func Load(path string) (c *Catalog, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return nil, err
		}
	}
	if c, err = Read(reader); err != nil {
		return nil, errors.Wrapf(err, "dbsnp: reading %s", path)
	}
	c.path = path
	log.Printf("dbsnp: %d entries loaded from %s", c.n, path)
	return c, nil
}

// Len returns the number of catalogued entries.
func (c *Catalog) Len() int { return c.n }

func (c *Catalog) String() string { return c.path }

// at returns the entries whose chromStart equals pos.
func (c *Catalog) at(chrom string, pos int) []*Entry {
	tree := c.byChr[chrom]
	if tree == nil {
		return nil
	}
	var out []*Entry
	tree.DoRange(func(cmp llrb.Comparable) bool {
		out = append(out, cmp.(entryKey).entry)
		return false
	}, entryKey{start: pos}, entryKey{start: pos + 1})
	return out
}

// IsKnown reports whether v is a catalogued variant at its coordinate,
// and the matched allele when one was compared.  Substitutions must
// match an observed allele of a "single"-class entry, with alleles of
// '-'-strand entries reverse-complemented before comparison.  Indels are
// matched as a class: any catalogued insertion (resp. deletion) at the
// coordinate matches an insertion (resp. deletion) variation, regardless
// of allele.  The catalogue describes indels far less precisely than
// substitutions, so exact-allele indel matching would reject almost
// every real match.
func (c *Catalog) IsKnown(chrom string, v variation.Variation) (bool, string) {
	for _, e := range c.at(chrom, v.Pos) {
		switch v.Op {
		case variation.Mismatch:
			if e.Class != ClassSingle {
				continue
			}
			for _, allele := range e.Observed {
				a := allele
				if e.Strand == '-' {
					a = ReverseComplement(a)
				}
				if strings.EqualFold(a, v.Seq) {
					return true, a
				}
			}
		case variation.Insertion:
			if e.Class == ClassInsertion {
				return true, ""
			}
		case variation.Deletion:
			if e.Class == ClassDeletion {
				return true, ""
			}
		}
	}
	return false, ""
}

var complement = [256]byte{}

func init() {
	for i := 0; i < 256; i++ {
		complement[i] = byte(i)
	}
	for _, p := range [][2]byte{{'A', 'T'}, {'C', 'G'}, {'a', 't'}, {'c', 'g'}} {
		complement[p[0]] = p[1]
		complement[p[1]] = p[0]
	}
}

// ReverseComplement returns the reverse complement of a base sequence.
// Non-base characters are passed through unchanged.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[i] = complement[seq[len(seq)-1-i]]
	}
	return string(out)
}
