// Package variation extracts per-position disagreements between an
// aligned read and the reference it is mapped to.  A disagreement is a
// point substitution, one contiguous inserted run, or one contiguous
// deleted run; clipping and padding operations never produce one.
//
// Three data sources are supported, mirroring what aligners actually
// emit: the NM aux tag (total edit distance only, no positions), the MD
// aux tag (positions reconstructible together with the CIGAR), and a
// reference sequence accessor (positions computed by direct base
// comparison).
package variation

import (
	"strings"

	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

var (
	nmTag = sam.Tag{'N', 'M'}
	mdTag = sam.Tag{'M', 'D'}
)

// Op is the kind of a Variation.
type Op int

const (
	// Mismatch is a point substitution of one base.
	Mismatch Op = iota
	// Insertion is a run of bases present in the read but not the reference.
	Insertion
	// Deletion is a run of reference bases absent from the read.
	Deletion
)

func (o Op) String() string {
	switch o {
	case Mismatch:
		return "mismatch"
	case Insertion:
		return "insertion"
	case Deletion:
		return "deletion"
	}
	return "?"
}

// Variation is one disagreement between a read and the reference.  Pos
// is the 0-based reference coordinate of the substituted base, of the
// base before which the run is inserted, or of the first deleted base.
// Seq holds the read base for a substitution, the inserted read bases,
// or the deleted reference bases, always uppercased.
type Variation struct {
	Op  Op
	Pos int
	Seq string
}

// EditDistance returns the record's NM aux value, or false when the tag
// is absent.
func EditDistance(rec *sam.Record) (int, bool) {
	aux := rec.AuxFields.Get(nmTag)
	if aux == nil {
		return 0, false
	}
	return auxInt(aux.Value())
}

// MismatchCount returns the number of mismatch events implied by the
// record's NM aux: substitutions count one each and an indel run of any
// length counts one.  NM charges one per indel base, so the CIGAR is
// walked to convert base charges back into events.  Returns false when
// the NM tag is absent.
func MismatchCount(rec *sam.Record) (int, bool) {
	n, ok := EditDistance(rec)
	if !ok {
		return 0, false
	}
	for _, co := range rec.Cigar {
		switch co.Type() {
		case sam.CigarInsertion, sam.CigarDeletion:
			n -= co.Len() - 1
		}
	}
	return n, true
}

func auxInt(v interface{}) (int, bool) {
	switch v := v.(type) {
	case int8:
		return int(v), true
	case uint8:
		return int(v), true
	case int16:
		return int(v), true
	case uint16:
		return int(v), true
	case int32:
		return int(v), true
	case uint32:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

func baseEqual(a, b byte) bool {
	return a == b || a|0x20 == b|0x20 // case-insensitive ASCII
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 0x20
	}
	return b
}

// FromReference walks the record's CIGAR against the reference slice
// spanning its aligned interval and returns the ordered variations.  The
// record must be mapped.
func FromReference(rec *sam.Record, ref fasta.Fasta) ([]Variation, error) {
	start, end := rec.Pos, rec.End()
	refSeq, err := ref.Get(rec.Ref.Name(), uint64(start), uint64(end))
	if err != nil {
		return nil, errors.Wrapf(err, "variation: reference lookup for %s", rec.Name)
	}
	read := rec.Seq.Expand()
	var out []Variation
	refOff, readOff := 0, 0
	for _, co := range rec.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				if !baseEqual(refSeq[refOff+i], read[readOff+i]) {
					out = append(out, Variation{Mismatch, start + refOff + i, string(upper(read[readOff+i]))})
				}
			}
			refOff += n
			readOff += n
		case sam.CigarInsertion:
			out = append(out, Variation{Insertion, start + refOff, strings.ToUpper(string(read[readOff : readOff+n]))})
			readOff += n
		case sam.CigarDeletion:
			out = append(out, Variation{Deletion, start + refOff, strings.ToUpper(refSeq[refOff : refOff+n])})
			refOff += n
		case sam.CigarSkipped:
			refOff += n
		case sam.CigarSoftClipped:
			readOff += n
		case sam.CigarHardClipped, sam.CigarPadded:
			// Neither cursor moves.
		}
	}
	return out, nil
}

// FromMD reconstructs the ordered variations from the record's MD aux
// tag and CIGAR, without reference access.  Substituted read bases come
// from the record sequence, deleted bases from the MD deletion runs, and
// insertions from the CIGAR alone (MD does not describe them).
func FromMD(rec *sam.Record) ([]Variation, error) {
	aux := rec.AuxFields.Get(mdTag)
	if aux == nil {
		return nil, errors.Errorf("variation: %s has no MD tag", rec.Name)
	}
	md, ok := aux.Value().(string)
	if !ok {
		return nil, errors.Errorf("variation: %s has a non-string MD tag", rec.Name)
	}
	read := rec.Seq.Expand()
	scan := mdScanner{s: md}
	var out []Variation
	pos := rec.Pos // reference coordinate cursor
	readOff := 0
	pending := 0 // matching bases left over from the current MD number
	for _, co := range rec.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			remaining := n
			for remaining > 0 {
				if pending > 0 {
					step := pending
					if step > remaining {
						step = remaining
					}
					pos += step
					readOff += step
					pending -= step
					remaining -= step
					continue
				}
				if num, ok := scan.number(); ok {
					pending = num
					continue
				}
				base, ok := scan.base()
				if !ok {
					return nil, errors.Errorf("variation: %s: MD tag %q too short for CIGAR", rec.Name, md)
				}
				_ = base // the reference base; the read base is what downstream matching wants
				out = append(out, Variation{Mismatch, pos, string(upper(read[readOff]))})
				pos++
				readOff++
				remaining--
			}
		case sam.CigarInsertion:
			out = append(out, Variation{Insertion, pos, strings.ToUpper(string(read[readOff : readOff+n]))})
			readOff += n
		case sam.CigarDeletion:
			if num, ok := scan.number(); ok && num == 0 {
				// A zero-length match commonly precedes a deletion.
			} else if ok {
				return nil, errors.Errorf("variation: %s: MD tag %q disagrees with CIGAR deletion", rec.Name, md)
			}
			deleted, ok := scan.deletion(n)
			if !ok {
				return nil, errors.Errorf("variation: %s: MD tag %q disagrees with CIGAR deletion", rec.Name, md)
			}
			out = append(out, Variation{Deletion, pos, strings.ToUpper(deleted)})
			pos += n
		case sam.CigarSkipped:
			pos += n
		case sam.CigarSoftClipped:
			readOff += n
		case sam.CigarHardClipped, sam.CigarPadded:
		}
	}
	return out, nil
}

// mdScanner tokenizes an MD string: numbers (match run lengths), single
// reference bases (substitutions), and ^-prefixed runs (deletions).
type mdScanner struct {
	s string
	i int
}

// number consumes a leading digit run.  MD strings place a number, often
// 0, between every other token, so a missing number means the next token
// is a base or deletion.
func (m *mdScanner) number() (int, bool) {
	start := m.i
	n := 0
	for m.i < len(m.s) && m.s[m.i] >= '0' && m.s[m.i] <= '9' {
		n = n*10 + int(m.s[m.i]-'0')
		m.i++
	}
	if m.i == start {
		return 0, false
	}
	return n, true
}

func (m *mdScanner) base() (byte, bool) {
	if m.i >= len(m.s) || m.s[m.i] == '^' {
		return 0, false
	}
	b := m.s[m.i]
	m.i++
	return b, true
}

func (m *mdScanner) deletion(n int) (string, bool) {
	if m.i >= len(m.s) || m.s[m.i] != '^' {
		return "", false
	}
	m.i++
	if m.i+n > len(m.s) {
		return "", false
	}
	run := m.s[m.i : m.i+n]
	for i := 0; i < n; i++ {
		if run[i] >= '0' && run[i] <= '9' {
			return "", false
		}
	}
	m.i += n
	return run, true
}
