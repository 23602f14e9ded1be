// Package tagger rewrites records in a BAM stream: renaming reads,
// stamping strand tags, and attaching constant aux values.  Unlike
// filtering, tagging writes every input record, transformed in place.
package tagger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// A Transformer mutates one record.  Transformers in a pipeline are
// applied in order to every record.
type Transformer interface {
	Apply(rec *sam.Record)
	String() string
}

// RecordWriter receives the transformed records, in input order.
type RecordWriter interface {
	Write(rec *sam.Record) error
}

// Run applies transformers to every record from iter, in order, and
// writes each one to w.  It returns the number of records written.
func Run(iter bamprovider.Iterator, w RecordWriter, transformers []Transformer) (int, error) {
	count := 0
	for iter.Scan() {
		rec := iter.Record()
		for _, tr := range transformers {
			tr.Apply(rec)
		}
		if err := w.Write(rec); err != nil {
			return count, err
		}
		count++
	}
	return count, iter.Err()
}

// Suffix appends a fixed string to every read name.
type Suffix struct {
	Text string
}

func (s *Suffix) Apply(rec *sam.Record) { rec.Name += s.Text }
func (s *Suffix) String() string        { return fmt.Sprintf("name suffix %q", s.Text) }

var xsTag = sam.Tag{'X', 'S'}

// XS stamps an XS:A strand tag ('+' or '-') on every mapped record,
// replacing any existing XS tag.  Unmapped records are left untouched.
type XS struct{}

func (XS) Apply(rec *sam.Record) {
	if rec.Flags&sam.Unmapped != 0 {
		return
	}
	strand := byte('+')
	if rec.Flags&sam.Reverse != 0 {
		strand = '-'
	}
	removeTag(rec, xsTag)
	rec.AuxFields = append(rec.AuxFields, sam.Aux{'X', 'S', 'A', strand})
}

func (XS) String() string { return "XS strand tag" }

func removeTag(rec *sam.Record, tag sam.Tag) {
	for i, aux := range rec.AuxFields {
		if aux.Tag() == tag {
			rec.AuxFields = append(rec.AuxFields[:i], rec.AuxFields[i+1:]...)
			return
		}
	}
}

// Aux attaches one constant aux value to every record, replacing any
// existing value under the same tag.  The aux bytes are built once at
// construction and shared across records; they are never mutated.
type Aux struct {
	spec string
	tag  sam.Tag
	aux  sam.Aux
}

// NewAux parses a KEY:VALUE or KEY:TYPE:VALUE literal, where TYPE is
// one of i (integer), f (float), Z (string), or A (single character).
// Without a TYPE the value type is inferred: integer, then float, else
// string.
func NewAux(spec string) (*Aux, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 || len(parts[0]) != 2 {
		return nil, errors.Errorf("tagger: %q is not of the form KEY[:TYPE]:VALUE", spec)
	}
	tag := sam.Tag{parts[0][0], parts[0][1]}
	var typ, literal string
	if len(parts) == 2 {
		literal = parts[1]
	} else {
		typ, literal = parts[1], parts[2]
	}
	aux, err := buildAux(tag, typ, literal)
	if err != nil {
		return nil, errors.Wrapf(err, "tagger: %q", spec)
	}
	return &Aux{spec: spec, tag: tag, aux: aux}, nil
}

func buildAux(tag sam.Tag, typ, literal string) (sam.Aux, error) {
	switch typ {
	case "i":
		i, err := strconv.Atoi(literal)
		if err != nil {
			return nil, errors.Errorf("%q is not an integer", literal)
		}
		return sam.NewAux(tag, i)
	case "f":
		f, err := strconv.ParseFloat(literal, 32)
		if err != nil {
			return nil, errors.Errorf("%q is not a float", literal)
		}
		return sam.NewAux(tag, float32(f))
	case "Z":
		return sam.NewAux(tag, literal)
	case "A":
		if len(literal) != 1 {
			return nil, errors.Errorf("%q is not a single character", literal)
		}
		// sam.NewAux encodes a lone byte as an unsigned int, so the
		// 'A' aux is assembled directly.
		return sam.Aux{tag[0], tag[1], 'A', literal[0]}, nil
	case "":
		if i, err := strconv.Atoi(literal); err == nil {
			return sam.NewAux(tag, i)
		}
		if f, err := strconv.ParseFloat(literal, 32); err == nil {
			return sam.NewAux(tag, float32(f))
		}
		return sam.NewAux(tag, literal)
	}
	return nil, errors.Errorf("unknown tag type %q", typ)
}

func (a *Aux) Apply(rec *sam.Record) {
	removeTag(rec, a.tag)
	rec.AuxFields = append(rec.AuxFields, a.aux)
}

func (a *Aux) String() string { return fmt.Sprintf("tag %s", a.spec) }
