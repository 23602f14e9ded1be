package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

type compareOp int

const (
	opEQ compareOp = iota
	opLT
	opLTE
	opGT
	opGTE
)

func (op compareOp) String() string {
	return [...]string{"=", "<", "<=", ">", ">="}[op]
}

type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindString
)

// typedValue is a comparison literal, parsed exactly once at criterion
// construction.
type typedValue struct {
	kind valueKind
	i    int64
	f    float64
	s    string
}

func (v typedValue) String() string {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
	return v.s
}

// parseTyped parses literal per the explicit type suffix ('i', 'f',
// 'Z', or none).  Without a suffix the type is inferred: integer, then
// float, else string.
func parseTyped(suffix byte, literal string) (typedValue, error) {
	switch suffix {
	case 'Z':
		return typedValue{kind: kindString, s: literal}, nil
	case 'i':
		i, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return typedValue{}, errors.Errorf("%q is not an integer", literal)
		}
		return typedValue{kind: kindInt, i: i}, nil
	case 'f':
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil {
			return typedValue{}, errors.Errorf("%q is not a float", literal)
		}
		return typedValue{kind: kindFloat, f: f}, nil
	case 0:
		if i, err := strconv.ParseInt(literal, 10, 64); err == nil {
			return typedValue{kind: kindInt, i: i}, nil
		}
		if f, err := strconv.ParseFloat(literal, 64); err == nil {
			return typedValue{kind: kindFloat, f: f}, nil
		}
		return typedValue{kind: kindString, s: literal}, nil
	}
	return typedValue{}, errors.Errorf("unknown tag type %q", string(suffix))
}

// tagCompare compares an aux tag value (or the mapping quality, for the
// reserved key MAPQ) against a literal.  A record without the tag never
// passes.
type tagCompare struct {
	key  string
	tag  sam.Tag
	mapq bool
	op   compareOp
	want typedValue
}

func newTagCompare(op compareOp) func(args []string) (Criterion, error) {
	return func(args []string) (Criterion, error) {
		key, literal := args[0], args[1]
		var suffix byte
		name := key
		if i := strings.IndexByte(key, ':'); i >= 0 {
			if len(key[i+1:]) != 1 {
				return nil, errors.Errorf("bad tag type in %q", key)
			}
			suffix = key[i+1]
			name = key[:i]
		}
		c := &tagCompare{key: key, op: op}
		if name == "MAPQ" {
			c.mapq = true
			suffix = 'i'
		} else if len(name) == 2 {
			c.tag = sam.Tag{name[0], name[1]}
		} else {
			return nil, errors.Errorf("bad tag name %q", key)
		}
		want, err := parseTyped(suffix, literal)
		if err != nil {
			return nil, err
		}
		c.want = want
		return c, nil
	}
}

func (c *tagCompare) value(rec *sam.Record) (typedValue, bool) {
	if c.mapq {
		return typedValue{kind: kindInt, i: int64(rec.MapQ)}, true
	}
	aux := rec.AuxFields.Get(c.tag)
	if aux == nil {
		return typedValue{}, false
	}
	switch v := aux.Value().(type) {
	case int8:
		return typedValue{kind: kindInt, i: int64(v)}, true
	case uint8:
		return typedValue{kind: kindInt, i: int64(v)}, true
	case int16:
		return typedValue{kind: kindInt, i: int64(v)}, true
	case uint16:
		return typedValue{kind: kindInt, i: int64(v)}, true
	case int32:
		return typedValue{kind: kindInt, i: int64(v)}, true
	case uint32:
		return typedValue{kind: kindInt, i: int64(v)}, true
	case int:
		return typedValue{kind: kindInt, i: int64(v)}, true
	case float32:
		return typedValue{kind: kindFloat, f: float64(v)}, true
	case float64:
		return typedValue{kind: kindFloat, f: v}, true
	case string:
		return typedValue{kind: kindString, s: v}, true
	}
	return typedValue{}, false
}

func (c *tagCompare) Evaluate(rec *sam.Record) bool {
	got, ok := c.value(rec)
	if !ok {
		// A missing tag cannot satisfy any comparison.
		return false
	}
	if got.kind == kindString || c.want.kind == kindString {
		if got.kind != kindString || c.want.kind != kindString {
			return false
		}
		return compareStrings(got.s, c.want.s, c.op)
	}
	if got.kind == kindInt && c.want.kind == kindInt {
		return compareInts(got.i, c.want.i, c.op)
	}
	gf, wf := got.f, c.want.f
	if got.kind == kindInt {
		gf = float64(got.i)
	}
	if c.want.kind == kindInt {
		wf = float64(c.want.i)
	}
	return compareFloats(gf, wf, c.op)
}

func compareInts(a, b int64, op compareOp) bool {
	switch op {
	case opEQ:
		return a == b
	case opLT:
		return a < b
	case opLTE:
		return a <= b
	case opGT:
		return a > b
	}
	return a >= b
}

func compareFloats(a, b float64, op compareOp) bool {
	switch op {
	case opEQ:
		return a == b
	case opLT:
		return a < b
	case opLTE:
		return a <= b
	case opGT:
		return a > b
	}
	return a >= b
}

func compareStrings(a, b string, op compareOp) bool {
	switch op {
	case opEQ:
		return a == b
	case opLT:
		return a < b
	case opLTE:
		return a <= b
	case opGT:
		return a > b
	}
	return a >= b
}

func (c *tagCompare) String() string {
	return fmt.Sprintf("%s %s %s", c.key, c.op, c.want)
}
func (c *tagCompare) Close() error { return nil }
