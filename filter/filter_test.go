package filter

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 1000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 2000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
)

func newRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, seq string) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MateRef = nil
	r.MatePos = -1
	r.Flags = flags
	if seq != "" {
		r.Seq = sam.NewSeq([]byte(seq))
		r.Qual = make([]byte, len(seq))
		r.Cigar = sam.Cigar{sam.NewCigarOp(sam.CigarMatch, len(seq))}
	}
	return r
}

func newAux(t *testing.T, name string, val interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(name), val)
	require.NoError(t, err)
	return aux
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{}, "no filtering criteria"},
		{[]string{"mapped"}, "criteria start with '-'"},
		{[]string{"-bogus"}, `unknown criterion "-bogus"`},
		{[]string{"-minlen"}, "-minlen requires 1 argument(s)"},
		{[]string{"-minlen", "fifty"}, `bad length "fifty"`},
		{[]string{"-eq", "NM:i", "abc"}, `"abc" is not an integer`},
		{[]string{"-exclude", "chr1"}, "not of the form chr:start-end"},
		{[]string{"-include", "chr1:1-10", "-include", "chr2:1-10"}, "single region"},
		{[]string{"-whitelist", "/nonexistent/names.txt"}, "-whitelist"},
	}
	for _, test := range tests {
		criteria, err := Parse(test.args)
		require.Error(t, err, "args: %v", test.args)
		assert.Contains(t, err.Error(), test.want)
		assert.Nil(t, criteria)
	}
}

func TestParseOrder(t *testing.T) {
	criteria, err := Parse([]string{"-mapped", "-minlen", "50", "-noqcfail", "-nosecondary", "-mask", "0x400"})
	require.NoError(t, err)
	require.Len(t, criteria, 5)
	assert.Equal(t, "is mapped", criteria[0].String())
	assert.Equal(t, "read length min: 50", criteria[1].String())
	assert.Equal(t, "no 0x200 (qcfail) flag", criteria[2].String())
	assert.Equal(t, "no 0x100 (secondary) flag", criteria[3].String())
	assert.Equal(t, "doesn't match flag: 1024", criteria[4].String())
	closeAll(criteria)

	// The deprecated -length spelling still builds a minimum-length
	// criterion.
	criteria, err = Parse([]string{"-length", "50"})
	require.NoError(t, err)
	require.Len(t, criteria, 1)
	assert.Equal(t, "read length min: 50", criteria[0].String())
	closeAll(criteria)
}

func TestMinMaxLength(t *testing.T) {
	min, err := newMinLength([]string{"50"})
	require.NoError(t, err)
	max, err := newMaxLength([]string{"50"})
	require.NoError(t, err)
	for _, test := range []struct {
		n                int
		wantMin, wantMax bool
	}{
		{49, false, true},
		{50, true, false},
		{51, true, false},
	} {
		rec := newRecord("r", chr1, 10, 0, seqOfLen(test.n))
		assert.Equal(t, test.wantMin, min.Evaluate(rec), "minlen, length %d", test.n)
		assert.Equal(t, test.wantMax, max.Evaluate(rec), "maxlen, length %d", test.n)
	}
}

func seqOfLen(n int) string {
	s := make([]byte, n)
	for i := range s {
		s[i] = "ACGT"[i%4]
	}
	return string(s)
}

func TestMapped(t *testing.T) {
	c, err := newMapped(nil)
	require.NoError(t, err)
	tests := []struct {
		flags sam.Flags
		want  bool
	}{
		{0, true},
		{sam.Unmapped, false},
		{sam.Paired, true},
		{sam.Paired | sam.Unmapped, false},
		{sam.Paired | sam.MateUnmapped, false},
		{sam.Paired | sam.Unmapped | sam.MateUnmapped, false},
	}
	for _, test := range tests {
		rec := newRecord("r", chr1, 10, test.flags, "ACGT")
		assert.Equal(t, test.want, c.Evaluate(rec), "flags %v", test.flags)
	}
}

func TestMaskFlag(t *testing.T) {
	for _, arg := range []string{"1024", "0x400"} {
		c, err := newMaskFlag([]string{arg})
		require.NoError(t, err)
		assert.True(t, c.Evaluate(newRecord("r", chr1, 10, 0, "ACGT")))
		assert.False(t, c.Evaluate(newRecord("r", chr1, 10, sam.Duplicate, "ACGT")))
	}
}

func TestTagCompare(t *testing.T) {
	withNM := func(v interface{}) *sam.Record {
		rec := newRecord("r", chr1, 10, 0, "ACGT")
		rec.AuxFields = append(rec.AuxFields, newAux(t, "NM", v))
		return rec
	}
	tests := []struct {
		args []string
		op   compareOp
		rec  *sam.Record
		want bool
	}{
		{[]string{"NM:i", "2"}, opEQ, withNM(2), true},
		{[]string{"NM:i", "2"}, opEQ, withNM(3), false},
		{[]string{"NM:i", "2"}, opLT, withNM(1), true},
		{[]string{"NM:i", "2"}, opLTE, withNM(2), true},
		{[]string{"NM:i", "2"}, opGT, withNM(2), false},
		{[]string{"NM:i", "2"}, opGTE, withNM(2), true},
		// Missing tag never passes, not even for "less than".
		{[]string{"NM:i", "2"}, opLT, newRecord("r", chr1, 10, 0, "ACGT"), false},
		// Int tag against a float literal promotes to float.
		{[]string{"NM", "1.5"}, opLT, withNM(1), true},
		{[]string{"NM", "1.5"}, opGT, withNM(2), true},
		// String literal against a numeric tag never matches.
		{[]string{"NM:Z", "two"}, opEQ, withNM(2), false},
	}
	for _, test := range tests {
		c, err := newTagCompare(test.op)(test.args)
		require.NoError(t, err)
		assert.Equal(t, test.want, c.Evaluate(test.rec), "%s vs %v", c, test.rec.AuxFields)
	}

	// A malformed type suffix is a construction error, never a silent
	// fallback to inference.
	for _, key := range []string{"NM:ii", "NM:", "NM:q"} {
		_, err := newTagCompare(opEQ)([]string{key, "2"})
		assert.Error(t, err, "key %q", key)
	}
}

func TestTagCompareString(t *testing.T) {
	rec := newRecord("r", chr1, 10, 0, "ACGT")
	rec.AuxFields = append(rec.AuxFields, newAux(t, "RG", "sample1"))
	c, err := newTagCompare(opEQ)([]string{"RG:Z", "sample1"})
	require.NoError(t, err)
	assert.True(t, c.Evaluate(rec))
	c, err = newTagCompare(opEQ)([]string{"RG:Z", "sample2"})
	require.NoError(t, err)
	assert.False(t, c.Evaluate(rec))
}

func TestTagCompareMAPQ(t *testing.T) {
	c, err := newTagCompare(opGTE)([]string{"MAPQ", "30"})
	require.NoError(t, err)
	rec := newRecord("r", chr1, 10, 0, "ACGT")
	rec.MapQ = 60
	assert.True(t, c.Evaluate(rec))
	rec.MapQ = 29
	assert.False(t, c.Evaluate(rec))
	assert.Equal(t, "MAPQ >= 30", c.String())
}

func TestWhitelistBlacklist(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "names.txt")
	// Only the first token of each line names a read.
	require.NoError(t, ioutil.WriteFile(path, []byte("read1\tcomment\n\nread3 extra\n"), 0644))

	white, err := newWhitelist([]string{path})
	require.NoError(t, err)
	black, err := newBlacklist([]string{path})
	require.NoError(t, err)
	for _, test := range []struct {
		name string
		want bool
	}{
		{"read1", true},
		{"read2", false},
		{"read3", true},
		{"comment", false},
	} {
		rec := newRecord(test.name, chr1, 10, 0, "ACGT")
		assert.Equal(t, test.want, white.Evaluate(rec), "whitelist %s", test.name)
		assert.Equal(t, !test.want, black.Evaluate(rec), "blacklist %s", test.name)
	}
	assert.Equal(t, fmt.Sprintf("whitelist: %s", path), white.String())
}
