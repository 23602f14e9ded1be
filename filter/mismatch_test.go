package filter

import (
	"strings"
	"testing"

	"github.com/grailbio/bio/encoding/fasta"
	"github.com/grailbio/hts/sam"
	"github.com/gsc0107/ngsutils/dbsnp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 60bp of chr1: positions 0-3 spell ACGT and the pattern repeats.
const testRef = ">chr1\nACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGT\n"

// One catalogued A>G substitution at chr1:4 (columns: bin, chrom,
// chromStart, chromEnd, name, score, strand, refNCBI, refUCSC, observed,
// molType, class).
const testSNPs = "585\tchr1\t4\t5\trs1\t0\t+\tA\tA\tA/G\tgenomic\tsingle\n"

func testFasta(t *testing.T) fasta.Fasta {
	fa, err := fasta.New(strings.NewReader(testRef))
	require.NoError(t, err)
	return fa
}

func testCatalog(t *testing.T) *dbsnp.Catalog {
	db, err := dbsnp.Read(strings.NewReader(testSNPs))
	require.NoError(t, err)
	return db
}

func newAlignedRecord(name string, pos int, cigar sam.Cigar, seq string) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = chr1
	r.Pos = pos
	r.MateRef = nil
	r.MatePos = -1
	r.Cigar = cigar
	r.Seq = sam.NewSeq([]byte(seq))
	r.Qual = make([]byte, len(seq))
	return r
}

func zsValue(t *testing.T, rec *sam.Record) (int, bool) {
	aux := rec.AuxFields.Get(zsTag)
	if aux == nil {
		return 0, false
	}
	switch v := aux.Value().(type) {
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
	}
	t.Fatalf("unexpected ZS type %T", aux.Value())
	return 0, false
}

func TestMismatch(t *testing.T) {
	rec := newRecord("r", chr1, 0, 0, "ACGTGCGTAC")
	rec.AuxFields = append(rec.AuxFields, newAux(t, "NM", 1))

	for _, test := range []struct {
		max  string
		want bool
	}{
		{"0", false},
		{"1", true},
		{"2", true},
	} {
		c, err := newMismatch([]string{test.max})
		require.NoError(t, err)
		assert.Equal(t, test.want, c.Evaluate(rec), "max %s", test.max)
	}

	c, err := newMismatch([]string{"5"})
	require.NoError(t, err)
	// No NM tag: nothing to bound, so the record fails.
	assert.False(t, c.Evaluate(newRecord("nonm", chr1, 0, 0, "ACGT")))
	assert.False(t, c.Evaluate(newRecord("unmapped", nil, -1, sam.Unmapped, "ACGT")))

	// NM charges a 5-base deletion as 5, but it is a single event.
	delCigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 5),
		sam.NewCigarOp(sam.CigarDeletion, 5),
		sam.NewCigarOp(sam.CigarMatch, 5),
	}
	del := newAlignedRecord("del", 0, delCigar, "ACGTAGTACG")
	del.AuxFields = append(del.AuxFields, newAux(t, "NM", 5))
	c, err = newMismatch([]string{"1"})
	require.NoError(t, err)
	assert.True(t, c.Evaluate(del))
	c, err = newMismatch([]string{"0"})
	require.NoError(t, err)
	assert.False(t, c.Evaluate(del))
	assert.Equal(t, ">5 mismatches", c.String())
	one, err := newMismatch([]string{"1"})
	require.NoError(t, err)
	assert.Equal(t, ">1 mismatch", one.String())
}

func TestMismatchRef(t *testing.T) {
	c := &mismatchRef{max: 1, path: "ref.fa", ref: &refHandle{fa: testFasta(t)}}

	match10 := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 10)}
	// One substitution at position 4 (A>G).
	assert.True(t, c.Evaluate(newAlignedRecord("oneSub", 0, match10, "ACGTGCGTAC")))
	// Two substitutions (positions 4 and 7).
	assert.False(t, c.Evaluate(newAlignedRecord("twoSubs", 0, match10, "ACGTGCGAAC")))
	// A 3-base insertion counts as a single variation.
	insCigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 5),
		sam.NewCigarOp(sam.CigarInsertion, 3),
		sam.NewCigarOp(sam.CigarMatch, 5),
	}
	assert.True(t, c.Evaluate(newAlignedRecord("ins", 0, insCigar, "ACGTATTTCGTAC")))
	// A 2-base deletion also counts as one.
	delCigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 5),
		sam.NewCigarOp(sam.CigarDeletion, 2),
		sam.NewCigarOp(sam.CigarMatch, 5),
	}
	assert.True(t, c.Evaluate(newAlignedRecord("del", 0, delCigar, "ACGTATACGT")))

	assert.False(t, c.Evaluate(newRecord("unmapped", nil, -1, sam.Unmapped, "ACGT")))
	assert.Equal(t, ">1 mismatch in ref.fa", c.String())
}

func TestMismatchDbSNP(t *testing.T) {
	match10 := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 10)}

	// The NM shortcut passes without consulting the catalog or
	// annotating.
	c := &mismatchDbSNP{max: 1, db: testCatalog(t)}
	rec := newAlignedRecord("shortcut", 0, match10, "ACGTGCGTAC")
	rec.AuxFields = append(rec.AuxFields, newAux(t, "NM", 1), newAux(t, "MD", "4A5"))
	assert.True(t, c.Evaluate(rec))
	_, ok := zsValue(t, rec)
	assert.False(t, ok)

	// The shortcut counts a deletion run as one event: NM=5 for a
	// 5-base deletion satisfies max 1 without needing an MD tag.
	delCigar := sam.Cigar{
		sam.NewCigarOp(sam.CigarMatch, 5),
		sam.NewCigarOp(sam.CigarDeletion, 5),
		sam.NewCigarOp(sam.CigarMatch, 5),
	}
	del := newAlignedRecord("delShortcut", 0, delCigar, "ACGTAGTACG")
	del.AuxFields = append(del.AuxFields, newAux(t, "NM", 5))
	assert.True(t, c.Evaluate(del))

	// NM exceeds the bound, but the one substitution is the catalogued
	// A>G at position 4: zero true mismatches, and a ZS:i:1 annotation.
	c = &mismatchDbSNP{max: 0, db: testCatalog(t)}
	rec = newAlignedRecord("knownOnly", 0, match10, "ACGTGCGTAC")
	rec.AuxFields = append(rec.AuxFields, newAux(t, "NM", 1), newAux(t, "MD", "4A5"))
	assert.True(t, c.Evaluate(rec))
	known, ok := zsValue(t, rec)
	require.True(t, ok)
	assert.Equal(t, 1, known)

	// One catalogued substitution plus one novel one: the record fails
	// but is still annotated with the catalogued count.
	rec = newAlignedRecord("mixed", 0, match10, "ACGTGCGAAC")
	rec.AuxFields = append(rec.AuxFields, newAux(t, "NM", 2), newAux(t, "MD", "4A2T2"))
	assert.False(t, c.Evaluate(rec))
	known, ok = zsValue(t, rec)
	require.True(t, ok)
	assert.Equal(t, 1, known)

	// A record with a G at position 4 that is NOT the catalogued allele
	// (T is not observed) counts as a true mismatch.
	rec = newAlignedRecord("novel", 0, match10, "ACGTTCGTAC")
	rec.AuxFields = append(rec.AuxFields, newAux(t, "NM", 1), newAux(t, "MD", "4A5"))
	assert.False(t, c.Evaluate(rec))
	_, ok = zsValue(t, rec)
	assert.False(t, ok)

	assert.False(t, c.Evaluate(newRecord("unmapped", nil, -1, sam.Unmapped, "ACGT")))
}

func TestMismatchRefDbSNP(t *testing.T) {
	c := &mismatchRefDbSNP{max: 0, path: "ref.fa", ref: &refHandle{fa: testFasta(t)}, db: testCatalog(t)}
	match10 := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 10)}

	// No aux tags required: the catalogued substitution is found by
	// direct reference comparison.
	rec := newAlignedRecord("knownOnly", 0, match10, "ACGTGCGTAC")
	assert.True(t, c.Evaluate(rec))
	known, ok := zsValue(t, rec)
	require.True(t, ok)
	assert.Equal(t, 1, known)

	rec = newAlignedRecord("mixed", 0, match10, "ACGTGCGAAC")
	assert.False(t, c.Evaluate(rec))
	known, ok = zsValue(t, rec)
	require.True(t, ok)
	assert.Equal(t, 1, known)

	assert.False(t, c.Evaluate(newRecord("unmapped", nil, -1, sam.Unmapped, "ACGT")))
}
