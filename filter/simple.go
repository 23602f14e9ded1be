package filter

import (
	"fmt"
	"strconv"

	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

type minLength struct{ min int }

func newMinLength(args []string) (Criterion, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, errors.Errorf("bad length %q", args[0])
	}
	return &minLength{n}, nil
}

func (c *minLength) Evaluate(rec *sam.Record) bool { return rec.Seq.Length >= c.min }
func (c *minLength) String() string                { return fmt.Sprintf("read length min: %d", c.min) }
func (c *minLength) Close() error                  { return nil }

type maxLength struct{ max int }

func newMaxLength(args []string) (Criterion, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, errors.Errorf("bad length %q", args[0])
	}
	return &maxLength{n}, nil
}

func (c *maxLength) Evaluate(rec *sam.Record) bool { return rec.Seq.Length < c.max }
func (c *maxLength) String() string                { return fmt.Sprintf("read length max: %d", c.max) }
func (c *maxLength) Close() error                  { return nil }

// mapped passes records that are mapped and, for paired records, whose
// mate is mapped as well.
type mapped struct{}

func newMapped([]string) (Criterion, error) { return mapped{}, nil }

func (mapped) Evaluate(rec *sam.Record) bool {
	f := rec.Flags
	if f&sam.Paired != 0 && (f&sam.Unmapped != 0 || f&sam.MateUnmapped != 0) {
		return false
	}
	return f&sam.Unmapped == 0
}
func (mapped) String() string { return "is mapped" }
func (mapped) Close() error   { return nil }

type maskFlag struct{ mask sam.Flags }

func newMaskFlag(args []string) (Criterion, error) {
	// Base 0 accepts both decimal and 0x-prefixed hex masks.
	v, err := strconv.ParseUint(args[0], 0, 16)
	if err != nil {
		return nil, errors.Errorf("bad flag mask %q", args[0])
	}
	return &maskFlag{sam.Flags(v)}, nil
}

func (c *maskFlag) Evaluate(rec *sam.Record) bool { return rec.Flags&c.mask == 0 }
func (c *maskFlag) String() string                { return fmt.Sprintf("doesn't match flag: %d", c.mask) }
func (c *maskFlag) Close() error                  { return nil }

type noQCFail struct{}

func newNoQCFail([]string) (Criterion, error) { return noQCFail{}, nil }

func (noQCFail) Evaluate(rec *sam.Record) bool { return rec.Flags&sam.QCFail == 0 }
func (noQCFail) String() string                { return "no 0x200 (qcfail) flag" }
func (noQCFail) Close() error                  { return nil }

type noSecondary struct{}

func newNoSecondary([]string) (Criterion, error) { return noSecondary{}, nil }

func (noSecondary) Evaluate(rec *sam.Record) bool { return rec.Flags&sam.Secondary == 0 }
func (noSecondary) String() string                { return "no 0x100 (secondary) flag" }
func (noSecondary) Close() error                  { return nil }
