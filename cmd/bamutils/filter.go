package main

import (
	"fmt"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	gbam "github.com/grailbio/bio/encoding/bam"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/hts/bam"
	"github.com/gsc0107/ngsutils/filter"
	"v.io/x/lib/cmdline"
)

const filterHelp = `Reads that fail any criterion are removed from the output.
Criteria are evaluated in the order given and evaluation stops at the
first failure.

CRITERIA:
   -minlen n                     Read length >= n
   -maxlen n                     Read length < n
   -mapped                       Read (and its mate, if paired) is mapped
   -mask flag                    No bit of flag is set (decimal or 0x hex)
   -noqcfail                     No 0x200 (qcfail) flag
   -nosecondary                  No 0x100 (secondary) flag

   -eq  tag[:type] value         Tag value == value
   -lt  tag[:type] value         Tag value <  value
   -lte tag[:type] value         Tag value <= value
   -gt  tag[:type] value         Tag value >  value
   -gte tag[:type] value         Tag value >= value
                                 type is i (int), f (float), or Z (string);
                                 without it the value type is inferred.
                                 The tag MAPQ compares the mapping quality.

   -whitelist file.txt           Read name is listed in file.txt
   -blacklist file.txt           Read name is not listed in file.txt

   -exclude chr:start-end        Read does not overlap the region (1-based)
   -include chr:start-end        Read overlaps the region (at most one -include)
   -excludebed file.bed          Read does not overlap any BED region
   -includebed file.bed          Read overlaps a BED region

   -mismatch n                   <= n mismatches per the NM tag; an indel
                                 counts as 1 regardless of length
   -mismatch_ref n ref.fa        <= n variations vs. the reference
   -mismatch_dbsnp n snps.txt.gz
                                 <= n variations that are not catalogued
                                 SNPs (requires MD tag); catalogued matches
                                 are counted in a ZS:i tag
   -mismatch_ref_dbsnp n ref.fa snps.txt.gz
                                 Same, using the reference instead of MD

EXAMPLE:
   bamutils filter in.bam out.bam -mapped -noqcfail -minlen 50 \
       -mismatch_dbsnp 2 snp150.txt.gz
`

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "filter",
		Short:    "Remove reads from a BAM file",
		Long:     filterHelp,
		ArgsName: "in.bam out.bam -criterion [args...] ...",
	}
	failedPath := cmd.Flags.String("failed", "", "Write the name of each removed read and the criterion that removed it to this file, one per line.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 3 {
			return fmt.Errorf("filter takes in.bam, out.bam and at least one criterion, but got %v", argv)
		}
		return runFilter(argv[0], argv[1], *failedPath, argv[2:])
	})
	return cmd
}

func runFilter(inPath, outPath, failedPath string, args []string) (err error) {
	criteria, err := filter.Parse(args)
	if err != nil {
		return err
	}
	closeCriteria := func() {
		for _, c := range criteria {
			_ = c.Close()
		}
	}

	ctx := vcontext.Background()
	provider := bamprovider.NewProvider(inPath)
	header, err := provider.GetHeader()
	if err != nil {
		closeCriteria()
		_ = provider.Close()
		return err
	}

	out, err := file.Create(ctx, outPath)
	if err != nil {
		closeCriteria()
		_ = provider.Close()
		return err
	}
	writer, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		closeCriteria()
		_ = out.Close(ctx)
		_ = provider.Close()
		return err
	}

	var failedOut io.Writer
	var failedFile file.File
	if failedPath != "" {
		if failedFile, err = file.Create(ctx, failedPath); err != nil {
			closeCriteria()
			_ = out.Close(ctx)
			_ = provider.Close()
			return err
		}
		failedOut = failedFile.Writer(ctx)
	}

	iter := provider.NewIterator(gbam.UniversalShard(header))
	passed, failed, err := filter.Run(iter, writer, criteria, failedOut)

	for _, closer := range []func() error{
		iter.Close,
		writer.Close,
		func() error { return out.Close(ctx) },
		provider.Close,
	} {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if failedFile != nil {
		if cerr := failedFile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("%d kept\n%d failed\n", passed, failed)
	return nil
}
