package main

import (
	"fmt"
	"os"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	gbam "github.com/grailbio/bio/encoding/bam"
	"github.com/grailbio/bio/encoding/bamprovider"
	"github.com/grailbio/hts/bam"
	"github.com/gsc0107/ngsutils/tagger"
	"v.io/x/lib/cmdline"
)

const tagHelp = `Every read is written to the output with the requested
transformations applied, in the order the flags appear on the command
line.  The output is written to a temporary file and renamed into place
once the whole input has been processed.  An existing out.bam is left
untouched unless -f is given.

EXAMPLE:
   bamutils tag -suffix /testing -xs -tag PG:Z:bamutils in.bam out.bam
`

// transformerFlags collects -suffix, -xs, and -tag occurrences in
// command line order.  All three flags append to the same list, so the
// pipeline runs in exactly the order the user wrote.
type transformerFlags struct {
	list []tagger.Transformer
}

type suffixFlag struct{ t *transformerFlags }

func (f suffixFlag) String() string { return "" }
func (f suffixFlag) Set(s string) error {
	f.t.list = append(f.t.list, &tagger.Suffix{Text: s})
	return nil
}

type xsFlag struct{ t *transformerFlags }

func (f xsFlag) String() string   { return "false" }
func (f xsFlag) IsBoolFlag() bool { return true }
func (f xsFlag) Set(s string) error {
	if s == "true" {
		f.t.list = append(f.t.list, tagger.XS{})
	}
	return nil
}

type auxFlag struct{ t *transformerFlags }

func (f auxFlag) String() string { return "" }
func (f auxFlag) Set(s string) error {
	aux, err := tagger.NewAux(s)
	if err != nil {
		return err
	}
	f.t.list = append(f.t.list, aux)
	return nil
}

func newCmdTag() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "tag",
		Short:    "Rewrite read names and tags in a BAM file",
		Long:     tagHelp,
		ArgsName: "in.bam out.bam",
	}
	var transformers transformerFlags
	cmd.Flags.Var(suffixFlag{&transformers}, "suffix", "Append this string to every read name.")
	cmd.Flags.Var(xsFlag{&transformers}, "xs", "Stamp an XS:A:+/- strand tag on every mapped read.")
	cmd.Flags.Var(auxFlag{&transformers}, "tag", "Attach a constant KEY[:TYPE]:VALUE tag to every read; repeatable.")
	force := cmd.Flags.Bool("f", false, "Overwrite out.bam if it already exists.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("tag takes in.bam and out.bam, but got %v", argv)
		}
		if len(transformers.list) == 0 {
			return fmt.Errorf("tag requires at least one of -suffix, -xs, -tag")
		}
		return runTag(argv[0], argv[1], transformers.list, *force)
	})
	return cmd
}

func runTag(inPath, outPath string, transformers []tagger.Transformer, force bool) (err error) {
	if !force {
		if _, serr := os.Stat(outPath); serr == nil {
			return fmt.Errorf("%s exists; use -f to overwrite", outPath)
		}
	}

	ctx := vcontext.Background()
	provider := bamprovider.NewProvider(inPath)
	header, err := provider.GetHeader()
	if err != nil {
		_ = provider.Close()
		return err
	}

	tmpPath := outPath + ".tmp"
	out, err := file.Create(ctx, tmpPath)
	if err != nil {
		_ = provider.Close()
		return err
	}
	writer, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		_ = out.Close(ctx)
		_ = provider.Close()
		return err
	}

	iter := provider.NewIterator(gbam.UniversalShard(header))
	count, err := tagger.Run(iter, writer, transformers)

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
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err = os.Rename(tmpPath, outPath); err != nil {
		return err
	}
	fmt.Printf("%d reads written\n", count)
	return nil
}
