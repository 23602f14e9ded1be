package filter

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// readNameSet loads the first whitespace-delimited token of every
// nonempty line into a set.  The whole file is read at construction; the
// criterion owns no open handle afterwards.
func readNameSet(path string) (map[string]struct{}, error) {
	ctx := vcontext.Background()
	infile, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer infile.Close(ctx) // nolint: errcheck
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(infile.Reader(ctx))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		names[fields[0]] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading name list %s", path)
	}
	return names, nil
}

type whitelist struct {
	path  string
	names map[string]struct{}
}

func newWhitelist(args []string) (Criterion, error) {
	names, err := readNameSet(args[0])
	if err != nil {
		return nil, err
	}
	return &whitelist{args[0], names}, nil
}

func (c *whitelist) Evaluate(rec *sam.Record) bool {
	_, ok := c.names[rec.Name]
	return ok
}
func (c *whitelist) String() string { return fmt.Sprintf("whitelist: %s", c.path) }
func (c *whitelist) Close() error   { return nil }

type blacklist struct {
	path  string
	names map[string]struct{}
}

func newBlacklist(args []string) (Criterion, error) {
	names, err := readNameSet(args[0])
	if err != nil {
		return nil, err
	}
	return &blacklist{args[0], names}, nil
}

func (c *blacklist) Evaluate(rec *sam.Record) bool {
	_, ok := c.names[rec.Name]
	return !ok
}
func (c *blacklist) String() string { return fmt.Sprintf("blacklist: %s", c.path) }
func (c *blacklist) Close() error   { return nil }
