package main

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/gsc0107/ngsutils/tagger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagRefusesOverwrite(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	outPath := filepath.Join(tmpDir, "out.bam")
	require.NoError(t, ioutil.WriteFile(outPath, []byte("existing"), 0644))

	transformers := []tagger.Transformer{&tagger.Suffix{Text: "/test"}}
	err := runTag(filepath.Join(tmpDir, "in.bam"), outPath, transformers, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use -f to overwrite")

	// The existing file is untouched.
	data, err := ioutil.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
}

func TestTagMissingInput(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	transformers := []tagger.Transformer{&tagger.Suffix{Text: "/test"}}
	err := runTag(filepath.Join(tmpDir, "nope.bam"), filepath.Join(tmpDir, "out.bam"), transformers, true)
	require.Error(t, err)
}
