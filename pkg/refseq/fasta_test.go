package refseq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFASTA = `>chr1 test sequence
ACGTACGTAC
gtacgtacgt
>chr2
NNNNACGT
`

func TestParseFASTA(t *testing.T) {
	repo, err := New(strings.NewReader(testFASTA))
	require.NoError(t, err)

	assert.Equal(t, 2, repo.Len())
	assert.Equal(t, []string{"chr1", "chr2"}, repo.Names())

	id, ok := repo.ID("chr2")
	require.True(t, ok)
	assert.Equal(t, 1, id)

	_, ok = repo.ID("chrX")
	assert.False(t, ok)

	n, err := repo.SequenceLength(0)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestReferenceSequenceRanges(t *testing.T) {
	repo, err := New(strings.NewReader(testFASTA))
	require.NoError(t, err)

	// Lowercase input is uppercased; coordinates are 1-based inclusive.
	seq, err := repo.ReferenceSequence(0, 9, 12)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(seq))

	seq, err = repo.ReferenceSequence(1, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, "NNNNACGT", string(seq))

	_, err = repo.ReferenceSequence(0, 0, 5)
	assert.Error(t, err)
	_, err = repo.ReferenceSequence(0, 15, 25)
	assert.Error(t, err)
	_, err = repo.ReferenceSequence(2, 1, 1)
	assert.Error(t, err)
}

func TestLoadPlainAndGzip(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(plain, []byte(testFASTA), 0o644))

	gzPath := filepath.Join(dir, "ref.fa.gz")
	f, err := os.Create(gzPath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testFASTA))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	for _, path := range []string{plain, gzPath} {
		repo, err := Load(path)
		require.NoError(t, err, path)
		assert.Equal(t, 2, repo.Len())
	}
}

func TestParseErrors(t *testing.T) {
	_, err := New(strings.NewReader(""))
	assert.Error(t, err)

	_, err = New(strings.NewReader("ACGT\n"))
	assert.Error(t, err)

	_, err = New(strings.NewReader(">a\nAC\n>a\nGT\n"))
	assert.Error(t, err)
}
