// Package refseq loads FASTA reference sequences and serves subranges of
// them by reference id, the way an alignment decoder consumes them.
package refseq

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Repository holds a set of reference sequences in memory, addressable by
// id (load order) or by name. All methods are safe for concurrent use once
// the repository is built.
type Repository struct {
	names  []string
	byName map[string]int
	seqs   [][]byte
}

// Load reads a FASTA file, transparently decompressing .gz files.
func Load(path string) (*Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	repo, err := New(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return repo, nil
}

// New parses FASTA records from r. Sequence names stop at the first
// whitespace of the description line; bases are uppercased.
func New(r io.Reader) (*Repository, error) {
	repo := &Repository{byName: make(map[string]int)}

	var (
		name string
		seq  []byte
	)
	flush := func() {
		if name == "" {
			return
		}
		repo.byName[name] = len(repo.names)
		repo.names = append(repo.names, name)
		repo.seqs = append(repo.seqs, seq)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			fields := bytes.Fields(line[1:])
			if len(fields) == 0 {
				return nil, fmt.Errorf("unnamed sequence")
			}
			name, seq = string(fields[0]), nil
			if _, dup := repo.byName[name]; dup {
				return nil, fmt.Errorf("duplicate sequence %q", name)
			}
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("sequence data before first header line")
		}
		seq = append(seq, bytes.ToUpper(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	if len(repo.names) == 0 {
		return nil, fmt.Errorf("no sequences found")
	}
	return repo, nil
}

// Len returns the number of sequences.
func (r *Repository) Len() int { return len(r.names) }

// Names returns the sequence names in load order.
func (r *Repository) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// ID resolves a sequence name to its id.
func (r *Repository) ID(name string) (int, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// SequenceLength returns the length of sequence id.
func (r *Repository) SequenceLength(id int) (int, error) {
	if id < 0 || id >= len(r.seqs) {
		return 0, fmt.Errorf("reference id %d out of range (%d sequences)", id, len(r.seqs))
	}
	return len(r.seqs[id]), nil
}

// ReferenceSequence returns bases start through end of sequence id, both
// 1-based and inclusive. The returned slice aliases the repository's data
// and must not be modified.
func (r *Repository) ReferenceSequence(id, start, end int) ([]byte, error) {
	if id < 0 || id >= len(r.seqs) {
		return nil, fmt.Errorf("reference id %d out of range (%d sequences)", id, len(r.seqs))
	}
	seq := r.seqs[id]
	if start < 1 || end < start || end > len(seq) {
		return nil, fmt.Errorf("range %d-%d outside %s (1-%d)", start, end, r.names[id], len(seq))
	}
	return seq[start-1 : end], nil
}
