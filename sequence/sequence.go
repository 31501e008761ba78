// Package sequence provides the pluggable "sequence provider" interface
// of spec §6 (`getSequence(hapId, range) → string of ACGT`) plus two
// concrete implementations, mirroring the teacher's habit of offering
// both a local/file-backed and an external-process-backed data source
// (encoding/fasta's local reader vs. an external compressed-genome tool).
package sequence

import (
	"context"
	"os/exec"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"

	"github.com/maize-genetics/phg-impute/encoding/fasta"
)

// Provider resolves the nucleotide sequence for a haplotype at a
// reference range, identified by its (contig, start, end) rather than by
// the graph package's ReferenceRange type, so that this package has no
// dependency on graph (graph depends on this package to validate
// checksums, so the reverse edge would be a cycle). Implementations must
// be safe for concurrent use, since KmerIndexBuilder calls GetSequence
// from multiple goroutines.
type Provider interface {
	// GetSequence returns the ACGT sequence for hapID at [start, end) on
	// contig. Implementations return a non-nil error when hapID has no
	// backing sequence; callers such as graph.Validate and kmerindex.Build
	// classify it as phgerr.MissingReference.
	GetSequence(ctx context.Context, hapID, contig string, start, end int64) (string, error)
}

// FASTAProvider resolves sequences from a single FASTA file (local or
// s3://) keyed by hapId rather than by chromosome name: the sequence name
// in the FASTA record is expected to equal the hapId exactly.
type FASTAProvider struct {
	fa     fasta.Fasta
	closer func(context.Context) error
}

// NewFASTAProvider opens path (which may be an s3:// URI, via
// github.com/grailbio/base/file) and loads it entirely into memory using
// the auto-detecting decompressing reader, matching pileup/common.go's
// LoadFa. For a reference too large to hold in memory, use
// NewIndexedFASTAProvider instead.
func NewFASTAProvider(ctx context.Context, path string) (*FASTAProvider, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sequence source %s", path)
	}
	defer in.Close(ctx)
	r, _ := compress.NewReader(in.Reader(ctx))
	defer r.Close()
	fa, err := fasta.New(r)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing FASTA %s", path)
	}
	return &FASTAProvider{fa: fa}, nil
}

// NewIndexedFASTAProvider opens fastaPath (which may be an s3:// URI) and
// resolves sequences by random-access reads against a *.fai index built
// by GenerateIndex (the index-fasta subcommand), instead of loading the
// whole reference into memory. Both paths may be local or s3://. The
// returned provider keeps fastaPath open for the lifetime of the
// provider; callers must call Close when done with it.
func NewIndexedFASTAProvider(ctx context.Context, fastaPath, faiPath string) (*FASTAProvider, error) {
	faIn, err := file.Open(ctx, fastaPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening sequence source %s", fastaPath)
	}
	faiIn, err := file.Open(ctx, faiPath)
	if err != nil {
		faIn.Close(ctx)
		return nil, errors.Wrapf(err, "opening FASTA index %s", faiPath)
	}
	defer faiIn.Close(ctx)
	fa, err := fasta.NewIndexed(faIn.Reader(ctx), faiIn.Reader(ctx))
	if err != nil {
		faIn.Close(ctx)
		return nil, errors.Wrapf(err, "parsing FASTA index %s", faiPath)
	}
	return &FASTAProvider{fa: fa, closer: func(ctx context.Context) error { return faIn.Close(ctx) }}, nil
}

// Close releases the file handle opened by NewIndexedFASTAProvider. It is
// a no-op for a provider returned by NewFASTAProvider, which does not
// keep a file open past construction.
func (p *FASTAProvider) Close(ctx context.Context) error {
	if p.closer == nil {
		return nil
	}
	return p.closer(ctx)
}

// GetSequence implements Provider.
func (p *FASTAProvider) GetSequence(ctx context.Context, hapID, contig string, start, end int64) (string, error) {
	n, err := p.fa.Len(hapID)
	if err != nil {
		return "", errors.Wrapf(err, "hapId %s has no sequence in FASTA source", hapID)
	}
	return p.fa.Get(hapID, 0, n)
}

// ExecProvider shells out to an external compressed-genome tool for each
// lookup, the way the reference implementation of spec §6 does. The
// command is invoked as `<cmd> <hapID> <contig> <start> <end>` and must
// print the ACGT sequence to stdout.
type ExecProvider struct {
	cmd  string
	args []string
}

// NewExecProvider returns a Provider that runs cmd with args followed by
// the hapId, contig, start, and end for every lookup.
func NewExecProvider(cmd string, args ...string) *ExecProvider {
	return &ExecProvider{cmd: cmd, args: args}
}

// GetSequence implements Provider.
func (p *ExecProvider) GetSequence(ctx context.Context, hapID, contig string, start, end int64) (string, error) {
	args := append(append([]string{}, p.args...), hapID, contig,
		itoa(start), itoa(end))
	out, err := exec.CommandContext(ctx, p.cmd, args...).Output()
	if err != nil {
		return "", errors.Wrapf(err, "executing sequence provider %s for hapId %s", p.cmd, hapID)
	}
	return strings.TrimSpace(string(out)), nil
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
