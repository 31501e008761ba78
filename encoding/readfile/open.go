package readfile

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// Source is an open read-file stream together with the close function for
// the underlying file.File. Gzip-compressed inputs (.fastq.gz, .fq.gz) are
// transparently decompressed.
type Source struct {
	r     io.Reader
	close func() error
}

// Reader returns the (possibly decompressed) byte stream.
func (s *Source) Reader() io.Reader { return s.r }

// Close releases the underlying file and, for compressed sources, the
// decompressor.
func (s *Source) Close() error { return s.close() }

// Open opens a read file (FASTQ, optionally gzip-compressed) at path, which
// may be a local path or any scheme understood by github.com/grailbio/base/file
// (e.g. s3://bucket/key).
func Open(ctx context.Context, path string) (*Source, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	r := f.Reader(ctx)
	if isGzip(path) {
		gz, err := gzip.NewReader(r)
		if err != nil {
			f.Close(ctx)
			return nil, err
		}
		return &Source{r: gz, close: func() error {
			gzErr := gz.Close()
			fErr := f.Close(ctx)
			if gzErr != nil {
				return gzErr
			}
			return fErr
		}}, nil
	}
	return &Source{r: r, close: func() error { return f.Close(ctx) }}, nil
}

func isGzip(path string) bool {
	return strings.HasSuffix(path, ".gz")
}
