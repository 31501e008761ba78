package readmap

import (
	"bufio"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"

	"github.com/maize-genetics/phg-impute/phgerr"
)

// FileMeta carries the read-mapping file's header fields (spec §6):
// `sampleName=…`, `filename1=…`, optional `filename2=…`.
type FileMeta struct {
	SampleName string
	Filename1  string
	Filename2  string
}

type hapRow struct {
	HapIds string `tsv:"HapIds"`
	Count  int    `tsv:"count"`
}

// WriteFile writes rc to path in the read-mapping file format of spec §6:
// `#`-prefixed metadata lines, then a tab-separated body with a
// `HapIds<TAB>count` header written via github.com/grailbio/base/tsv,
// exactly as fusion/gene_db.go's ReadFusionEvents parses TSV bodies and
// pileup/snp/output.go writes them.
//
// The file format has no notion of reference range, so one file is
// written per range; callers name the file accordingly (e.g. embedding
// the RangeID or contig:start-end in the path).
func WriteFile(ctx context.Context, path string, meta FileMeta, rc *RangeCounts) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out.Writer(ctx))
	if _, err := bw.WriteString("#sampleName=" + meta.SampleName + "\n"); err != nil {
		return err
	}
	if _, err := bw.WriteString("#filename1=" + meta.Filename1 + "\n"); err != nil {
		return err
	}
	if meta.Filename2 != "" {
		if _, err := bw.WriteString("#filename2=" + meta.Filename2 + "\n"); err != nil {
			return err
		}
	}

	w := tsv.NewWriter(bw)
	sets := rc.Sets()
	sort.Slice(sets, func(i, j int) bool { return strings.Join(sets[i], ",") < strings.Join(sets[j], ",") })
	w.WriteString("HapIds")
	w.WriteString("count")
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, s := range sets {
		w.WriteString(strings.Join(s, ","))
		w.WriteString(strconv.Itoa(rc.Count(s)))
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return out.Close(ctx)
}

// ReadFile parses a read-mapping file previously written by WriteFile.
func ReadFile(ctx context.Context, path string) (FileMeta, *RangeCounts, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return FileMeta{}, nil, err
	}
	defer in.Close(ctx)

	br := bufio.NewReader(in.Reader(ctx))
	var meta FileMeta
	for {
		peek, err := br.Peek(1)
		if err != nil || len(peek) == 0 || peek[0] != '#' {
			break
		}
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return FileMeta{}, nil, err
		}
		line = strings.TrimSuffix(strings.TrimPrefix(line, "#"), "\n")
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			return FileMeta{}, nil, phgerr.E(phgerr.MalformedInput, "malformed header line: ", line)
		}
		switch kv[0] {
		case "sampleName":
			meta.SampleName = kv[1]
		case "filename1":
			meta.Filename1 = kv[1]
		case "filename2":
			meta.Filename2 = kv[1]
		}
	}

	r := tsv.NewReader(br)
	r.HasHeaderRow = true
	r.UseHeaderNames = true

	rc := newRangeCounts()
	for {
		var row hapRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return FileMeta{}, nil, phgerr.E(phgerr.MalformedInput, "reading ", path, err)
		}
		ids := strings.Split(row.HapIds, ",")
		set := newHapSet(ids)
		h := set.hash()
		rc.sets[h] = set
		rc.counts[h] = row.Count
	}
	return meta, rc, nil
}
