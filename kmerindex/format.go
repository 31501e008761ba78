package kmerindex

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"

	"github.com/maize-genetics/phg-impute/encoding/bgzf"
	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/kmer"
	"github.com/maize-genetics/phg-impute/phgerr"
)

const bgzfSuffix = ".bgzf"

// Write serializes idx to path in the three-line-per-range format of
// spec §6: a ">contig:start-end" header, one line of comma-separated
// little-endian 64-bit row words, and one line of comma-separated
// "hash@offset" pairs. Ranges are written in ascending RangeID order, so
// a subsequent Read reconstructs the same RangeID assignment as long as
// it is applied to a Graph built from the same input.
//
// A path ending in ".bgzf" is written through a bgzf.Writer instead of
// raw text, matching bio-pileup's "-format tsv-bgz" option: large
// pangenome indexes benefit from bgzf's block boundaries even though the
// index itself is read start-to-finish rather than randomly accessed.
func Write(ctx context.Context, path string, idx *KmerIndex, ranges []graph.ReferenceRange) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	var dst io.Writer = out.Writer(ctx)
	var bw *bgzf.Writer
	if strings.HasSuffix(path, bgzfSuffix) {
		bw, err = bgzf.NewWriter(dst, gzip.DefaultCompression)
		if err != nil {
			return err
		}
		dst = bw
	}
	w := bufio.NewWriter(dst)

	for rid, r := range ranges {
		rows := idx.Ranges[rid]
		if _, err := w.WriteString(">" + r.Contig + ":" + strconv.FormatInt(r.Start, 10) + "-" + strconv.FormatInt(r.End, 10) + "\n"); err != nil {
			return err
		}
		if err := writeRowLine(w, rows); err != nil {
			return err
		}
		if err := writeKmerLine(w, idx, graph.RangeID(rid)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if bw != nil {
		if err := bw.Close(); err != nil {
			return err
		}
	}
	return out.Close(ctx)
}

func writeRowLine(w *bufio.Writer, rows RangeRows) error {
	first := true
	for _, row := range rows.Rows {
		for _, word := range row {
			if !first {
				if _, err := w.WriteString(","); err != nil {
					return err
				}
			}
			first = false
			if _, err := w.WriteString(strconv.FormatUint(word, 10)); err != nil {
				return err
			}
		}
	}
	_, err := w.WriteString("\n")
	return err
}

// TODO: this rescans every shard for every range; track a per-range kmer
// list at Build time instead once index files grow past dev-sized graphs.
func writeKmerLine(w *bufio.Writer, idx *KmerIndex, rid graph.RangeID) error {
	first := true
	for _, shard := range idx.shards {
		for k, tuples := range shard {
			for _, t := range tuples {
				if t.Range != rid {
					continue
				}
				if !first {
					if _, err := w.WriteString(","); err != nil {
						return err
					}
				}
				first = false
				if _, err := w.WriteString(strconv.FormatInt(int64(k), 10)); err != nil {
					return err
				}
				if _, err := w.WriteString("@"); err != nil {
					return err
				}
				if _, err := w.WriteString(strconv.FormatUint(uint64(t.Offset), 10)); err != nil {
					return err
				}
			}
		}
	}
	_, err := w.WriteString("\n")
	return err
}

// Read parses a k-mer index file previously written by Write.
// numHapsPerRange must give, for each range in file order, the number of
// haplotypes at that range (from the Graph the index was built against),
// since the file itself does not carry haplotype counts explicitly.
func Read(ctx context.Context, path string, numHapsPerRange []int) (*KmerIndex, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer in.Close(ctx)

	var src io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, bgzfSuffix) {
		// bgzf is a sequence of independent, concatenated gzip members; a
		// standard gzip reader decodes it start-to-finish exactly like a
		// single-member stream, since Read never needs bgzf's random-access
		// virtual offsets.
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		src = gz
	}

	idx := newIndex(len(numHapsPerRange))
	scanner := bufio.NewScanner(src)
	scanner.Buffer(nil, 1<<26)

	for rid := 0; rid < len(numHapsPerRange); rid++ {
		if !scanner.Scan() {
			return nil, phgerr.E(phgerr.MalformedInput, "k-mer index truncated before range ", rid)
		}
		header := scanner.Text()
		if !strings.HasPrefix(header, ">") {
			return nil, phgerr.E(phgerr.MalformedInput, "expected range header at range ", rid, ", got ", header)
		}

		if !scanner.Scan() {
			return nil, phgerr.E(phgerr.MalformedInput, "k-mer index truncated: missing row line for range ", rid)
		}
		wordsPerRow := (numHapsPerRange[rid] + 63) / 64
		if wordsPerRow == 0 {
			wordsPerRow = 1
		}
		rows, err := parseRowLine(scanner.Text(), wordsPerRow)
		if err != nil {
			return nil, phgerr.E(phgerr.MalformedInput, "range ", rid, err)
		}
		idx.Ranges[rid] = RangeRows{NumHaps: numHapsPerRange[rid], WordsPerRow: wordsPerRow, Rows: rows}

		if !scanner.Scan() {
			return nil, phgerr.E(phgerr.MalformedInput, "k-mer index truncated: missing kmer line for range ", rid)
		}
		if err := parseKmerLine(scanner.Text(), graph.RangeID(rid), idx); err != nil {
			return nil, phgerr.E(phgerr.MalformedInput, "range ", rid, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

func parseRowLine(line string, wordsPerRow int) ([][]uint64, error) {
	if line == "" {
		return nil, nil
	}
	parts := strings.Split(line, ",")
	if len(parts)%wordsPerRow != 0 {
		return nil, phgerr.E(phgerr.MalformedInput, "row word count not a multiple of wordsPerRow")
	}
	nRows := len(parts) / wordsPerRow
	rows := make([][]uint64, nRows)
	for i := 0; i < nRows; i++ {
		row := make([]uint64, wordsPerRow)
		for j := 0; j < wordsPerRow; j++ {
			v, err := strconv.ParseUint(parts[i*wordsPerRow+j], 10, 64)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}

func parseKmerLine(line string, rid graph.RangeID, idx *KmerIndex) error {
	if line == "" {
		return nil
	}
	for _, pair := range strings.Split(line, ",") {
		at := strings.IndexByte(pair, '@')
		if at < 0 {
			return phgerr.E(phgerr.MalformedInput, "malformed hash@offset pair: ", pair)
		}
		hashVal, err := strconv.ParseInt(pair[:at], 10, 64)
		if err != nil {
			return err
		}
		offset, err := strconv.ParseUint(pair[at+1:], 10, 32)
		if err != nil {
			return err
		}
		idx.insert(kmer.Kmer(uint64(hashVal)), Tuple{Range: rid, Offset: uint32(offset)})
	}
	return nil
}
