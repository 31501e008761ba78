package graph

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"

	"github.com/maize-genetics/phg-impute/phgerr"
	"github.com/maize-genetics/phg-impute/sequence"
)

// ParseFiles reads the haplotype-VCF files at paths and returns the
// unordered stream of Tuples they declare, ready for Build. Construction
// is parallel over files via a bounded channel: one goroutine per file
// parses and sends Tuples, a single collector goroutine appends them to
// the result slice, matching the producer/consumer split described in
// spec §4.A and grounded in encoding/converter/convert.go's ConvertToBAM
// channel-plus-WaitGroup-plus-errors.Once pattern.
func ParseFiles(ctx context.Context, paths []string) ([]Tuple, error) {
	const chanCap = 4096
	tupleCh := make(chan Tuple, chanCap)
	var wg sync.WaitGroup
	var err errors.Once

	for _, p := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			if e := parseFile(ctx, path, tupleCh); e != nil {
				err.Set(phgerr.E(phgerr.MalformedInput, "parsing haplotype VCF ", path, e))
			}
		}(p)
	}
	go func() {
		wg.Wait()
		close(tupleCh)
	}()

	var tuples []Tuple
	for t := range tupleCh {
		tuples = append(tuples, t)
	}
	return tuples, err.Err()
}

// parseFile parses one haplotype-VCF file, sending each declared tuple to
// out. The concrete line format is:
//
//	##hapId=<id> region=<region> checksum=<hex>
//	#CONTIG	START	END	SAMPLE	GAMETE	HAPID
//	chr1	0	1000	B73	0	HAP_1a2b3c
//
// Blank lines are ignored. Metadata (## lines) may appear in any order
// relative to the data rows that reference them, since a single pass
// collects both before any tuple is emitted.
func parseFile(ctx context.Context, path string, out chan<- Tuple) error {
	in, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer in.Close(ctx)

	meta := make(map[string]HapMetadata)
	var rows []Tuple

	scanner := bufio.NewScanner(in.Reader(ctx))
	scanner.Buffer(nil, 1<<24)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "##"):
			id, m, e := parseMetaLine(line)
			if e != nil {
				return errors.E(e, "line", lineNo, path)
			}
			meta[id] = m
		case strings.HasPrefix(line, "#"):
			continue // header row, columns are fixed
		default:
			t, e := parseDataLine(line)
			if e != nil {
				return errors.E(e, "line", lineNo, path)
			}
			rows = append(rows, t)
		}
	}
	if e := scanner.Err(); e != nil {
		return e
	}

	for _, t := range rows {
		if m, ok := meta[t.HapID]; ok {
			t.Meta = m
		}
		select {
		case out <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func parseMetaLine(line string) (hapID string, meta HapMetadata, err error) {
	fields := strings.Fields(strings.TrimPrefix(line, "##"))
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "hapId":
			hapID = kv[1]
		case "region":
			meta.AssemblyRegion = kv[1]
		case "checksum":
			v, e := strconv.ParseUint(kv[1], 16, 64)
			if e != nil {
				return "", HapMetadata{}, errors.E(e, "invalid checksum")
			}
			meta.Checksum = v
			meta.HasChecksum = true
		}
	}
	if hapID == "" {
		return "", HapMetadata{}, errors.New("## metadata line missing hapId")
	}
	return hapID, meta, nil
}

func parseDataLine(line string) (Tuple, error) {
	cols := strings.Split(line, "\t")
	if len(cols) != 6 {
		return Tuple{}, errors.New("expected 6 tab-separated columns, got " + strconv.Itoa(len(cols)))
	}
	start, e := strconv.ParseInt(cols[1], 10, 64)
	if e != nil {
		return Tuple{}, errors.E(e, "invalid start")
	}
	end, e := strconv.ParseInt(cols[2], 10, 64)
	if e != nil {
		return Tuple{}, errors.E(e, "invalid end")
	}
	gameteIdx, e := strconv.Atoi(cols[4])
	if e != nil {
		return Tuple{}, errors.E(e, "invalid gamete index")
	}
	return Tuple{
		Range:  ReferenceRange{Contig: cols[0], Start: start, End: end},
		Gamete: SampleGamete{Sample: cols[3], Gamete: gameteIdx},
		HapID:  cols[5],
	}, nil
}

// Validate cross-checks the sequence checksum recorded in each
// haplotype's metadata against the sequence returned by provider, the
// "supplemented feature" of SPEC_FULL.md §Supplemented-features 1. A
// mismatch, or a hapId with no backing sequence at all, surfaces as
// phgerr.MissingReference.
func (g *Graph) Validate(ctx context.Context, provider sequence.Provider, checksum func(string) uint64) error {
	for rid, r := range g.ranges {
		d := &g.data[rid]
		for _, hapID := range d.hapIDs {
			seq, err := provider.GetSequence(ctx, hapID, r.Contig, r.Start, r.End)
			if err != nil {
				return phgerr.E(phgerr.MissingReference, "hapId ", hapID, " at ", r, err)
			}
			m, ok := d.hapMeta[hapID]
			if !ok || !m.HasChecksum {
				continue
			}
			if got := checksum(seq); got != m.Checksum {
				log.Error.Printf("checksum mismatch for hapId %s at %+v: got %x want %x", hapID, r, got, m.Checksum)
				return phgerr.E(phgerr.MissingReference, "checksum mismatch for hapId ", hapID)
			}
		}
	}
	return nil
}

// ValidateContigLengths cross-checks every reference range's contig and
// end coordinate against refLengths (as produced by
// encoding/fasta.FaiToReferenceLengths from a *.fai index), catching a
// haplotype-VCF that names a contig absent from the reference or a range
// that runs past the end of its contig without needing to fetch any
// sequence at all.
func (g *Graph) ValidateContigLengths(refLengths map[string]uint64) error {
	for _, r := range g.ranges {
		length, ok := refLengths[r.Contig]
		if !ok {
			return phgerr.E(phgerr.MissingReference, "contig ", r.Contig, " not present in reference index")
		}
		if uint64(r.End) > length {
			return phgerr.E(phgerr.MissingReference, "range ", r, " runs past contig ", r.Contig, " length ", length)
		}
	}
	return nil
}
