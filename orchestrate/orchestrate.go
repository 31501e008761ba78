// Package orchestrate implements the Orchestrator (spec §4.H): it drives
// AncestorSelector and the two path finders across a batch of samples,
// using the bounded producer/worker/serializer channel pipeline described
// in spec §5, grounded in encoding/converter/convert.go's ConvertToBAM
// (single producer loop, fixed worker pool draining a bounded channel,
// github.com/grailbio/base/errors.Once collecting the first failure).
// Orchestrate adds a third stage — a single serializer goroutine — since
// spec §4.H calls for output writing to be decoupled from imputation.
package orchestrate

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/maize-genetics/phg-impute/ancestor"
	"github.com/maize-genetics/phg-impute/graph"
	"github.com/maize-genetics/phg-impute/pathfinder"
	"github.com/maize-genetics/phg-impute/phgerr"
	"github.com/maize-genetics/phg-impute/readmap"
)

// SampleInput is one unit of the producer channel: a sample's name and
// its already-computed ReadMappingCounts (spec §4.H point 1).
type SampleInput struct {
	Name   string
	Counts *readmap.Counts
}

// result is the internal type flowing from worker to serializer.
type result struct {
	sample  string
	path    pathfinder.Path
	summary Summary
}

// Run drives the full batch: for each input, runs AncestorSelector
// (when enabled) and the configured path finder, then serializes the
// output. Samples whose output already exists in opts.OutputDir are
// skipped (spec §4.H point 4, idempotent resume). Workers never share
// mutable state; g is read-only after construction.
//
// A sample that fails with a phgerr.MalformedInput, MissingReference, or
// IOFailure is logged and skipped; the rest of the batch continues (spec
// §7). A phgerr.InvariantViolation is not recoverable and is returned
// immediately, per spec §7's "fatal; indicates upstream graph corruption".
func Run(ctx context.Context, g *graph.Graph, inputs []SampleInput, opts Options) error {
	if err := opts.Validate(); err != nil {
		log.Panicf("orchestrate: invalid configuration: %v", err)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return phgerr.E(phgerr.IOFailure, "creating output dir", err)
	}

	const outputChanCap = 10
	inputCh := make(chan SampleInput, outputChanCap)
	outputCh := make(chan result, outputChanCap)
	var fatal errors.Once

	var wg sync.WaitGroup
	for i := 0; i < opts.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range inputCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r, err := processSample(g, in, opts)
				if err != nil {
					if phgerr.Is(err, phgerr.InvariantViolation) {
						fatal.Set(err)
						return
					}
					log.Error.Printf("orchestrate: sample %s failed: %v", in.Name, err)
					continue
				}
				select {
				case outputCh <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	var serializeErr errors.Once
	serializeDone := make(chan struct{})
	go func() {
		defer close(serializeDone)
		for r := range outputCh {
			if err := writeResult(ctx, opts.OutputDir, g, r); err != nil {
				serializeErr.Set(phgerr.E(phgerr.IOFailure, "writing output for sample ", r.sample, err))
			}
		}
	}()

	for _, in := range inputs {
		if alreadyDone(opts.OutputDir, in.Name) {
			log.Printf("orchestrate: skipping sample %s, output exists", in.Name)
			continue
		}
		select {
		case inputCh <- in:
		case <-ctx.Done():
			close(inputCh)
			wg.Wait()
			close(outputCh)
			<-serializeDone
			return ctx.Err()
		}
	}
	close(inputCh)
	wg.Wait()
	close(outputCh)
	<-serializeDone

	if err := fatal.Err(); err != nil {
		return err
	}
	return serializeErr.Err()
}

func alreadyDone(outputDir, sample string) bool {
	_, err := os.Stat(pathFilePath(outputDir, sample))
	return err == nil
}

func pathFilePath(outputDir, sample string) string {
	return filepath.Join(outputDir, sample+".path.tsv")
}

func summaryFilePath(outputDir, sample string) string {
	return filepath.Join(outputDir, sample+".summary.tsv")
}

// processSample runs AncestorSelector (if enabled) and the configured
// path finder for one sample (spec §4.H point 2).
func processSample(g *graph.Graph, in SampleInput, opts Options) (result, error) {
	candidates := g.SampleGametesInGraph()
	ancestorCount := 0
	if opts.UseLikelyAncestors {
		picks := ancestor.Select(g, in.Counts, candidates, ancestor.Options{
			MaxAncestors: opts.MaxAncestors,
			MinCoverage:  opts.MinCoverage,
		})
		candidates = make([]graph.SampleGamete, len(picks))
		for i, p := range picks {
			candidates[i] = p.Gamete
		}
		ancestorCount = len(picks)
	}

	ranges := g.FilterSparseRanges(opts.MinGametes)
	filter := pathfinder.FilterOptions{
		MinReadsPerRange: opts.MinReads,
		MaxReadsPerKb:    opts.MaxReadsPerKb,
		RemoveEqual:      opts.RemoveEqual,
	}

	var path pathfinder.Path
	switch opts.PathType {
	case Diploid:
		df := &pathfinder.DiploidPathFinder{
			ProbSame:              opts.ProbSameGamete,
			ProbCorrect:           opts.ProbCorrect,
			InbreedingCoefficient: opts.InbreedingCoefficient,
			Filter:                filter,
		}
		path = df.Run(g, in.Counts, candidates, ranges)
	default:
		hf := &pathfinder.HaploidPathFinder{
			ProbSame:    opts.ProbSameGamete,
			ProbCorrect: opts.ProbCorrect,
			Filter:      filter,
		}
		path = hf.Run(g, in.Counts, candidates, ranges)
	}

	totalReads := 0
	for _, r := range ranges {
		totalReads += in.Counts.Range(r).Total()
	}
	summary := Summary{
		Sample:        in.Name,
		RangesTotal:   len(ranges),
		RangesKept:    len(path),
		RangesDropped: len(ranges) - len(path),
		TotalReads:    totalReads,
		AncestorCount: ancestorCount,
	}
	return result{sample: in.Name, path: path, summary: summary}, nil
}
