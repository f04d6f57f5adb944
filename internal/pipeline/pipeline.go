// Package pipeline streams annotated sentence records through entity and
// relation validation, extracts additional relation candidates from
// matched entities, and partitions the results into auto-import and
// human-review queues.
package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/extract"
	"github.com/factgate/factgate/internal/relevance"
	"github.com/factgate/factgate/internal/validate"
)

// Stream-level counter keys. Validation keys live in the validate
// package; these cover input handling.
const (
	statTotalSentences = "total_sentences"
	statMalformedLines = "malformed_lines"
	statRecordErrors   = "record_errors"
)

// scanBufferSize bounds a single input line. Annotator sentences are
// short but page-level records can carry hundreds of entities.
const scanBufferSize = 4 * 1024 * 1024

// Pipeline validates a stream of sentence records against one canonical
// index and one immutable configuration.
type Pipeline struct {
	cfg     validate.Config
	index   *canon.Index
	workers int
}

// New builds a pipeline. An empty canonical index is the one fatal
// condition: every downstream decision depends on it, so refusing to run
// beats silently routing everything to review. workers < 1 means
// sequential processing.
func New(cfg validate.Config, index *canon.Index, workers int) (*Pipeline, error) {
	if index == nil || index.Len() == 0 {
		return nil, fmt.Errorf("pipeline: canonical index is empty, refusing to run")
	}
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{cfg: cfg, index: index, workers: workers}, nil
}

// Result accumulates the three partitions and the merged counters for
// one run. Partitions are not yet deduplicated; Export does that.
type Result struct {
	SafeRelations   []*validate.ValidatedRelation
	ReviewEntities  []*validate.ValidatedEntity
	ReviewRelations []*validate.ValidatedRelation
	Stats           *validate.Stats
}

func (r *Result) merge(other *Result) {
	r.SafeRelations = append(r.SafeRelations, other.SafeRelations...)
	r.ReviewEntities = append(r.ReviewEntities, other.ReviewEntities...)
	r.ReviewRelations = append(r.ReviewRelations, other.ReviewRelations...)
	r.Stats.Merge(other.Stats)
}

// worker holds one goroutine's validators and partial result. Each
// worker owns its counters; the pipeline merges them afterward instead
// of sharing one contended map.
type worker struct {
	entities  *validate.EntityValidator
	relations *validate.RelationValidator
	extractor *extract.Extractor
	out       *Result
}

func (p *Pipeline) newWorker() *worker {
	ev := validate.NewEntityValidator(p.cfg, p.index, relevance.NewClassifier())
	return &worker{
		entities:  ev,
		relations: validate.NewRelationValidator(p.cfg, ev),
		extractor: extract.NewExtractor(p.index, ev.Stats()),
		out: &Result{
			Stats: ev.Stats(),
		},
	}
}

// processLine decodes and validates one input line. Malformed lines and
// records that blow up mid-processing are counted and dropped; one bad
// record never aborts the batch.
func (w *worker) processLine(line []byte) {
	var rec SentenceRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		w.out.Stats.Bump(statMalformedLines)
		return
	}
	w.out.Stats.Bump(statTotalSentences)

	defer func() {
		if r := recover(); r != nil {
			w.out.Stats.Bump(statRecordErrors)
		}
	}()
	w.processRecord(rec)
}

func (w *worker) processRecord(rec SentenceRecord) {
	// Every tagged entity goes through the rule chain; accepted new
	// entities are review candidates.
	for _, cand := range rec.Entities {
		out := w.entities.Validate(cand, rec.Sentence)
		if out.Accepted() && out.Entity.IsNew {
			w.out.ReviewEntities = append(w.out.ReviewEntities, out.Entity)
		}
	}

	// Relation candidates come from two places: the annotator's own
	// relations and extraction over canonically matched entities.
	candidates := rec.Relations
	matched := w.extractor.MatchEntities(rec.Entities)
	candidates = append(candidates, w.extractor.Extract(matched, rec.Sentence)...)

	for _, cand := range candidates {
		out := w.relations.Validate(cand, rec.Sentence)
		if !out.Accepted() {
			continue
		}
		if out.Relation.Subject.IsNew || out.Relation.Object.IsNew {
			w.out.ReviewRelations = append(w.out.ReviewRelations, out.Relation)
		} else {
			w.out.SafeRelations = append(w.out.SafeRelations, out.Relation)
		}
	}
}

// Run consumes line-delimited sentence records from r until EOF. With
// more than one worker, which duplicate of a key counts as "first seen"
// at export time is implementation-defined; partitions and counters are
// identical either way.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufferSize)

	if p.workers == 1 {
		w := p.newWorker()
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			w.processLine(scanner.Bytes())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: read input: %w", err)
		}
		return w.out, nil
	}

	lines := make(chan []byte, p.workers*4)
	workers := make([]*worker, p.workers)
	var wg sync.WaitGroup
	for i := range workers {
		workers[i] = p.newWorker()
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			for line := range lines {
				w.processLine(line)
			}
		}(workers[i])
	}

	var readErr error
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines <- line
	}
	close(lines)
	wg.Wait()

	if readErr != nil {
		return nil, readErr
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: read input: %w", err)
	}

	total := &Result{Stats: validate.NewStats()}
	for _, w := range workers {
		total.merge(w.out)
	}
	return total, nil
}

// RunFile runs the pipeline over one input file. A missing file is a
// warning, not an error: later stages may legitimately have nothing to
// validate.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("pipeline: input %s not found, treating as empty", path)
			return &Result{Stats: validate.NewStats()}, nil
		}
		return nil, fmt.Errorf("pipeline: open input: %w", err)
	}
	defer f.Close()
	return p.Run(ctx, f)
}
