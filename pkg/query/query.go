// Package query builds and runs filtered queries over a partitioned
// variant dataset.
//
// A query moves through NEW, WHERE_BUILT and EXECUTED, then streams its
// results and ends DONE or FAILED. Parameters are compiled and bins planned
// before any backend call, so grammar and parameter errors fail fast.
// Results are deduplicated by summary variant or by family variant and
// come in no particular order unless Params.SortResults is set.
package query

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// State of a query
type State int

const (
	StateNew State = iota
	StateWhereBuilt
	StateExecuted
	StateStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateWhereBuilt:
		return "WHERE_BUILT"
	case StateExecuted:
		return "EXECUTED"
	case StateStreaming:
		return "STREAMING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// errStopped ends a stream that reached its limit or lost its consumer
var errStopped = errors.New("stream stopped")

// kind holds what differs between summary and family queries
type kind[T any] struct {
	name       string
	statements func(Backend, *Plan) ([]Statement[T], error)
	match      func(*Filter, T) bool
	dedup      func() func(T) bool
	record     func(T) (*spillRecord, error)
	restore    func(*spillRecord) (T, error)
}

func dedupBy[T any, K comparable](key func(T) K) func() func(T) bool {
	return func() func(T) bool {
		seen := make(map[K]struct{})
		return func(v T) bool {
			k := key(v)
			if _, ok := seen[k]; ok {
				return false
			}
			seen[k] = struct{}{}
			return true
		}
	}
}

// Engine runs queries against one dataset through one backend
type Engine struct {
	ds      *dataset.Dataset
	backend Backend
	planner *Planner

	// SortBuffer is the number of results sorted in memory before
	// spilling to disk
	SortBuffer int
}

func NewEngine(ds *dataset.Dataset, backend Backend) *Engine {
	return &Engine{ds: ds, backend: backend, planner: NewPlanner(ds), SortBuffer: 100000}
}

func (e *Engine) Dataset() *dataset.Dataset { return e.ds }
func (e *Engine) Backend() Backend          { return e.backend }

func (e *Engine) chromRank(chrom string) int {
	chroms := e.ds.Descriptor().Chromosomes
	if i := slices.Index(chroms, chrom); i >= 0 {
		return i
	}
	return len(chroms)
}

func (e *Engine) summaryKind() *kind[*variants.SummaryVariant] {
	codec := e.ds.Codec()
	return &kind[*variants.SummaryVariant]{
		name:       "summary",
		statements: Backend.SummaryStatements,
		match:      (*Filter).MatchSummary,
		dedup: dedupBy(func(sv *variants.SummaryVariant) dataset.SummaryKey {
			return dataset.SummaryKey{BucketIndex: int32(sv.BucketIndex()), SummaryIndex: int32(sv.SummaryIndex())}
		}),
		record: func(sv *variants.SummaryVariant) (*spillRecord, error) {
			data, err := codec.EncodeSummary(sv)
			if err != nil {
				return nil, err
			}
			return &spillRecord{Key: sortKey{
				ChromRank:    e.chromRank(sv.Chrom()),
				Chrom:        sv.Chrom(),
				Position:     sv.Position(),
				BucketIndex:  sv.BucketIndex(),
				SummaryIndex: sv.SummaryIndex(),
			}, Data: data}, nil
		},
		restore: func(rec *spillRecord) (*variants.SummaryVariant, error) {
			return codec.DecodeSummary(rec.Data)
		},
	}
}

func (e *Engine) familyKind() *kind[*variants.FamilyVariant] {
	codec := e.ds.Codec()
	return &kind[*variants.FamilyVariant]{
		name:       "family",
		statements: Backend.FamilyStatements,
		match:      (*Filter).MatchFamily,
		dedup: dedupBy(func(fv *variants.FamilyVariant) dataset.FamilyKey {
			return dataset.FamilyKey{FamilyID: fv.FamilyID(), BucketIndex: int32(fv.BucketIndex()), SummaryIndex: int32(fv.SummaryIndex())}
		}),
		record: func(fv *variants.FamilyVariant) (*spillRecord, error) {
			data, err := codec.EncodeFamily(fv)
			if err != nil {
				return nil, err
			}
			return &spillRecord{Key: sortKey{
				ChromRank:    e.chromRank(fv.Chrom()),
				Chrom:        fv.Chrom(),
				Position:     fv.Position(),
				FamilyID:     fv.FamilyID(),
				BucketIndex:  fv.BucketIndex(),
				SummaryIndex: fv.SummaryIndex(),
			}, Matched: fv.MatchedAlleles, Data: data}, nil
		},
		restore: func(rec *spillRecord) (*variants.FamilyVariant, error) {
			fv, err := codec.DecodeFamily(rec.Data, e.ds.Families())
			if err != nil {
				return nil, err
			}
			fv.MatchedAlleles = rec.Matched
			return fv, nil
		},
	}
}

// Query is one query through its states. It is safe to inspect from
// several goroutines, but only one stream may run at a time.
type Query[T any] struct {
	ID     uuid.UUID
	Params *Params

	engine *Engine
	kind   *kind[T]

	mu         sync.Mutex
	state      State
	err        error
	plan       *Plan
	statements []Statement[T]
	cancel     context.CancelFunc
}

func newQuery[T any](e *Engine, k *kind[T], p *Params) *Query[T] {
	return &Query[T]{ID: uuid.New(), Params: p, engine: e, kind: k}
}

// SummaryQuery prepares a summary variant query
func (e *Engine) SummaryQuery(p *Params) *Query[*variants.SummaryVariant] {
	if p.familyLevel() {
		log.Debug("family filters do not apply to summary variant queries")
	}
	return newQuery(e, e.summaryKind(), p)
}

// FamilyQuery prepares a family variant query
func (e *Engine) FamilyQuery(p *Params) *Query[*variants.FamilyVariant] {
	return newQuery(e, e.familyKind(), p)
}

func (q *Query[T]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Err returns the error that failed the query
func (q *Query[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *Query[T]) fail(err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = StateFailed
	q.err = err
	return err
}

func (q *Query[T]) logger() *log.Entry {
	return log.WithFields(log.Fields{"query": q.ID, "kind": q.kind.name, "backend": q.engine.backend.Name()})
}

// BuildWhere compiles the parameters, plans the bins and prepares the
// backend statements
func (q *Query[T]) BuildWhere() error {
	q.mu.Lock()
	if q.state != StateNew {
		q.mu.Unlock()
		return ErrInvalidState
	}
	q.mu.Unlock()

	e := q.engine
	f, err := Compile(q.Params, e.ds.Families())
	if err != nil {
		return q.fail(err)
	}
	h := e.planner.Plan(f)
	plan := &Plan{Filter: f, Heuristics: h, Batches: e.planner.Batches(h)}
	statements, err := q.kind.statements(e.backend, plan)
	if err != nil {
		return q.fail(err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.plan = plan
	q.statements = statements
	q.state = StateWhereBuilt
	q.logger().WithFields(log.Fields{
		"region_bins":    len(h.RegionBins),
		"coding_bins":    h.CodingBins,
		"frequency_bins": h.FrequencyBins,
		"family_bins":    len(h.FamilyBins),
		"statements":     len(statements),
	}).Debug("query planned")
	return nil
}

// Plan returns the plan made by BuildWhere
func (q *Query[T]) Plan() *Plan {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.plan
}

// Statements returns the text of the backend statements
func (q *Query[T]) Statements() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.statements))
	for i, s := range q.statements {
		out[i] = s.Text
	}
	return out
}

// Execute starts the query and returns its results. A finished query may
// be executed again; a streaming one may not. The query deadline starts
// here.
func (q *Query[T]) Execute(ctx context.Context) (iter.Seq2[T, error], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != StateWhereBuilt && q.state != StateDone {
		return nil, ErrInvalidState
	}
	if q.Params.Timeout > 0 {
		ctx, q.cancel = context.WithTimeout(ctx, q.Params.Timeout)
	} else {
		ctx, q.cancel = context.WithCancel(ctx)
	}
	q.state = StateExecuted
	return q.stream(ctx, q.cancel), nil
}

// Close aborts a running stream
func (q *Query[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
	}
}

func (q *Query[T]) stream(ctx context.Context, cancel context.CancelFunc) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		q.mu.Lock()
		if q.state != StateExecuted {
			q.mu.Unlock()
			var zero T
			yield(zero, ErrInvalidState)
			return
		}
		q.state = StateStreaming
		q.mu.Unlock()
		defer cancel()

		n, err := q.run(ctx, yield)
		if err != nil && !errors.Is(err, errStopped) {
			q.fail(err)
			q.logger().WithError(err).Debug("query failed")
			var zero T
			yield(zero, err)
			return
		}
		q.mu.Lock()
		q.state = StateDone
		q.mu.Unlock()
		q.logger().WithField("results", n).Debug("query done")
	}
}

// run pulls every statement through the in-memory filter, deduplication,
// optional sort and limit. It returns the number of results yielded.
func (q *Query[T]) run(ctx context.Context, yield func(T, error) bool) (int, error) {
	p := q.Params
	keep := q.kind.dedup()
	n := 0
	emit := func(v T) error {
		if !yield(v, nil) {
			return errStopped
		}
		n++
		if p.Limit > 0 && n >= p.Limit {
			return errStopped
		}
		return nil
	}

	var sorter *Sorter
	if p.SortResults {
		sorter = NewSorter(q.engine.SortBuffer)
		defer sorter.Close()
	}

	for _, stmt := range q.statements {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		q.logger().WithField("statement", stmt.Text).Debug("executing")
		for v, err := range stmt.Execute(ctx) {
			if err != nil {
				return n, err
			}
			if !p.SkipInMemoryFiltering && !q.kind.match(q.plan.Filter, v) {
				continue
			}
			if !keep(v) {
				continue
			}
			if sorter != nil {
				rec, err := q.kind.record(v)
				if err != nil {
					return n, err
				}
				if err := sorter.Add(rec); err != nil {
					return n, err
				}
				continue
			}
			if err := emit(v); err != nil {
				return n, err
			}
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
	}

	if sorter == nil {
		return n, nil
	}
	for rec, err := range sorter.Sorted() {
		if err != nil {
			return n, err
		}
		v, err := q.kind.restore(rec)
		if err != nil {
			return n, err
		}
		if err := emit(v); err != nil {
			return n, err
		}
	}
	return n, nil
}

func runQuery[T any](ctx context.Context, q *Query[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := q.BuildWhere(); err != nil {
			yield(zero, err)
			return
		}
		rows, err := q.Execute(ctx)
		if err != nil {
			yield(zero, err)
			return
		}
		for v, err := range rows {
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// QuerySummaryVariants streams the summary variants with an allele
// matching p
func (e *Engine) QuerySummaryVariants(ctx context.Context, p *Params) iter.Seq2[*variants.SummaryVariant, error] {
	return runQuery(ctx, e.SummaryQuery(p))
}

// QueryVariants streams the family variants with an allele matching p
func (e *Engine) QueryVariants(ctx context.Context, p *Params) iter.Seq2[*variants.FamilyVariant, error] {
	return runQuery(ctx, e.FamilyQuery(p))
}

// Collect drains a result sequence
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CountFamilyVariants counts the family variants matching p. Queries that
// only filter by region, family and member sets are answered from the
// family index without decoding variants; family variants with unknown
// genotypes are then counted too.
func (e *Engine) CountFamilyVariants(ctx context.Context, p *Params) (int, error) {
	if p.summaryLevel() {
		n := 0
		for _, err := range e.QueryVariants(ctx, p) {
			if err != nil {
				return 0, err
			}
			n++
		}
		return n, nil
	}
	f, err := Compile(p, e.ds.Families())
	if err != nil {
		return 0, err
	}
	n, err := e.ds.CountFamilyVariants(ctx, e.planner.Plan(f).FamilyFilter(), f.MatchFamilyIndexRow)
	if err != nil {
		return 0, err
	}
	if p.Limit > 0 {
		n = min(n, p.Limit)
	}
	return n, nil
}
