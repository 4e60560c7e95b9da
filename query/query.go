// Package query provides a fluent, chainable description of one deferred
// read or mutation against a named collection.
//
//	rows, err := query.From(exec, "profiles").Select().Eq("id", uid).Single(ctx)
//	res, err := query.From(exec, "certificates").Insert(cert).Select().Execute(ctx)
//
// Nothing runs until Execute or Single is called.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/stevemurr/eden-shim/collection"
)

// ErrNoPayload is returned when a mutation is executed without data.
var ErrNoPayload = errors.New("query: mutation has no payload")

// Executor runs the operations a Builder describes. *collection.Store
// implements it; a remote backend client can too.
type Executor interface {
	Read(ctx context.Context, name string, filters []collection.Filter) ([]collection.Record, error)
	Insert(ctx context.Context, name string, records []collection.Record) ([]collection.Record, error)
	Update(ctx context.Context, name string, filters []collection.Filter, patch collection.Record) (collection.PatchResult, error)
	Upsert(ctx context.Context, name string, records []collection.Record) ([]collection.Record, error)
}

// Kind is the pending intent of a Builder.
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindUpsert
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindUpsert:
		return "upsert"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Result is what an executed Builder produces. For updates Data holds the
// applied patch and Count the number of records it touched; otherwise Count
// is len(Data).
type Result struct {
	Data  []collection.Record
	Count int
}

// Builder accumulates one operation. Every chain method mutates and returns
// the same Builder. It is not safe for concurrent use.
type Builder struct {
	exec       Executor
	collection string
	kind       Kind
	records    []collection.Record
	patch      collection.Record
	filters    []collection.Filter
	columns    []string
}

// From starts a query against the named collection.
func From(exec Executor, name string) *Builder {
	return &Builder{exec: exec, collection: name}
}

// Select asks for rows to be returned, optionally projected onto columns
// ("*" or none means all fields). It never changes a pending insert, update
// or upsert back into a read: insert(...).select() means "insert, then
// return what was inserted".
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = columns
	return b
}

func (b *Builder) Insert(records ...collection.Record) *Builder {
	b.kind = KindInsert
	b.records = records
	return b
}

func (b *Builder) Update(patch collection.Record) *Builder {
	b.kind = KindUpdate
	b.patch = patch
	return b
}

func (b *Builder) Upsert(records ...collection.Record) *Builder {
	b.kind = KindUpsert
	b.records = records
	return b
}

// Eq adds an equality constraint. Constraints are conjunctive.
func (b *Builder) Eq(field string, value any) *Builder {
	b.filters = append(b.filters, collection.Eq(field, value))
	return b
}

func (b *Builder) Kind() Kind { return b.kind }

func (b *Builder) Collection() string { return b.collection }

// Filters returns a copy of the accumulated constraints.
func (b *Builder) Filters() []collection.Filter {
	return append([]collection.Filter(nil), b.filters...)
}

// Execute runs the composed operation.
//
// Filters only apply to reads and updates; inserts and upserts ignore them.
func (b *Builder) Execute(ctx context.Context) (Result, error) {
	switch b.kind {
	case KindInsert:
		if len(b.records) == 0 {
			return Result{}, ErrNoPayload
		}
		rows, err := b.exec.Insert(ctx, b.collection, b.records)
		return b.rows(rows, err)
	case KindUpsert:
		if len(b.records) == 0 {
			return Result{}, ErrNoPayload
		}
		rows, err := b.exec.Upsert(ctx, b.collection, b.records)
		return b.rows(rows, err)
	case KindUpdate:
		if b.patch == nil {
			return Result{}, ErrNoPayload
		}
		res, err := b.exec.Update(ctx, b.collection, b.filters, b.patch)
		if err != nil {
			return Result{}, err
		}
		return Result{Data: []collection.Record{res.Data}, Count: res.Count}, nil
	default:
		rows, err := b.exec.Read(ctx, b.collection, b.filters)
		return b.rows(rows, err)
	}
}

// rows projects the returned records. An error that comes with rows (the
// not-found condition) is passed through alongside them.
func (b *Builder) rows(rows []collection.Record, err error) (Result, error) {
	rows = project(rows, b.columns)
	return Result{Data: rows, Count: len(rows)}, err
}

// Single runs the operation and returns its first row. No rows is reported as
// collection.ErrNotFound for every collection, not only profiles looked up by
// id. This is stricter than the mock it stands in for, which resolves an
// empty single read with null data; it matches a remote backend, where an
// object request with zero rows is an error. Callers that expect "maybe one
// row" should use Execute and inspect Data.
func (b *Builder) Single(ctx context.Context) (collection.Record, error) {
	res, err := b.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, collection.ErrNotFound
	}
	return res.Data[0], nil
}

func project(rows []collection.Record, columns []string) []collection.Record {
	if len(columns) == 0 {
		return rows
	}
	for _, c := range columns {
		if c == "*" {
			return rows
		}
	}
	out := make([]collection.Record, len(rows))
	for i, r := range rows {
		p := make(collection.Record, len(columns))
		for _, c := range columns {
			if v, ok := r[c]; ok {
				p[c] = v
			}
		}
		out[i] = p
	}
	return out
}
