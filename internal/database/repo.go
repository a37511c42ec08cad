package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a lookup yields no record.
	ErrNotFound = errors.New("record not found")
	// ErrEmptyTarget is returned when a mutation misses its target argument.
	ErrEmptyTarget = errors.New("empty target")
	// ErrEmptyValues is returned when create/update receives nothing to write.
	ErrEmptyValues = errors.New("empty values")
)

// Query narrows or extends a select (where clauses, ordering, eager loads).
type Query func(*bun.SelectQuery) *bun.SelectQuery

// WithRelation eager-loads a named related entity, e.g. "Permission".
func WithRelation(name string) Query {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Relation(name)
	}
}

// Repo is the uniform CRUD adapter shared by user, permission and nonce
// records. It operates over bun.IDB so the same repository serves both plain
// connections and transaction handles.
type Repo[M any] struct {
	db bun.IDB
}

func NewRepo[M any](db bun.IDB) *Repo[M] {
	return &Repo[M]{db: db}
}

// WithTx returns a copy of the repository bound to the given handle.
func (r *Repo[M]) WithTx(tx bun.IDB) *Repo[M] {
	return &Repo[M]{db: tx}
}

// Create inserts the record, assigning a fresh id when the caller left it zero.
func (r *Repo[M]) Create(ctx context.Context, model *M) (*M, error) {
	if model == nil {
		return nil, ErrEmptyValues
	}

	assignID(model)

	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	return model, nil
}

// One returns the single record matching the query, or ErrNotFound.
func (r *Repo[M]) One(ctx context.Context, queries ...Query) (*M, error) {
	if len(queries) == 0 {
		return nil, ErrEmptyValues
	}

	model := new(M)
	q := r.db.NewSelect().Model(model)
	for _, apply := range queries {
		q = apply(q)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find one: %w", err)
	}
	return model, nil
}

// ByID resolves a record by primary key, eager-loading any named relations.
func (r *Repo[M]) ByID(ctx context.Context, id uuid.UUID, relations ...string) (*M, error) {
	if id == uuid.Nil {
		return nil, ErrEmptyTarget
	}

	queries := []Query{func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.id = ?", id)
	}}
	for _, rel := range relations {
		queries = append(queries, WithRelation(rel))
	}
	return r.One(ctx, queries...)
}

// All returns every record matching the query.
func (r *Repo[M]) All(ctx context.Context, queries ...Query) ([]M, error) {
	var models []M
	q := r.db.NewSelect().Model(&models)
	for _, apply := range queries {
		q = apply(q)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}
	return models, nil
}

// AllAndCount returns matching records together with the unpaginated total.
func (r *Repo[M]) AllAndCount(ctx context.Context, queries ...Query) ([]M, int, error) {
	var models []M
	q := r.db.NewSelect().Model(&models)
	for _, apply := range queries {
		q = apply(q)
	}

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("find and count: %w", err)
	}
	return models, count, nil
}

// FindOrCreate returns the record matching the query, creating candidate
// when none exists. The boolean reports whether a create happened.
func (r *Repo[M]) FindOrCreate(ctx context.Context, candidate *M, queries ...Query) (*M, bool, error) {
	found, err := r.One(ctx, queries...)
	if err == nil {
		return found, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	created, err := r.Create(ctx, candidate)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// Count returns the number of records matching the query.
func (r *Repo[M]) Count(ctx context.Context, queries ...Query) (int, error) {
	q := r.db.NewSelect().Model((*M)(nil))
	for _, apply := range queries {
		q = apply(q)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Aggregate computes MAX/MIN/SUM over a column for the matching records.
func (r *Repo[M]) Aggregate(ctx context.Context, fn, column string, queries ...Query) (float64, error) {
	switch fn {
	case "max", "min", "sum":
	default:
		return 0, fmt.Errorf("unsupported aggregate %q", fn)
	}

	q := r.db.NewSelect().Model((*M)(nil)).
		ColumnExpr(fmt.Sprintf("COALESCE(%s(?), 0)", fn), bun.Ident(column))
	for _, apply := range queries {
		q = apply(q)
	}

	// integer columns come back as int64, so scan through NullFloat64
	var result sql.NullFloat64
	if err := q.Scan(ctx, &result); err != nil {
		return 0, fmt.Errorf("aggregate %s(%s): %w", fn, column, err)
	}
	return result.Float64, nil
}

// Update writes the named columns of an already-loaded record.
func (r *Repo[M]) Update(ctx context.Context, model *M, columns ...string) (*M, error) {
	if model == nil {
		return nil, ErrEmptyTarget
	}
	if len(columns) == 0 {
		return nil, ErrEmptyValues
	}

	q := r.db.NewUpdate().Model(model).
		Column(columns...).
		Set("updated_at = CURRENT_TIMESTAMP").
		WherePK()

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrNotFound
	}
	return model, nil
}

// UpdateByID resolves the target by primary key first, then applies mutate
// and persists the named columns.
func (r *Repo[M]) UpdateByID(ctx context.Context, id uuid.UUID, mutate func(*M), columns ...string) (*M, error) {
	if id == uuid.Nil {
		return nil, ErrEmptyTarget
	}

	model, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	mutate(model)
	return r.Update(ctx, model, columns...)
}

// Remove soft-deletes the record: bun stamps deleted_at and every select on
// a soft-delete model excludes stamped rows by default.
func (r *Repo[M]) Remove(ctx context.Context, model *M) error {
	if model == nil {
		return ErrEmptyTarget
	}

	res, err := r.db.NewDelete().Model(model).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// assignID fills a zero uuid primary key on the known models.
func assignID(model any) {
	switch m := model.(type) {
	case *User:
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	case *Permission:
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	case *Nonce:
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
	}
}
