package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Column is a writable column of a resource table.
type Column struct {
	Name string
	// Default is an SQL expression used on insert when the value is NULL.
	Default string
}

// Resource describes how one record type maps onto its table. A single
// generic Repository serves every resource kind from this metadata.
type Resource[T any] struct {
	// Label names a single record in messages, e.g. "expense".
	Label   string
	Table   string
	Columns []Column
	OrderBy string
	// Owner is the column holding the owning user id, empty for shared
	// reference data.
	Owner string
	// Scan reads id followed by Columns, in order.
	Scan func(Scanner) (T, error)
	// Values returns the column values of a record, in Columns order.
	Values func(T) []any
}

// Owned reports whether rows of the resource belong to a user.
func (r Resource[T]) Owned() bool {
	return r.Owner != ""
}

type queries struct {
	list, get, insert, update, delete, owner string
}

func buildQueries[T any](res Resource[T]) queries {
	names := make([]string, len(res.Columns))
	inserts := make([]string, len(res.Columns))
	sets := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		placeholder := fmt.Sprintf("$%d", i+1)
		names[i] = c.Name
		inserts[i] = placeholder
		if c.Default != "" {
			inserts[i] = fmt.Sprintf("COALESCE(%s, %s)", placeholder, c.Default)
		}
		sets[i] = c.Name + " = " + placeholder
	}
	selected := "id, " + strings.Join(names, ", ")

	q := queries{
		list: fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", selected, res.Table, res.OrderBy),
		get:  fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selected, res.Table),
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			res.Table, strings.Join(names, ", "), strings.Join(inserts, ", "), selected),
		update: fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING %s",
			res.Table, strings.Join(sets, ", "), len(res.Columns)+1, selected),
		delete: fmt.Sprintf("DELETE FROM %s WHERE id = $1", res.Table),
	}
	if res.Owned() {
		q.owner = fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", res.Owner, res.Table)
	}
	return q
}

// Repository implements list/get/create/update/delete over one table.
// Each method issues exactly one statement.
type Repository[T any] struct {
	db  *sql.DB
	res Resource[T]
	q   queries
}

// NewRepository prepares the SQL for a resource.
func NewRepository[T any](db *sql.DB, res Resource[T]) *Repository[T] {
	return &Repository[T]{db: db, res: res, q: buildQueries(res)}
}

// List returns every row in the resource's canonical order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	rows, err := r.db.QueryContext(ctx, r.q.list)
	if err != nil {
		return nil, classify(err, r.res.Label, opList)
	}
	defer rows.Close()

	records := make([]T, 0)
	for rows.Next() {
		rec, err := r.res.Scan(rows)
		if err != nil {
			return nil, classify(err, r.res.Label, opList)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, r.res.Label, opList)
	}
	return records, nil
}

// Get returns one row by id.
func (r *Repository[T]) Get(ctx context.Context, id int64) (T, error) {
	rec, err := r.res.Scan(r.db.QueryRowContext(ctx, r.q.get, id))
	if err != nil {
		return rec, r.rowError(err, id, opGet)
	}
	return rec, nil
}

// Create inserts a record and returns the stored row, including the
// generated id and defaulted columns.
func (r *Repository[T]) Create(ctx context.Context, rec T) (T, error) {
	created, err := r.res.Scan(r.db.QueryRowContext(ctx, r.q.insert, r.res.Values(rec)...))
	if err != nil {
		return created, classify(err, r.res.Label, opCreate)
	}
	slog.DebugContext(ctx, "Record created", "table", r.res.Table)
	return created, nil
}

// Update overwrites every writable column of the row with the given id.
func (r *Repository[T]) Update(ctx context.Context, id int64, rec T) (T, error) {
	args := append(r.res.Values(rec), id)
	updated, err := r.res.Scan(r.db.QueryRowContext(ctx, r.q.update, args...))
	if err != nil {
		return updated, r.rowError(err, id, opUpdate)
	}
	return updated, nil
}

// Delete removes the row with the given id.
func (r *Repository[T]) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.q.delete, id)
	if err != nil {
		return classify(err, r.res.Label, opDelete)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, r.res.Label, opDelete)
	}
	if n == 0 {
		return r.notFound(id)
	}
	return nil
}

// OwnerOf returns the owning user of a row. It fails for shared resources.
func (r *Repository[T]) OwnerOf(ctx context.Context, id int64) (int64, error) {
	if !r.res.Owned() {
		return 0, fmt.Errorf("%s records have no owner", r.res.Label)
	}
	var owner int64
	if err := r.db.QueryRowContext(ctx, r.q.owner, id).Scan(&owner); err != nil {
		return 0, r.rowError(err, id, opGet)
	}
	return owner, nil
}

func (r *Repository[T]) rowError(err error, id int64, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return r.notFound(id)
	}
	return classify(err, r.res.Label, op)
}

func (r *Repository[T]) notFound(id int64) error {
	return notFoundError(r.res.Label, id)
}
