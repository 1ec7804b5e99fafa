// Package db provides generic row helpers over gosql.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/udovin/gosql"
)

type dbKey struct{}

func WithRunner(ctx context.Context, db gosql.Runner) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}

func GetRunner(ctx context.Context, db gosql.Runner) gosql.Runner {
	if r, ok := ctx.Value(dbKey{}).(gosql.Runner); ok {
		return r
	}
	return db
}

func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return WithRunner(ctx, tx)
}

func GetTx(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(dbKey{}).(*sql.Tx); ok {
		return tx
	}
	return nil
}

// WrapTx runs function inside transaction.
//
// Function is called with current transaction if context already has one.
func WrapTx(
	ctx context.Context, conn *gosql.DB, fn func(ctx context.Context) error,
	options ...gosql.BeginTxOption,
) error {
	if GetTx(ctx) != nil {
		return fn(ctx)
	}
	return gosql.WrapTx(ctx, conn, func(tx *sql.Tx) error {
		return fn(WithTx(ctx, tx))
	}, options...)
}

// Rows represents reader for rows.
type Rows[T any] interface {
	// Next should read next row and return true if row exists.
	Next() bool
	// Row should return current row.
	Row() T
	// Close should close reader.
	Close() error
	// Err should return error that occurred during reading.
	Err() error
}

type rowReader[T any] struct {
	rows *sql.Rows
	err  error
	row  T
	// refs contains pointers for each field in row.
	refs []any
}

func (r *rowReader[T]) Next() bool {
	if !r.rows.Next() {
		return false
	}
	r.err = r.rows.Scan(r.refs...)
	return r.err == nil
}

func (r *rowReader[T]) Row() T {
	return r.row
}

func (r *rowReader[T]) Close() error {
	return r.rows.Close()
}

func (r *rowReader[T]) Err() error {
	if err := r.rows.Err(); err != nil {
		return err
	}
	return r.err
}

func newRowReader[T any](rows *sql.Rows) *rowReader[T] {
	r := &rowReader[T]{rows: rows}
	r.refs = getRowFields(&r.row)
	return r
}

// CollectRows reads all rows and closes reader.
func CollectRows[T any](rows Rows[T]) ([]T, error) {
	defer func() { _ = rows.Close() }()
	var result []T
	for rows.Next() {
		result = append(result, rows.Row())
	}
	return result, rows.Err()
}

func getRowFields[T any](row *T) []any {
	var fields []any
	var recursive func(reflect.Value)
	recursive = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if _, ok := t.Field(i).Tag.Lookup("db"); ok {
				fields = append(fields, v.Field(i).Addr().Interface())
			} else if t.Field(i).Anonymous {
				recursive(v.Field(i))
			}
		}
	}
	recursive(reflect.ValueOf(row).Elem())
	return fields
}

func checkColumns(rows *sql.Rows, cols []string) error {
	rowCols, err := rows.Columns()
	if err != nil {
		return err
	}
	if len(cols) != len(rowCols) {
		return fmt.Errorf("result has invalid column sequence: %v != %v", cols, rowCols)
	}
	for i := 0; i < len(cols); i++ {
		if cols[i] != rowCols[i] {
			return fmt.Errorf("result has invalid column sequence: %v != %v", cols, rowCols)
		}
	}
	return nil
}

// Columns returns column names of row type in field order.
func Columns[T any]() []string {
	var cols []string
	var recursive func(reflect.Type)
	recursive = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			if db, ok := t.Field(i).Tag.Lookup("db"); ok {
				name := strings.Split(db, ",")[0]
				cols = append(cols, name)
			} else if t.Field(i).Anonymous {
				recursive(t.Field(i).Type)
			}
		}
	}
	var object T
	recursive(reflect.TypeOf(object))
	return cols
}

func prepareUpsert(value reflect.Value, id string) ([]string, []any) {
	var cols []string
	var vals []any
	var recursive func(reflect.Value)
	recursive = func(v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if db, ok := t.Field(i).Tag.Lookup("db"); ok {
				name := strings.Split(db, ",")[0]
				if name == id {
					continue
				}
				cols = append(cols, name)
				vals = append(vals, v.Field(i).Interface())
			} else if t.Field(i).Anonymous {
				recursive(v.Field(i))
			}
		}
	}
	recursive(value)
	return cols, vals
}

// FindQuery represents filter of selected rows.
type FindQuery struct {
	Where   gosql.BoolExpr
	OrderBy []any
	Limit   int
}

// FindRows selects rows of table matched by query.
func FindRows[T any](
	ctx context.Context, db *gosql.DB, table string, q FindQuery,
) (Rows[T], error) {
	cols := Columns[T]()
	query := db.Select(table)
	query.SetNames(cols...)
	if q.Where != nil {
		query.SetWhere(q.Where)
	}
	if len(q.OrderBy) > 0 {
		query.SetOrderBy(q.OrderBy...)
	}
	if q.Limit > 0 {
		query.SetLimit(q.Limit)
	}
	rawQuery, values := db.Build(query)
	rows, err := GetRunner(ctx, db).QueryContext(ctx, rawQuery, values...)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(rows, cols); err != nil {
		_ = rows.Close()
		return nil, err
	}
	return newRowReader[T](rows), nil
}

// InsertRow inserts row and returns its generated id.
func InsertRow[T any](
	ctx context.Context, db *gosql.DB, row T, id, table string,
) (int64, error) {
	cols, vals := prepareUpsert(reflect.ValueOf(row), id)
	builder := db.Insert(table)
	builder.SetNames(cols...)
	builder.SetValues(vals...)
	switch b := builder.(type) {
	case *gosql.PostgresInsertQuery:
		b.SetReturning(id)
		var rowID int64
		res := GetRunner(ctx, db).QueryRowContext(ctx, db.BuildString(builder), vals...)
		err := res.Scan(&rowID)
		return rowID, err
	default:
		res, err := GetRunner(ctx, db).ExecContext(ctx, db.BuildString(builder), vals...)
		if err != nil {
			return 0, err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if count != 1 {
			return 0, fmt.Errorf("invalid amount of affected rows: %d", count)
		}
		return res.LastInsertId()
	}
}

// UpdateRow updates all columns of row with specified id.
func UpdateRow[T any](
	ctx context.Context, db *gosql.DB, row T, rowID int64, id, table string,
) error {
	cols, vals := prepareUpsert(reflect.ValueOf(row), id)
	builder := db.Update(table)
	builder.SetNames(cols...)
	builder.SetValues(vals...)
	builder.SetWhere(gosql.Column(id).Equal(rowID))
	query, values := db.Build(builder)
	res, err := GetRunner(ctx, db).ExecContext(ctx, query, values...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count < 1 {
		return sql.ErrNoRows
	} else if count > 1 {
		return fmt.Errorf("updated %d rows", count)
	}
	return nil
}

// DeleteRow deletes row with specified id.
func DeleteRow(
	ctx context.Context, db *gosql.DB, rowID int64, id, table string,
) error {
	builder := db.Delete(table)
	builder.SetWhere(gosql.Column(id).Equal(rowID))
	query, values := db.Build(builder)
	res, err := GetRunner(ctx, db).ExecContext(ctx, query, values...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count < 1 {
		return sql.ErrNoRows
	} else if count > 1 {
		return fmt.Errorf("deleted %d rows", count)
	}
	return nil
}
