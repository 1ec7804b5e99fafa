// Package schema builds dialect specific DDL queries.
package schema

import (
	"fmt"
	"strings"

	"github.com/udovin/gosql"
)

// Type represents type of column.
type Type int

const (
	// Int64 represents golang int64 type in SQL.
	Int64 Type = 1 + iota
	// String represents golang string type in SQL.
	String
)

// Column represents table column with parameters.
type Column struct {
	Name          string
	Type          Type
	PrimaryKey    bool
	AutoIncrement bool
	Nullable      bool
}

// BuildSQL returns column definition in specified dialect.
func (c Column) BuildSQL(d gosql.Dialect) (string, error) {
	var typeName string
	switch c.Type {
	case Int64:
		typeName = c.int64Type(d)
	case String:
		typeName = "text"
	default:
		return "", fmt.Errorf("unsupported column type: %v", c.Type)
	}
	if !c.PrimaryKey && !c.Nullable {
		typeName += " NOT NULL"
	}
	return quote(c.Name) + " " + typeName, nil
}

func (c Column) int64Type(d gosql.Dialect) string {
	if !c.PrimaryKey {
		return "bigint"
	}
	switch {
	case d == gosql.SQLiteDialect && c.AutoIncrement:
		// Only integer primary key can be rowid alias in SQLite.
		return "integer PRIMARY KEY AUTOINCREMENT"
	case d == gosql.SQLiteDialect:
		return "integer PRIMARY KEY"
	case c.AutoIncrement:
		return "bigserial PRIMARY KEY"
	default:
		return "bigint PRIMARY KEY"
	}
}

// Operation represents reversible schema change.
type Operation interface {
	BuildApply(gosql.Dialect) (string, error)
	BuildUnapply(gosql.Dialect) (string, error)
}

// CreateTable represents create table query.
type CreateTable struct {
	Name    string
	Columns []Column
	// Unique contains column sets with unique constraint.
	Unique [][]string
}

// BuildApply returns create SQL query in specified dialect.
func (q CreateTable) BuildApply(d gosql.Dialect) (string, error) {
	parts := make([]string, 0, len(q.Columns)+len(q.Unique))
	for _, column := range q.Columns {
		sql, err := column.BuildSQL(d)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	for _, names := range q.Unique {
		parts = append(parts, "UNIQUE ("+quoteList(names)+")")
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		quote(q.Name), strings.Join(parts, ", "),
	), nil
}

// BuildUnapply returns drop SQL query.
func (q CreateTable) BuildUnapply(gosql.Dialect) (string, error) {
	return "DROP TABLE IF EXISTS " + quote(q.Name), nil
}

// CreateIndex represents create index query.
type CreateIndex struct {
	Name    string
	Table   string
	Columns []string
}

func (q CreateIndex) name() string {
	if q.Name != "" {
		return q.Name
	}
	return q.Table + "_" + strings.Join(q.Columns, "_") + "_idx"
}

// BuildApply returns create index SQL query.
func (q CreateIndex) BuildApply(gosql.Dialect) (string, error) {
	if len(q.Columns) == 0 {
		return "", fmt.Errorf("index on %q has no columns", q.Table)
	}
	return fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		quote(q.name()), quote(q.Table), quoteList(q.Columns),
	), nil
}

// BuildUnapply returns drop index SQL query.
func (q CreateIndex) BuildUnapply(gosql.Dialect) (string, error) {
	return "DROP INDEX IF EXISTS " + quote(q.name()), nil
}

func quote(name string) string {
	return fmt.Sprintf("%q", name)
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quote(name)
	}
	return strings.Join(quoted, ", ")
}
