package schema

import (
	"testing"

	"github.com/udovin/gosql"
)

func TestColumnInt64(t *testing.T) {
	check := func(c Column, dialect gosql.Dialect, expected string) {
		if sql, err := c.BuildSQL(dialect); err != nil {
			t.Fatal("Error:", err)
		} else if sql != expected {
			t.Fatal("Wrong SQL:", sql)
		}
	}
	c1 := Column{Name: "id", Type: Int64, PrimaryKey: true, AutoIncrement: true}
	check(c1, gosql.SQLiteDialect, `"id" integer PRIMARY KEY AUTOINCREMENT`)
	check(c1, gosql.PostgresDialect, `"id" bigserial PRIMARY KEY`)
	c2 := Column{Name: "runtime", Type: Int64}
	check(c2, gosql.SQLiteDialect, `"runtime" bigint NOT NULL`)
	c3 := Column{Name: "memory", Type: Int64, Nullable: true}
	check(c3, gosql.PostgresDialect, `"memory" bigint`)
	c4 := Column{Name: "judge", Type: String}
	check(c4, gosql.PostgresDialect, `"judge" text NOT NULL`)
	if _, err := (Column{Name: "bad"}).BuildSQL(gosql.SQLiteDialect); err == nil {
		t.Fatal("Expected error")
	}
}

func TestCreateTable(t *testing.T) {
	table := CreateTable{
		Name: "submission",
		Columns: []Column{
			{Name: "id", Type: Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "judge", Type: String},
			{Name: "submission_id", Type: String},
		},
		Unique: [][]string{{"judge", "submission_id"}},
	}
	query, err := table.BuildApply(gosql.SQLiteDialect)
	if err != nil {
		t.Fatal("Error:", err)
	}
	expected := `CREATE TABLE IF NOT EXISTS "submission" (` +
		`"id" integer PRIMARY KEY AUTOINCREMENT, "judge" text NOT NULL, ` +
		`"submission_id" text NOT NULL, UNIQUE ("judge", "submission_id"))`
	if query != expected {
		t.Fatal("Wrong SQL:", query)
	}
	query, err = table.BuildUnapply(gosql.PostgresDialect)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if query != `DROP TABLE IF EXISTS "submission"` {
		t.Fatal("Wrong SQL:", query)
	}
}

func TestCreateIndex(t *testing.T) {
	index := CreateIndex{Table: "submission", Columns: []string{"judge", "account"}}
	query, err := index.BuildApply(gosql.PostgresDialect)
	if err != nil {
		t.Fatal("Error:", err)
	}
	expected := `CREATE INDEX IF NOT EXISTS "submission_judge_account_idx" ` +
		`ON "submission" ("judge", "account")`
	if query != expected {
		t.Fatal("Wrong SQL:", query)
	}
	query, err = index.BuildUnapply(gosql.SQLiteDialect)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if query != `DROP INDEX IF EXISTS "submission_judge_account_idx"` {
		t.Fatal("Wrong SQL:", query)
	}
	if _, err := (CreateIndex{Table: "submission"}).BuildApply(gosql.SQLiteDialect); err == nil {
		t.Fatal("Expected error")
	}
}
