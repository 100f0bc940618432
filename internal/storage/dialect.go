package storage

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

func indexName(table, column string) string {
	return table + "_" + column + "_idx"
}

// PostgresDialect renders PostgreSQL DDL.
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return DriverPostgres }

func (PostgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d PostgresDialect) Qualify(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (PostgresDialect) ColumnType(t core.SQLType) string {
	switch t {
	case core.SQLInteger:
		return "integer"
	case core.SQLSmallInt:
		return "smallint"
	case core.SQLDouble:
		return "double precision"
	case core.SQLTextArray:
		return "text[]"
	default:
		return "text"
	}
}

func (d PostgresDialect) CreateIndex(schema, table, column string, _ core.SQLType) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.QuoteIdent(indexName(table, column)), d.Qualify(schema, table), d.QuoteIdent(column))
}

// SQLiteDialect renders SQLite DDL. Feed schemas are attached databases.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return DriverSQLite }

func (SQLiteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d SQLiteDialect) Qualify(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (SQLiteDialect) ColumnType(t core.SQLType) string {
	switch t {
	case core.SQLInteger, core.SQLSmallInt:
		return "INTEGER"
	case core.SQLDouble:
		return "REAL"
	default:
		return "TEXT"
	}
}

// CreateIndex qualifies the index rather than the table, as SQLite requires.
func (d SQLiteDialect) CreateIndex(schema, table, column string, _ core.SQLType) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		d.Qualify(schema, indexName(table, column)), d.QuoteIdent(table), d.QuoteIdent(column))
}

// MySQLDialect renders MySQL DDL. Feed schemas are databases.
type MySQLDialect struct{}

func (MySQLDialect) Name() string { return DriverMySQL }

func (MySQLDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d MySQLDialect) Qualify(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (MySQLDialect) ColumnType(t core.SQLType) string {
	switch t {
	case core.SQLInteger:
		return "INT"
	case core.SQLSmallInt:
		return "SMALLINT"
	case core.SQLDouble:
		return "DOUBLE"
	default:
		return "TEXT"
	}
}

// CreateIndex indexes a prefix of text columns; MySQL cannot index TEXT whole.
func (d MySQLDialect) CreateIndex(schema, table, column string, t core.SQLType) string {
	col := d.QuoteIdent(column)
	if d.ColumnType(t) == "TEXT" {
		col += "(191)"
	}
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
		d.QuoteIdent(indexName(table, column)), d.Qualify(schema, table), col)
}
