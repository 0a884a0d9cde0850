package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/migracraft/internal/schema"
)

const varcharType = "varchar"

// PostgresImporter reads tables from one PostgreSQL schema
type PostgresImporter struct {
	conn   *pgx.Conn
	schema string
}

// NewPostgresImporter connects to PostgreSQL
func NewPostgresImporter(ctx context.Context, connString, schemaName string) (*PostgresImporter, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &PostgresImporter{conn: conn, schema: schemaName}, nil
}

// Close closes the connection
func (e *PostgresImporter) Close() error {
	return e.conn.Close(context.Background())
}

// ImportSchema reads the requested tables, or every base table of the schema.
func (e *PostgresImporter) ImportSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
	tableNames, err := e.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	var imported []schema.Table
	for _, tableName := range tableNames {
		table, err := e.importTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to import table %s: %w", tableName, err)
		}
		imported = append(imported, table)
	}

	return schema.New(imported...), nil
}

func (e *PostgresImporter) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.conn.Query(ctx, query, e.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func (e *PostgresImporter) importTable(ctx context.Context, tableName string) (schema.Table, error) {
	b := newTableBuilder(tableName)

	if err := e.importColumns(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import columns: %w", err)
	}
	if len(b.table.Columns) == 0 {
		return schema.Table{}, fmt.Errorf("table %s.%s not found", e.schema, tableName)
	}
	if err := e.importConstraints(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import constraints: %w", err)
	}
	if err := e.importIndexes(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import indexes: %w", err)
	}

	return b.build(), nil
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength, precision, scale *int) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("char(%d)", *charMaxLength)
		}
		return "char"
	case "numeric":
		if precision != nil && scale != nil {
			return fmt.Sprintf("numeric(%d,%d)", *precision, *scale)
		}
		return "numeric"
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[], "_int4" for integer[])
		if len(udtName) > 0 && udtName[0] == '_' {
			return normalizeUdtName(udtName[1:]) + "[]"
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

func (e *PostgresImporter) importColumns(ctx context.Context, b *tableBuilder) error {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.udt_name,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.is_nullable,
			c.column_default,
			c.is_identity
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := e.conn.Query(ctx, query, e.schema, b.table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			col                             schema.Column
			dataType, udtName               string
			charMaxLength, precision, scale *int
			nullable, identity              string
			defaultVal                      *string
		)
		if err := rows.Scan(&col.Name, &dataType, &udtName, &charMaxLength, &precision, &scale, &nullable, &defaultVal, &identity); err != nil {
			return err
		}

		col.Type = normalizePostgresType(dataType, udtName, charMaxLength, precision, scale)
		col.Nullable = nullable == "YES"
		col.Default = defaultVal

		// serial columns become identity columns
		if identity == "YES" || (defaultVal != nil && strings.HasPrefix(*defaultVal, "nextval(")) {
			col.Identity = true
			col.Default = nil
		}

		b.addColumn(col)
	}

	return rows.Err()
}

// pgActions maps pg_constraint action codes to SQL rules
var pgActions = map[string]string{
	"a": "",
	"r": "RESTRICT",
	"c": "CASCADE",
	"n": "SET NULL",
	"d": "SET DEFAULT",
}

func (e *PostgresImporter) importConstraints(ctx context.Context, b *tableBuilder) error {
	query := `
		SELECT
			con.conname,
			con.contype::text,
			ARRAY(
				SELECT a.attname::text
				FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			) AS columns,
			COALESCE(ft.relname::text, '') AS ref_table,
			ARRAY(
				SELECT a.attname::text
				FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
				JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
				ORDER BY k.ord
			) AS ref_columns,
			con.confdeltype::text,
			con.confupdtype::text,
			CASE WHEN con.contype = 'c' THEN pg_get_constraintdef(con.oid) ELSE '' END AS definition
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		LEFT JOIN pg_class ft ON ft.oid = con.confrelid
		WHERE n.nspname = $1
			AND t.relname = $2
			AND con.contype IN ('p', 'u', 'c', 'f')
		ORDER BY con.conname
	`

	rows, err := e.conn.Query(ctx, query, e.schema, b.table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, kind, refTable, onDelete, onUpdate, definition string
			columns, refColumns                                  []string
		)
		if err := rows.Scan(&name, &kind, &columns, &refTable, &refColumns, &onDelete, &onUpdate, &definition); err != nil {
			return err
		}

		c := schema.Constraint{Name: name, Columns: columns}
		switch kind {
		case "p":
			c.Kind = schema.PrimaryKey
		case "u":
			c.Kind = schema.Unique
		case "c":
			c.Kind = schema.Check
			c.Columns = nil
			c.Expression = checkExpression(definition)
		case "f":
			c.Kind = schema.ForeignKey
			c.References = &schema.Reference{
				Table:    refTable,
				Columns:  refColumns,
				OnDelete: pgActions[onDelete],
				OnUpdate: pgActions[onUpdate],
			}
		}
		b.addConstraint(c)
	}

	return rows.Err()
}

// checkExpression strips the CHECK wrapper from pg_get_constraintdef output.
func checkExpression(def string) string {
	def = strings.TrimSpace(def)
	def = strings.TrimSuffix(def, " NOT VALID")
	if !strings.HasPrefix(def, "CHECK (") || !strings.HasSuffix(def, ")") {
		return def
	}
	return strings.TrimSpace(def[len("CHECK (") : len(def)-1])
}

func (e *PostgresImporter) importIndexes(ctx context.Context, b *tableBuilder) error {
	// Indexes backing primary key and unique constraints are part of the
	// constraint and are skipped.
	query := `
		SELECT
			i.relname AS index_name,
			ix.indisunique AS is_unique,
			am.amname AS method,
			array_agg(a.attname::text ORDER BY array_position(ix.indkey, a.attnum)) AS column_names
		FROM pg_class t
		JOIN pg_index ix ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE t.relkind = 'r'
			AND n.nspname = $1
			AND t.relname = $2
			AND NOT EXISTS (SELECT 1 FROM pg_constraint con WHERE con.conindid = ix.indexrelid)
		GROUP BY i.relname, ix.indisunique, am.amname
		ORDER BY i.relname
	`

	rows, err := e.conn.Query(ctx, query, e.schema, b.table.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var idx schema.Index
		if err := rows.Scan(&idx.Name, &idx.Unique, &idx.Method, &idx.Columns); err != nil {
			return err
		}
		b.addIndex(idx)
	}

	return rows.Err()
}
