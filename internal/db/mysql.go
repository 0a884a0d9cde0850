package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/migracraft/internal/schema"
)

// MySQLImporter reads tables from one MySQL database
type MySQLImporter struct {
	db         *sql.DB
	schemaName string
}

// NewMySQLImporter connects to MySQL
func NewMySQLImporter(ctx context.Context, dsn, schemaName string) (*MySQLImporter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLImporter{db: db, schemaName: schemaName}, nil
}

// ParseDatabaseName returns the database named in a MySQL DSN.
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("MySQL DSN %q names no database", cfg.FormatDSN())
	}
	return cfg.DBName, nil
}

// Close closes the database handle
func (e *MySQLImporter) Close() error {
	return e.db.Close()
}

// ImportSchema reads the requested tables, or every base table of the database.
func (e *MySQLImporter) ImportSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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

func (e *MySQLImporter) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

func (e *MySQLImporter) importTable(ctx context.Context, tableName string) (schema.Table, error) {
	b := newTableBuilder(tableName)

	if err := e.importColumns(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import columns: %w", err)
	}
	if len(b.table.Columns) == 0 {
		return schema.Table{}, fmt.Errorf("table %s.%s not found", e.schemaName, tableName)
	}
	if err := e.importConstraints(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import constraints: %w", err)
	}
	if err := e.importIndexes(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import indexes: %w", err)
	}

	return b.build(), nil
}

func (e *MySQLImporter) importColumns(ctx context.Context, b *tableBuilder) error {
	query := `
		SELECT
			c.column_name,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.extra
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, b.table.Name)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			col                       schema.Column
			columnType, nullable, ext string
			defaultVal                sql.NullString
		)
		if err := rows.Scan(&col.Name, &columnType, &nullable, &defaultVal, &ext); err != nil {
			return err
		}

		col.Type = strings.ToLower(columnType)
		col.Nullable = nullable == "YES"
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		if strings.Contains(strings.ToLower(ext), "auto_increment") {
			col.Identity = true
			col.Default = nil
		}

		b.addColumn(col)
	}

	return rows.Err()
}

// importConstraints reads primary key, unique and foreign key constraints.
// Rows arrive one per constraint column.
func (e *MySQLImporter) importConstraints(ctx context.Context, b *tableBuilder) error {
	query := `
		SELECT
			tc.constraint_name,
			tc.constraint_type,
			kcu.column_name,
			COALESCE(kcu.referenced_table_name, ''),
			COALESCE(kcu.referenced_column_name, ''),
			COALESCE(rc.delete_rule, ''),
			COALESCE(rc.update_rule, '')
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		LEFT JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = tc.table_schema
			AND rc.constraint_name = tc.constraint_name
			AND rc.table_name = tc.table_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, b.table.Name)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, kind, column, refTable, refColumn, onDelete, onUpdate string
		if err := rows.Scan(&name, &kind, &column, &refTable, &refColumn, &onDelete, &onUpdate); err != nil {
			return err
		}

		c := schema.Constraint{Name: name}
		switch kind {
		case "PRIMARY KEY":
			c.Kind = schema.PrimaryKey
			// MySQL names every primary key PRIMARY
			c.Name = constraintName(b.table.Name, schema.PrimaryKey, nil)
		case "UNIQUE":
			c.Kind = schema.Unique
		default:
			c.Kind = schema.ForeignKey
			c.References = &schema.Reference{
				Table:    refTable,
				OnDelete: referentialAction(onDelete),
				OnUpdate: referentialAction(onUpdate),
			}
		}
		b.addConstraintColumn(c, column, refColumn)
	}

	return rows.Err()
}

// importIndexes reads secondary indexes. MySQL backs every unique and
// foreign key constraint with an index of the same name; those are skipped.
func (e *MySQLImporter) importIndexes(ctx context.Context, b *tableBuilder) error {
	query := `
		SELECT
			s.index_name,
			s.non_unique = 0 AS is_unique,
			s.index_type,
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index) AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		GROUP BY s.index_name, s.non_unique, s.index_type
		ORDER BY s.index_name
	`

	rows, err := e.db.QueryContext(ctx, query, e.schemaName, b.table.Name)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			idx                 schema.Index
			isUnique            int
			method, columnNames string
		)
		if err := rows.Scan(&idx.Name, &isUnique, &method, &columnNames); err != nil {
			return err
		}
		if b.hasConstraint(idx.Name) {
			continue
		}

		idx.Unique = isUnique == 1
		idx.Method = strings.ToLower(method)
		idx.Columns = strings.Split(columnNames, ",")
		b.addIndex(idx)
	}

	return rows.Err()
}
