package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tordrt/migracraft/internal/schema"
)

// SQLiteImporter reads tables from a SQLite database file
type SQLiteImporter struct {
	db *sql.DB
}

// NewSQLiteImporter opens the SQLite database at path
func NewSQLiteImporter(ctx context.Context, path string) (*SQLiteImporter, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	return &SQLiteImporter{db: db}, nil
}

// Close closes the database handle
func (e *SQLiteImporter) Close() error {
	return e.db.Close()
}

// ImportSchema reads the requested tables, or every table of the database.
func (e *SQLiteImporter) ImportSchema(ctx context.Context, tables []string) (*schema.Schema, error) {
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

func (e *SQLiteImporter) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

func (e *SQLiteImporter) importTable(ctx context.Context, tableName string) (schema.Table, error) {
	b := newTableBuilder(tableName)

	if err := e.importColumns(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import columns: %w", err)
	}
	if len(b.table.Columns) == 0 {
		return schema.Table{}, fmt.Errorf("table %s not found", tableName)
	}
	if err := e.importForeignKeys(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import foreign keys: %w", err)
	}
	if err := e.importIndexes(ctx, b); err != nil {
		return schema.Table{}, fmt.Errorf("failed to import indexes: %w", err)
	}

	return b.build(), nil
}

// quoteSQLite quotes an identifier for use in a PRAGMA argument.
func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// importColumns reads columns and the primary key. PRAGMA table_info
// reports each key column's position in the key.
func (e *SQLiteImporter) importColumns(ctx context.Context, b *tableBuilder) error {
	query := fmt.Sprintf("PRAGMA table_info(%s)", quoteSQLite(b.table.Name))

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	pkByPosition := map[int]string{}
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, colType    string
			defaultValue     sql.NullString
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}

		col := schema.Column{
			Name:     name,
			Type:     strings.ToLower(colType),
			Nullable: notNull == 0,
		}
		if col.Type == "" {
			// Columns declared without a type have BLOB affinity
			col.Type = "blob"
		}
		if defaultValue.Valid {
			col.Default = &defaultValue.String
		}
		if pk > 0 {
			pkByPosition[pk] = name
		}

		b.addColumn(col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(pkByPosition) > 0 {
		pk := schema.Constraint{
			Name: constraintName(b.table.Name, schema.PrimaryKey, nil),
			Kind: schema.PrimaryKey,
		}
		for i := 1; i <= len(pkByPosition); i++ {
			pk.Columns = append(pk.Columns, pkByPosition[i])
		}
		b.addConstraint(pk)
	}
	return nil
}

// importForeignKeys reads PRAGMA foreign_key_list, one row per column of
// each key. SQLite foreign keys are unnamed, so PostgreSQL default names
// are assigned.
func (e *SQLiteImporter) importForeignKeys(ctx context.Context, b *tableBuilder) error {
	query := fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteSQLite(b.table.Name))

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	type foreignKey struct {
		ref      schema.Reference
		columns  []string
		toColumn []string
	}
	var (
		order []int
		byID  = map[int]*foreignKey{}
	)
	for rows.Next() {
		var (
			id, seq                                         int
			targetTable, fromCol, onUpdate, onDelete, match string
			toCol                                           sql.NullString
		)
		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return err
		}

		fk, ok := byID[id]
		if !ok {
			fk = &foreignKey{ref: schema.Reference{
				Table:    targetTable,
				OnDelete: referentialAction(onDelete),
				OnUpdate: referentialAction(onUpdate),
			}}
			byID[id] = fk
			order = append(order, id)
		}
		fk.columns = append(fk.columns, fromCol)
		fk.toColumn = append(fk.toColumn, toCol.String)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// The PRAGMA lists keys in reverse declaration order.
	for i := len(order) - 1; i >= 0; i-- {
		fk := byID[order[i]]
		ref := fk.ref
		ref.Columns = fk.toColumn
		b.addConstraint(schema.Constraint{
			Name:       constraintName(b.table.Name, schema.ForeignKey, fk.columns),
			Kind:       schema.ForeignKey,
			Columns:    fk.columns,
			References: &ref,
		})
	}
	return nil
}

// importIndexes reads PRAGMA index_list. Indexes SQLite creates for UNIQUE
// clauses become unique constraints; primary key indexes are skipped.
func (e *SQLiteImporter) importIndexes(ctx context.Context, b *tableBuilder) error {
	query := fmt.Sprintf("PRAGMA index_list(%s)", quoteSQLite(b.table.Name))

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	type listed struct {
		name   string
		unique bool
		origin string
	}
	var indexes []listed
	for rows.Next() {
		var (
			seq, unique, partial int
			name, origin         string
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return err
		}
		indexes = append(indexes, listed{name: name, unique: unique == 1, origin: origin})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// Close before issuing further PRAGMAs on the same handle.
	_ = rows.Close()

	for _, idx := range indexes {
		if idx.origin == "pk" {
			continue
		}

		columns, err := e.indexColumns(ctx, idx.name)
		if err != nil {
			return err
		}
		if len(columns) == 0 {
			continue
		}

		if idx.origin == "u" {
			b.addConstraint(schema.Constraint{
				Name:    constraintName(b.table.Name, schema.Unique, columns),
				Kind:    schema.Unique,
				Columns: columns,
			})
			continue
		}
		b.addIndex(schema.Index{Name: idx.name, Unique: idx.unique, Columns: columns})
	}
	return nil
}

func (e *SQLiteImporter) indexColumns(ctx context.Context, index string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA index_info(%s)", quoteSQLite(index))

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var (
			seqno, cid int
			colName    sql.NullString
		)
		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		// expression index columns have no name
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}
