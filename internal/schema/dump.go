package schema

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Marshal renders tables in the schema file format. Primary keys become the
// table-level primary_key list; every other constraint is written out in full.
func Marshal(tables ...Table) ([]byte, error) {
	doc := document{Tables: make(map[string]tableDoc, len(tables))}
	for _, t := range tables {
		doc.Tables[t.Name] = toTableDoc(t)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDir writes one <table>.yaml file per table into dir and returns the
// written paths.
func WriteDir(dir string, s *Schema) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create schemas directory: %w", err)
	}

	var written []string
	for _, t := range s.Tables {
		data, err := Marshal(t)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, t.Name+".yaml")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write schema file for %s: %w", t.Name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func toTableDoc(t Table) tableDoc {
	doc := tableDoc{PrimaryKey: t.PrimaryKey()}

	for _, c := range t.Columns {
		nullable := c.Nullable
		doc.Columns = append(doc.Columns, columnDoc{
			Name:     c.Name,
			Type:     c.Type,
			Nullable: &nullable,
			Default:  c.Default,
			Identity: c.Identity,
		})
	}

	for _, c := range t.Constraints {
		if c.Kind == PrimaryKey {
			continue
		}
		cd := constraintDoc{
			Name:       c.Name,
			Type:       string(c.Kind),
			Columns:    c.Columns,
			Expression: c.Expression,
		}
		if c.References != nil {
			cd.References = &referenceDoc{
				Table:    c.References.Table,
				Columns:  c.References.Columns,
				OnDelete: c.References.OnDelete,
				OnUpdate: c.References.OnUpdate,
			}
		}
		doc.Constraints = append(doc.Constraints, cd)
	}

	for _, idx := range t.Indexes {
		doc.Indexes = append(doc.Indexes, indexDoc{
			Name:    idx.Name,
			Columns: idx.Columns,
			Unique:  idx.Unique,
			Method:  idx.Method,
		})
	}
	return doc
}
