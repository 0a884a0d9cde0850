package entity

import (
	"bytes"
	"fmt"
	"go/format"
	"slices"
	"text/template"

	"github.com/tordrt/migracraft/internal/schema"
)

// langType is a target type for one category
type langType struct {
	name    string
	boxed   string // reference form used when the value may be null
	imp     string
	nilable bool // already admits null
}

// target is a Generator driven by a type table and a template
type target struct {
	language  string
	fileName  func(table string) string
	className func(table string) string
	fieldName func(column string) string
	types     map[category]langType

	array        string // format wrapping an element type
	arrayImport  string
	arrayNilable bool
	optional     string // format wrapping a nullable type; empty when boxing is enough
	optionalImp  string

	tmpl   *template.Template
	format func([]byte) ([]byte, error)
}

func (g *target) Language() string { return g.language }

func (g *target) FileName(table string) string { return g.fileName(table) }

// Generate renders t with the target's template.
func (g *target) Generate(t schema.Table, opts Options) ([]byte, error) {
	e := entity{
		Name:    identifier(g.className(t.Name)),
		Table:   t.Name,
		Package: opts.Package,
	}
	pk := t.PrimaryKey()

	var imports []string
	for _, c := range t.Columns {
		typ, imps := g.typeFor(c)
		imports = append(imports, imps...)
		e.Fields = append(e.Fields, field{
			Name:     identifier(g.fieldName(c.Name)),
			Accessor: identifier(pascalCase(c.Name)),
			Column:   c.Name,
			Type:     typ,
			Nullable: c.Nullable,
			Primary:  slices.Contains(pk, c.Name),
		})
	}
	e.Imports = dedupe(imports)

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, e); err != nil {
		return nil, fmt.Errorf("failed to render %s entity for table %s: %w", g.language, t.Name, err)
	}
	if g.format == nil {
		return buf.Bytes(), nil
	}
	out, err := g.format(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format %s entity for table %s: %w", g.language, t.Name, err)
	}
	return out, nil
}

// typeFor returns the target type of a column and the imports it needs.
func (g *target) typeFor(c schema.Column) (string, []string) {
	cat, array := classify(c.Type)
	lt := g.types[cat]
	name, imports := lt.name, []string{lt.imp}
	nilable := lt.nilable

	if array {
		if lt.boxed != "" {
			name = lt.boxed
		}
		name = fmt.Sprintf(g.array, name)
		imports = append(imports, g.arrayImport)
		nilable = g.arrayNilable
	}

	if c.Nullable && !nilable {
		switch {
		case lt.boxed != "" && !array:
			name = lt.boxed
		case g.optional != "":
			name = fmt.Sprintf(g.optional, name)
			imports = append(imports, g.optionalImp)
		}
	}
	return name, imports
}

func mustParse(name, src string) *template.Template {
	return template.Must(template.New(name).Parse(src))
}

func init() {
	for _, g := range []Generator{
		typescriptTarget(),
		pythonTarget(),
		dartTarget(),
		javaTarget(),
		cppTarget(),
		csharpTarget(),
		goTarget(),
	} {
		Register(g)
	}
}

func typescriptTarget() *target {
	return &target{
		language:  "typescript",
		fileName:  func(t string) string { return snakeCase(t) + ".ts" },
		className: pascalCase,
		fieldName: camelCase,
		types: map[category]langType{
			catString:    {name: "string"},
			catSmallInt:  {name: "number"},
			catInt:       {name: "number"},
			catBigInt:    {name: "number"},
			catFloat:     {name: "number"},
			catDecimal:   {name: "string"},
			catBool:      {name: "boolean"},
			catDate:      {name: "Date"},
			catTime:      {name: "string"},
			catTimestamp: {name: "Date"},
			catUUID:      {name: "string"},
			catJSON:      {name: "unknown"},
			catBytes:     {name: "Uint8Array"},
		},
		array:    "%s[]",
		optional: "%s | null",
		tmpl: mustParse("typescript", `// Code generated by migracraft from table {{.Table}}. DO NOT EDIT.

export interface {{.Name}} {
{{- range .Fields}}
  {{if .Primary}}readonly {{end}}{{.Name}}: {{.Type}};
{{- end}}
}
`),
	}
}

func pythonTarget() *target {
	return &target{
		language:  "python",
		fileName:  func(t string) string { return snakeCase(t) + ".py" },
		className: pascalCase,
		fieldName: snakeCase,
		types: map[category]langType{
			catString:    {name: "str"},
			catSmallInt:  {name: "int"},
			catInt:       {name: "int"},
			catBigInt:    {name: "int"},
			catFloat:     {name: "float"},
			catDecimal:   {name: "Decimal", imp: "from decimal import Decimal"},
			catBool:      {name: "bool"},
			catDate:      {name: "date", imp: "from datetime import date"},
			catTime:      {name: "time", imp: "from datetime import time"},
			catTimestamp: {name: "datetime", imp: "from datetime import datetime"},
			catUUID:      {name: "UUID", imp: "from uuid import UUID"},
			catJSON:      {name: "Any", imp: "from typing import Any"},
			catBytes:     {name: "bytes"},
		},
		array:       "list[%s]",
		optional:    "Optional[%s]",
		optionalImp: "from typing import Optional",
		tmpl: mustParse("python", `# Code generated by migracraft from table {{.Table}}. DO NOT EDIT.

from dataclasses import dataclass
{{- range .Imports}}
{{.}}
{{- end}}


@dataclass
class {{.Name}}:
{{- range .Fields}}
    {{.Name}}: {{.Type}}
{{- end}}
`),
	}
}

func dartTarget() *target {
	return &target{
		language:  "dart",
		fileName:  func(t string) string { return snakeCase(t) + ".dart" },
		className: pascalCase,
		fieldName: camelCase,
		types: map[category]langType{
			catString:    {name: "String"},
			catSmallInt:  {name: "int"},
			catInt:       {name: "int"},
			catBigInt:    {name: "int"},
			catFloat:     {name: "double"},
			catDecimal:   {name: "String"},
			catBool:      {name: "bool"},
			catDate:      {name: "DateTime"},
			catTime:      {name: "String"},
			catTimestamp: {name: "DateTime"},
			catUUID:      {name: "String"},
			catJSON:      {name: "Map<String, dynamic>"},
			catBytes:     {name: "List<int>"},
		},
		array:    "List<%s>",
		optional: "%s?",
		tmpl: mustParse("dart", `// Code generated by migracraft from table {{.Table}}. DO NOT EDIT.

class {{.Name}} {
{{- range .Fields}}
  final {{.Type}} {{.Name}};
{{- end}}

  const {{.Name}}({
{{- range .Fields}}
    {{if not .Nullable}}required {{end}}this.{{.Name}},
{{- end}}
  });
}
`),
	}
}

func javaTarget() *target {
	return &target{
		language:  "java",
		fileName:  func(t string) string { return pascalCase(t) + ".java" },
		className: pascalCase,
		fieldName: camelCase,
		types: map[category]langType{
			catString:    {name: "String"},
			catSmallInt:  {name: "short", boxed: "Short"},
			catInt:       {name: "int", boxed: "Integer"},
			catBigInt:    {name: "long", boxed: "Long"},
			catFloat:     {name: "double", boxed: "Double"},
			catDecimal:   {name: "BigDecimal", imp: "java.math.BigDecimal"},
			catBool:      {name: "boolean", boxed: "Boolean"},
			catDate:      {name: "LocalDate", imp: "java.time.LocalDate"},
			catTime:      {name: "LocalTime", imp: "java.time.LocalTime"},
			catTimestamp: {name: "OffsetDateTime", imp: "java.time.OffsetDateTime"},
			catUUID:      {name: "UUID", imp: "java.util.UUID"},
			catJSON:      {name: "String"},
			catBytes:     {name: "byte[]"},
		},
		array:        "List<%s>",
		arrayImport:  "java.util.List",
		arrayNilable: true,
		tmpl: mustParse("java", `// Code generated by migracraft from table {{.Table}}. DO NOT EDIT.
{{- if .Package}}

package {{.Package}};
{{- end}}
{{- if .Imports}}
{{range .Imports}}
import {{.}};
{{- end}}
{{- end}}

public class {{.Name}} {
{{- range .Fields}}
    private {{.Type}} {{.Name}};
{{- end}}
{{- range .Fields}}

    public {{.Type}} get{{.Accessor}}() {
        return {{.Name}};
    }

    public void set{{.Accessor}}({{.Type}} {{.Name}}) {
        this.{{.Name}} = {{.Name}};
    }
{{- end}}
}
`),
	}
}

func cppTarget() *target {
	return &target{
		language:  "cpp",
		fileName:  func(t string) string { return snakeCase(t) + ".hpp" },
		className: pascalCase,
		fieldName: snakeCase,
		types: map[category]langType{
			catString:    {name: "std::string", imp: "<string>"},
			catSmallInt:  {name: "int16_t", imp: "<cstdint>"},
			catInt:       {name: "int32_t", imp: "<cstdint>"},
			catBigInt:    {name: "int64_t", imp: "<cstdint>"},
			catFloat:     {name: "double"},
			catDecimal:   {name: "std::string", imp: "<string>"},
			catBool:      {name: "bool"},
			catDate:      {name: "std::string", imp: "<string>"},
			catTime:      {name: "std::string", imp: "<string>"},
			catTimestamp: {name: "std::string", imp: "<string>"},
			catUUID:      {name: "std::string", imp: "<string>"},
			catJSON:      {name: "std::string", imp: "<string>"},
			catBytes:     {name: "std::vector<uint8_t>", imp: "<vector>"},
		},
		array:       "std::vector<%s>",
		arrayImport: "<vector>",
		optional:    "std::optional<%s>",
		optionalImp: "<optional>",
		tmpl: mustParse("cpp", `// Code generated by migracraft from table {{.Table}}. DO NOT EDIT.
#pragma once
{{- if .Imports}}
{{range .Imports}}
#include {{.}}
{{- end}}
{{- end}}

struct {{.Name}} {
{{- range .Fields}}
    {{.Type}} {{.Name}};
{{- end}}
};
`),
	}
}

func csharpTarget() *target {
	return &target{
		language:  "csharp",
		fileName:  func(t string) string { return pascalCase(t) + ".cs" },
		className: pascalCase,
		fieldName: pascalCase,
		types: map[category]langType{
			catString:    {name: "string"},
			catSmallInt:  {name: "short"},
			catInt:       {name: "int"},
			catBigInt:    {name: "long"},
			catFloat:     {name: "double"},
			catDecimal:   {name: "decimal"},
			catBool:      {name: "bool"},
			catDate:      {name: "DateOnly", imp: "System"},
			catTime:      {name: "TimeOnly", imp: "System"},
			catTimestamp: {name: "DateTime", imp: "System"},
			catUUID:      {name: "Guid", imp: "System"},
			catJSON:      {name: "string"},
			catBytes:     {name: "byte[]"},
		},
		array:       "List<%s>",
		arrayImport: "System.Collections.Generic",
		optional:    "%s?",
		tmpl: mustParse("csharp", `// Code generated by migracraft from table {{.Table}}. DO NOT EDIT.
#nullable enable
{{- if .Imports}}
{{range .Imports}}
using {{.}};
{{- end}}
{{- end}}
{{- if .Package}}

namespace {{.Package}};
{{- end}}

public class {{.Name}}
{
{{- range .Fields}}
    public {{.Type}} {{.Name}} { get; set; }
{{- end}}
}
`),
	}
}

func goTarget() *target {
	return &target{
		language:  "go",
		fileName:  func(t string) string { return snakeCase(t) + ".go" },
		className: goName,
		fieldName: goName,
		types: map[category]langType{
			catString:    {name: "string"},
			catSmallInt:  {name: "int16"},
			catInt:       {name: "int32"},
			catBigInt:    {name: "int64"},
			catFloat:     {name: "float64"},
			catDecimal:   {name: "string"},
			catBool:      {name: "bool"},
			catDate:      {name: "time.Time", imp: "time"},
			catTime:      {name: "string"},
			catTimestamp: {name: "time.Time", imp: "time"},
			catUUID:      {name: "string"},
			catJSON:      {name: "json.RawMessage", imp: "encoding/json", nilable: true},
			catBytes:     {name: "[]byte", nilable: true},
		},
		array:        "[]%s",
		arrayNilable: true,
		optional:     "*%s",
		tmpl: mustParse("go", `// Code generated by migracraft from table {{.Table}}. DO NOT EDIT.

package {{if .Package}}{{.Package}}{{else}}entities{{end}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
// {{.Name}} is a row of the {{.Table}} table.
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} `+"`"+`db:"{{.Column}}" json:"{{.Column}}"`+"`"+`
{{- end}}
}
`),
		format: format.Source,
	}
}
