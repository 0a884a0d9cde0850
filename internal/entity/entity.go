// Package entity renders the resolved schema as data classes in other
// programming languages. Each target language is a Generator registered
// under its name; the migration engine never depends on this package.
package entity

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/tordrt/migracraft/internal/schema"
)

// Options carries settings shared by every generator.
type Options struct {
	// Package is the package or namespace generated files declare, for the
	// languages that have one.
	Package string
}

// Generator renders one table as a source file in a target language.
type Generator interface {
	Language() string
	FileName(table string) string
	Generate(t schema.Table, opts Options) ([]byte, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Generator{}
)

// Register makes a generator available under its language name. It panics
// when the name is already taken.
func Register(g Generator) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := strings.ToLower(g.Language())
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("entity: generator %q registered twice", name))
	}
	registry[name] = g
}

// Lookup returns the generator registered for language.
func Lookup(language string) (Generator, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	g, ok := registry[strings.ToLower(strings.TrimSpace(language))]
	if !ok {
		return nil, fmt.Errorf("unsupported entity language %q (supported: %s)", language, strings.Join(languagesLocked(), ", "))
	}
	return g, nil
}

// Languages lists the registered language names in order.
func Languages() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return languagesLocked()
}

func languagesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// category is the language-neutral kind of a SQL column type
type category int

const (
	catString category = iota
	catSmallInt
	catInt
	catBigInt
	catFloat
	catDecimal
	catBool
	catDate
	catTime
	catTimestamp
	catUUID
	catJSON
	catBytes
)

var categories = map[string]category{
	"smallint":         catSmallInt,
	"int2":             catSmallInt,
	"smallserial":      catSmallInt,
	"serial2":          catSmallInt,
	"tinyint":          catSmallInt,
	"integer":          catInt,
	"int":              catInt,
	"int4":             catInt,
	"serial":           catInt,
	"serial4":          catInt,
	"mediumint":        catInt,
	"bigint":           catBigInt,
	"int8":             catBigInt,
	"bigserial":        catBigInt,
	"serial8":          catBigInt,
	"real":             catFloat,
	"float4":           catFloat,
	"float8":           catFloat,
	"float":            catFloat,
	"double":           catFloat,
	"double precision": catFloat,
	"numeric":          catDecimal,
	"decimal":          catDecimal,
	"money":            catDecimal,
	"boolean":          catBool,
	"bool":             catBool,
	"date":             catDate,
	"uuid":             catUUID,
	"json":             catJSON,
	"jsonb":            catJSON,
	"bytea":            catBytes,
	"blob":             catBytes,
	"binary":           catBytes,
	"varbinary":        catBytes,
}

// classify maps a SQL type to its category and reports whether it is an
// array type. Unknown types are treated as strings.
func classify(sqlType string) (category, bool) {
	t := schema.NormalizeType(sqlType)
	array := false
	for strings.HasSuffix(t, "[]") {
		t = strings.TrimSuffix(t, "[]")
		array = true
	}
	base, _, _ := strings.Cut(t, "(")
	base = strings.TrimSpace(base)

	if c, ok := categories[base]; ok {
		return c, array
	}
	switch {
	case strings.HasPrefix(base, "timestamp"), base == "datetime":
		return catTimestamp, array
	case strings.HasPrefix(base, "time"):
		return catTime, array
	}
	return catString, array
}

// field is a column as seen by a language template
type field struct {
	Name     string // identifier in the target language
	Accessor string // PascalCase form, for getters and properties
	Column   string
	Type     string
	Nullable bool
	Primary  bool
}

// entity is the data handed to a language template
type entity struct {
	Name    string
	Table   string
	Package string
	Imports []string
	Fields  []field
}

func dedupe(items []string) []string {
	var out []string
	for _, it := range items {
		if it != "" && !slices.Contains(out, it) {
			out = append(out, it)
		}
	}
	sort.Strings(out)
	return out
}
