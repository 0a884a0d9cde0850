package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/migracraft/internal/schema"
)

// sqlType is a parsed PostgreSQL type name
type sqlType struct {
	base  string
	args  []int
	array bool
}

var typeAliases = map[string]string{
	"int":                         "integer",
	"int4":                        "integer",
	"serial":                      "integer",
	"serial4":                     "integer",
	"int2":                        "smallint",
	"smallserial":                 "smallint",
	"serial2":                     "smallint",
	"int8":                        "bigint",
	"bigserial":                   "bigint",
	"serial8":                     "bigint",
	"float4":                      "real",
	"float8":                      "double precision",
	"float":                       "double precision",
	"bool":                        "boolean",
	"character varying":           "varchar",
	"character":                   "char",
	"bpchar":                      "char",
	"decimal":                     "numeric",
	"timestamp without time zone": "timestamp",
	"timestamp with time zone":    "timestamptz",
	"time without time zone":      "time",
	"time with time zone":         "timetz",
	"bit varying":                 "varbit",
}

// decimal digits needed to hold every value of an integer type
var integerDigits = map[string]int{
	"smallint": 5,
	"integer":  10,
	"bigint":   19,
}

// widening lists the cross-type casts that never lose data
var widening = map[string][]string{
	"smallint":    {"integer", "bigint", "numeric", "real", "double precision"},
	"integer":     {"bigint", "numeric", "double precision"},
	"bigint":      {"numeric"},
	"real":        {"double precision"},
	"date":        {"timestamp", "timestamptz"},
	"timestamp":   {"timestamptz"},
	"timestamptz": {"timestamp"},
	"time":        {"timetz"},
	"json":        {"jsonb"},
	"jsonb":       {"json"},
	"char":        {"varchar"},
	"varchar":     {"char"},
	"bit":         {"varbit"},
}

// lengthBounded types take a single length or precision argument
var lengthBounded = map[string]bool{
	"varchar":     true,
	"char":        true,
	"bit":         true,
	"varbit":      true,
	"time":        true,
	"timetz":      true,
	"timestamp":   true,
	"timestamptz": true,
}

func parseType(raw string) sqlType {
	t := schema.NormalizeType(raw)
	var out sqlType
	for strings.HasSuffix(t, "[]") {
		out.array = true
		t = strings.TrimSuffix(t, "[]")
	}

	base := t
	open, closing := strings.Index(t, "("), strings.Index(t, ")")
	if open >= 0 && closing > open {
		for _, a := range strings.Split(t[open+1:closing], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(a))
			if err != nil {
				continue
			}
			out.args = append(out.args, n)
		}
		// keeps suffixes such as "timestamp(3) with time zone"
		base = t[:open] + " " + t[closing+1:]
	}
	base = strings.Join(strings.Fields(base), " ")
	if alias, ok := typeAliases[base]; ok {
		base = alias
	}
	out.base = base
	return out
}

func (t sqlType) unbounded() bool {
	switch t.base {
	case "text", "citext":
		return true
	case "varchar":
		return len(t.args) == 0
	}
	return false
}

// Narrowing reports whether changing a column from one type to another can
// lose or truncate data, and why. Type pairs without a known widening cast
// are treated as destructive.
func Narrowing(from, to string) (bool, string) {
	if schema.SameType(from, to) {
		return false, ""
	}
	f, t := parseType(from), parseType(to)

	if f.array != t.array {
		if t.unbounded() && !t.array {
			return false, ""
		}
		return true, fmt.Sprintf("no implicit cast from %s to %s", from, to)
	}

	// Everything renders into unbounded text.
	if t.unbounded() {
		return false, ""
	}
	if f.unbounded() {
		return true, fmt.Sprintf("unbounded %s narrowed to %s", from, to)
	}

	if f.base == t.base {
		return narrowedArgs(f, t, from, to)
	}

	if digits, ok := integerDigits[f.base]; ok && t.base == "numeric" {
		if len(t.args) == 0 {
			return false, ""
		}
		scale := 0
		if len(t.args) > 1 {
			scale = t.args[1]
		}
		if t.args[0]-scale < digits {
			return true, fmt.Sprintf("%s does not fit into %s", from, to)
		}
		return false, ""
	}

	for _, wider := range widening[f.base] {
		if wider != t.base {
			continue
		}
		// char(n) <-> varchar(m) keeps data only when m >= n
		if lengthBounded[f.base] && len(f.args) > 0 && len(t.args) > 0 && t.args[0] < f.args[0] {
			return true, fmt.Sprintf("length shrinks from %d to %d", f.args[0], t.args[0])
		}
		return false, ""
	}

	return true, fmt.Sprintf("no implicit cast from %s to %s", from, to)
}

func narrowedArgs(f, t sqlType, from, to string) (bool, string) {
	switch {
	case len(t.args) == 0:
		return false, ""
	case len(f.args) == 0:
		if f.base == "numeric" {
			return true, fmt.Sprintf("unconstrained %s narrowed to %s", from, to)
		}
		// char without length is char(1); timestamps default to full precision
		if f.base == "char" {
			return false, ""
		}
		return true, fmt.Sprintf("%s narrowed to %s", from, to)
	}

	if f.base == "numeric" {
		fs, ts := 0, 0
		if len(f.args) > 1 {
			fs = f.args[1]
		}
		if len(t.args) > 1 {
			ts = t.args[1]
		}
		if ts < fs {
			return true, fmt.Sprintf("scale shrinks from %d to %d", fs, ts)
		}
		if t.args[0]-ts < f.args[0]-fs {
			return true, fmt.Sprintf("precision shrinks from %d to %d", f.args[0], t.args[0])
		}
		return false, ""
	}

	if t.args[0] < f.args[0] {
		return true, fmt.Sprintf("length shrinks from %d to %d", f.args[0], t.args[0])
	}
	return false, ""
}
