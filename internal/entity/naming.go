package entity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// words splits a snake, kebab or dotted identifier into its parts.
func words(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func pascalCase(name string) string {
	title := cases.Title(language.English)
	var b strings.Builder
	for _, w := range words(name) {
		b.WriteString(title.String(w))
	}
	return b.String()
}

func camelCase(name string) string {
	parts := words(name)
	if len(parts) == 0 {
		return ""
	}
	lower := cases.Lower(language.English)
	return lower.String(parts[0]) + pascalCase(strings.Join(parts[1:], "_"))
}

func snakeCase(name string) string {
	lower := cases.Lower(language.English)
	return lower.String(strings.Join(words(name), "_"))
}

var goInitialisms = map[string]bool{
	"id": true, "ip": true, "url": true, "uri": true, "uuid": true,
	"api": true, "http": true, "json": true, "sql": true, "html": true,
}

// goName is pascalCase with Go's conventional initialisms upper-cased.
func goName(name string) string {
	title := cases.Title(language.English)
	upper := cases.Upper(language.English)
	var b strings.Builder
	for _, w := range words(name) {
		if goInitialisms[strings.ToLower(w)] {
			b.WriteString(upper.String(w))
			continue
		}
		b.WriteString(title.String(w))
	}
	return b.String()
}

// identifier prefixes names that would not start a valid identifier.
func identifier(name string) string {
	if name == "" {
		return "_"
	}
	if unicode.IsDigit(rune(name[0])) {
		return "_" + name
	}
	return name
}
