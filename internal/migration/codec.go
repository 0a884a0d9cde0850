package migration

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	headerPrefix = "-- migracraft:"
	upMarker     = "-- +migrate Up"
	downMarker   = "-- +migrate Down"
)

// Encode renders a migration file. Metadata goes into header comments; the
// up and down sections hold one statement per ";"-terminated block.
func Encode(m *Migration) []byte {
	var buf bytes.Buffer
	header := func(key, value string) {
		fmt.Fprintf(&buf, "%s %s=%s\n", headerPrefix, key, value)
	}
	header("id", strconv.FormatInt(m.ID, 10))
	header("name", cleanName(m.Name))
	header("kind", string(m.Kind))
	header("parent", strconv.FormatInt(m.ParentID, 10))
	if m.RollbackOf != 0 {
		header("rollback_of", strconv.FormatInt(m.RollbackOf, 10))
	}
	header("created_at", m.CreatedAt.UTC().Format(time.RFC3339))

	writeSection := func(marker string, stmts []string) {
		buf.WriteString("\n" + marker + "\n")
		for _, stmt := range stmts {
			buf.WriteString(stmt)
			buf.WriteString("\n\n")
		}
	}
	writeSection(upMarker, m.Up)
	writeSection(downMarker, m.Down)
	return buf.Bytes()
}

// Decode parses a migration file written by Encode.
func Decode(data []byte) (*Migration, error) {
	m := &Migration{Kind: KindMigration}

	var (
		section *[]string
		stmt    []string
		seenUp  bool
		seenDn  bool
	)
	flush := func() {
		*section = append(*section, strings.Join(stmt, "\n"))
		stmt = nil
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(line)

		if (trimmed == upMarker || trimmed == downMarker) && len(stmt) > 0 {
			return nil, fmt.Errorf("line %d: unterminated statement before %q", lineNo, trimmed)
		}

		switch {
		case trimmed == upMarker:
			section, seenUp = &m.Up, true
			continue
		case trimmed == downMarker:
			section, seenDn = &m.Down, true
			continue
		case section == nil && strings.HasPrefix(trimmed, headerPrefix):
			if err := m.setHeader(strings.TrimSpace(strings.TrimPrefix(trimmed, headerPrefix))); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		case len(stmt) == 0 && (trimmed == "" || strings.HasPrefix(trimmed, "--")):
			continue
		case section == nil:
			return nil, fmt.Errorf("line %d: statement outside of an up or down section", lineNo)
		}

		stmt = append(stmt, line)
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migration: %w", err)
	}
	if len(stmt) > 0 {
		return nil, fmt.Errorf("unterminated statement at end of migration: %q", strings.Join(stmt, "\n"))
	}
	if !seenUp || !seenDn {
		return nil, fmt.Errorf("migration must contain %q and %q sections", upMarker, downMarker)
	}
	return m, nil
}

func (m *Migration) setHeader(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return fmt.Errorf("malformed header %q", kv)
	}
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)

	parseID := func() (int64, error) {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		return n, nil
	}

	var err error
	switch key {
	case "id":
		m.ID, err = parseID()
	case "name":
		m.Name = value
	case "kind":
		switch Kind(value) {
		case KindMigration, KindRollback:
			m.Kind = Kind(value)
		default:
			err = fmt.Errorf("unknown kind %q", value)
		}
	case "parent":
		m.ParentID, err = parseID()
	case "rollback_of":
		m.RollbackOf, err = parseID()
	case "created_at":
		m.CreatedAt, err = time.Parse(time.RFC3339, value)
	}
	// Unknown keys are ignored so newer files stay readable.
	return err
}
