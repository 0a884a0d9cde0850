package ddl

import (
	"fmt"
	"strings"
)

// CircularDependencyError reports tables whose foreign keys form a cycle, so
// no creation order exists. Breaking the cycle (for example by adding one of
// the foreign keys in a later migration) is left to the schema author.
type CircularDependencyError struct {
	Tables []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular foreign key dependency between tables: %s", strings.Join(e.Tables, ", "))
}

// DestructiveChangeError lists changes that may lose data and were not
// explicitly allowed. Each entry has the form "table.column: reason".
type DestructiveChangeError struct {
	Changes []string
}

func (e *DestructiveChangeError) Error() string {
	if len(e.Changes) == 1 {
		return "destructive change requires confirmation: " + e.Changes[0]
	}
	return fmt.Sprintf("%d destructive changes require confirmation:\n  - %s",
		len(e.Changes), strings.Join(e.Changes, "\n  - "))
}
