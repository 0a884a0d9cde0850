package ddl

import (
	"fmt"
	"strings"

	"github.com/tordrt/migracraft/internal/diff"
	"github.com/tordrt/migracraft/internal/schema"
)

// Operation is one DDL statement. The set of implementations is closed:
// every operation renders to PostgreSQL, has an exact inverse and can be
// simulated against a schema model.
type Operation interface {
	SQL() string
	Inverse() Operation
	apply(s *schema.Schema) error
}

type (
	// CreateTable creates a table with inline columns and constraints.
	// Indexes are created by separate CreateIndex operations.
	CreateTable struct{ Table schema.Table }
	DropTable   struct{ Table schema.Table }
	RenameTable struct{ From, To string }

	AddColumn struct {
		Table  string
		Column schema.Column
	}
	DropColumn struct {
		Table  string
		Column schema.Column
	}
	RenameColumn struct {
		Table    string
		From, To string
	}
	AlterColumnType struct {
		Table, Column string
		From, To      string
	}
	AlterColumnNullability struct {
		Table, Column string
		Nullable      bool
	}
	AlterColumnDefault struct {
		Table, Column string
		From, To      *string
	}
	AlterColumnIdentity struct {
		Table, Column string
		Identity      bool
	}

	AddConstraint struct {
		Table      string
		Constraint schema.Constraint
	}
	DropConstraint struct {
		Table      string
		Constraint schema.Constraint
	}
	RenameConstraint struct {
		Table    string
		From, To string
	}

	CreateIndex struct{ Index schema.Index }
	DropIndex   struct{ Index schema.Index }
	RenameIndex struct {
		Table    string
		From, To string
	}
)

func (o CreateTable) SQL() string {
	var defs []string
	for _, c := range o.Table.Columns {
		defs = append(defs, columnDefinition(c))
	}
	for _, c := range o.Table.Constraints {
		defs = append(defs, constraintDefinition(c))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n);", quoteIdent(o.Table.Name), strings.Join(defs, ",\n    "))
}

func (o DropTable) SQL() string {
	return fmt.Sprintf("DROP TABLE %s;", quoteIdent(o.Table.Name))
}

func (o RenameTable) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", quoteIdent(o.From), quoteIdent(o.To))
}

func (o AddColumn) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", quoteIdent(o.Table), columnDefinition(o.Column))
}

func (o DropColumn) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", quoteIdent(o.Table), quoteIdent(o.Column.Name))
}

func (o RenameColumn) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", quoteIdent(o.Table), quoteIdent(o.From), quoteIdent(o.To))
}

func (o AlterColumnType) SQL() string {
	stmt := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", quoteIdent(o.Table), quoteIdent(o.Column), o.To)
	// Casts that are not implicit widenings need an explicit conversion.
	if narrowing, _ := diff.Narrowing(o.From, o.To); narrowing {
		stmt += fmt.Sprintf(" USING %s::%s", quoteIdent(o.Column), o.To)
	}
	return stmt + ";"
}

func (o AlterColumnNullability) SQL() string {
	action := "SET NOT NULL"
	if o.Nullable {
		action = "DROP NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s;", quoteIdent(o.Table), quoteIdent(o.Column), action)
}

func (o AlterColumnDefault) SQL() string {
	if o.To == nil {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", quoteIdent(o.Table), quoteIdent(o.Column))
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", quoteIdent(o.Table), quoteIdent(o.Column), *o.To)
}

func (o AlterColumnIdentity) SQL() string {
	if o.Identity {
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s ADD GENERATED BY DEFAULT AS IDENTITY;", quoteIdent(o.Table), quoteIdent(o.Column))
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP IDENTITY;", quoteIdent(o.Table), quoteIdent(o.Column))
}

func (o AddConstraint) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s;", quoteIdent(o.Table), constraintDefinition(o.Constraint))
}

func (o DropConstraint) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", quoteIdent(o.Table), quoteIdent(o.Constraint.Name))
}

func (o RenameConstraint) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s;", quoteIdent(o.Table), quoteIdent(o.From), quoteIdent(o.To))
}

func (o CreateIndex) SQL() string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if o.Index.Unique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString(fmt.Sprintf("INDEX %s ON %s", quoteIdent(o.Index.Name), quoteIdent(o.Index.Table)))
	if o.Index.Method != "" {
		sb.WriteString(" USING " + o.Index.Method)
	}
	sb.WriteString(fmt.Sprintf(" (%s);", quoteIdents(o.Index.Columns)))
	return sb.String()
}

func (o DropIndex) SQL() string {
	return fmt.Sprintf("DROP INDEX %s;", quoteIdent(o.Index.Name))
}

func (o RenameIndex) SQL() string {
	return fmt.Sprintf("ALTER INDEX %s RENAME TO %s;", quoteIdent(o.From), quoteIdent(o.To))
}

func (o CreateTable) Inverse() Operation  { return DropTable(o) }
func (o DropTable) Inverse() Operation    { return CreateTable(o) }
func (o RenameTable) Inverse() Operation  { return RenameTable{From: o.To, To: o.From} }
func (o AddColumn) Inverse() Operation    { return DropColumn(o) }
func (o DropColumn) Inverse() Operation   { return AddColumn(o) }
func (o RenameColumn) Inverse() Operation { return RenameColumn{Table: o.Table, From: o.To, To: o.From} }
func (o AlterColumnType) Inverse() Operation {
	return AlterColumnType{Table: o.Table, Column: o.Column, From: o.To, To: o.From}
}
func (o AlterColumnNullability) Inverse() Operation {
	return AlterColumnNullability{Table: o.Table, Column: o.Column, Nullable: !o.Nullable}
}
func (o AlterColumnDefault) Inverse() Operation {
	return AlterColumnDefault{Table: o.Table, Column: o.Column, From: o.To, To: o.From}
}
func (o AlterColumnIdentity) Inverse() Operation {
	return AlterColumnIdentity{Table: o.Table, Column: o.Column, Identity: !o.Identity}
}
func (o AddConstraint) Inverse() Operation  { return DropConstraint(o) }
func (o DropConstraint) Inverse() Operation { return AddConstraint(o) }
func (o RenameConstraint) Inverse() Operation {
	return RenameConstraint{Table: o.Table, From: o.To, To: o.From}
}
func (o CreateIndex) Inverse() Operation { return DropIndex(o) }
func (o DropIndex) Inverse() Operation   { return CreateIndex(o) }
func (o RenameIndex) Inverse() Operation {
	return RenameIndex{Table: o.Table, From: o.To, To: o.From}
}

func columnDefinition(c schema.Column) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s", quoteIdent(c.Name), c.Type))
	if c.Identity {
		sb.WriteString(" GENERATED BY DEFAULT AS IDENTITY")
	}
	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		sb.WriteString(" DEFAULT " + *c.Default)
	}
	return sb.String()
}

func constraintDefinition(c schema.Constraint) string {
	prefix := "CONSTRAINT " + quoteIdent(c.Name) + " "
	switch c.Kind {
	case schema.PrimaryKey:
		return prefix + fmt.Sprintf("PRIMARY KEY (%s)", quoteIdents(c.Columns))
	case schema.Unique:
		return prefix + fmt.Sprintf("UNIQUE (%s)", quoteIdents(c.Columns))
	case schema.Check:
		return prefix + fmt.Sprintf("CHECK (%s)", c.Expression)
	case schema.ForeignKey:
		def := prefix + fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdents(c.Columns), quoteIdent(c.References.Table), quoteIdents(c.References.Columns))
		if c.References.OnDelete != "" {
			def += " ON DELETE " + strings.ToUpper(c.References.OnDelete)
		}
		if c.References.OnUpdate != "" {
			def += " ON UPDATE " + strings.ToUpper(c.References.OnUpdate)
		}
		return def
	default:
		return prefix + string(c.Kind)
	}
}
