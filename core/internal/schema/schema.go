// Package schema is the introspected catalog the rest of the compiler
// resolves against: schemas -> objects (table/view/function) -> columns,
// foreign keys, grants and row-security policies. It is read-mostly for
// the lifetime of the process; a reload swaps the *Catalog pointer
// atomically (spec.md §5, "Global state").
package schema

import "fmt"

// Qi is a qualified identifier: (schema, relation). Mirrors subzero's
// `Qi(String, String)` tuple struct (src/api.rs).
type Qi struct {
	Schema string
	Name   string
}

func (q Qi) String() string {
	if q.Schema == "" {
		return q.Name
	}
	return q.Schema + "." + q.Name
}

// ObjectKind distinguishes the three object variants a catalog entry can be.
type ObjectKind int

const (
	KindTable ObjectKind = iota
	KindView
	KindFunction
)

// Column describes one column of a table or view.
type Column struct {
	Name       string
	DataType   string
	PrimaryKey bool
	Nullable   bool
}

// ForeignKey describes a reference from Table.Columns to
// ReferencedTable.ReferencedColumns. Invariant: len(Columns) == len(ReferencedColumns).
type ForeignKey struct {
	Name               string
	Table              Qi
	Columns            []string
	ReferencedTable    Qi
	ReferencedColumns  []string
}

// Volatility mirrors PostgreSQL's function volatility classes, used to
// decide whether a FunctionCall may be treated as read-only (spec.md §5).
type Volatility int

const (
	VolatilityVolatile Volatility = iota
	VolatilityStable
	VolatilityImmutable
)

// Parameter describes one formal parameter of a Function object.
type Parameter struct {
	Name     string
	Type     string
	Required bool
	Variadic bool
}

// Object is a tagged union over Table, View and Function, matching
// spec.md §3's "Object variants". Go has no sum types, so Kind selects
// which of the variant-specific fields are meaningful.
type Object struct {
	Kind    ObjectKind
	Name    Qi
	Columns map[string]Column

	// Table/View
	ForeignKeys []ForeignKey
	Permissions Permissions

	// Function
	Parameters   []Parameter
	ReturnType   Qi
	ReturnsSetof bool
	IsScalar     bool
	Volatility   Volatility
}

// ColumnOf looks up a column by name, reporting whether it exists.
func (o *Object) ColumnOf(name string) (Column, bool) {
	c, ok := o.Columns[name]
	return c, ok
}

// PrimaryKeyColumns returns the object's primary key column names in a
// stable order (sorted by name) for deterministic SQL generation.
func (o *Object) PrimaryKeyColumns() []string {
	var pk []string
	for _, c := range o.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return sortStrings(pk)
}

// Schema groups Objects that share a catalog namespace.
type Schema struct {
	Name    string
	Objects map[string]*Object
}

// Catalog is the full introspected model. UseInternalPermissions toggles
// whether the Permission Engine enforces column/row privileges itself
// (true) or defers entirely to the database's own grants/policies
// (false) — spec.md §4.3 "native policies" mode.
type Catalog struct {
	Schemas               map[string]*Schema
	UseInternalPermissions bool
}

// NewCatalog builds an empty catalog ready to be populated by an
// engine-specific introspection query (out of scope for this package
// per spec.md §1).
func NewCatalog(useInternalPermissions bool) *Catalog {
	return &Catalog{Schemas: map[string]*Schema{}, UseInternalPermissions: useInternalPermissions}
}

// GetSchema returns the named schema or an UnacceptableSchema-flavored error
// left to the caller to construct (this package only reports existence).
func (c *Catalog) GetSchema(name string) (*Schema, bool) {
	s, ok := c.Schemas[name]
	return s, ok
}

// GetObject resolves an object by schema+name.
func (c *Catalog) GetObject(schemaName, name string) (*Object, bool) {
	s, ok := c.Schemas[schemaName]
	if !ok {
		return nil, false
	}
	o, ok := s.Objects[name]
	return o, ok
}

// AddObject inserts or replaces an object definition; used while building
// a catalog snapshot from introspection results.
func (c *Catalog) AddObject(schemaName string, o *Object) {
	s, ok := c.Schemas[schemaName]
	if !ok {
		s = &Schema{Name: schemaName, Objects: map[string]*Object{}}
		c.Schemas[schemaName] = s
	}
	s.Objects[o.Name.Name] = o
}

// ChildForeignKeys returns FKs defined on `target` that reference `origin`
// (i.e. the join used to embed target's children under origin).
func (c *Catalog) ChildForeignKeys(schemaName, origin, target string) []ForeignKey {
	obj, ok := c.GetObject(schemaName, target)
	if !ok {
		return nil
	}
	var out []ForeignKey
	for _, fk := range obj.ForeignKeys {
		if fk.ReferencedTable.Name == origin {
			out = append(out, fk)
		}
	}
	return out
}

// ParentForeignKeys returns FKs defined on `origin` that reference `target`
// (i.e. the join used to embed target as origin's parent row).
func (c *Catalog) ParentForeignKeys(schemaName, origin, target string) []ForeignKey {
	obj, ok := c.GetObject(schemaName, origin)
	if !ok {
		return nil
	}
	var out []ForeignKey
	for _, fk := range obj.ForeignKeys {
		if fk.ReferencedTable.Name == target {
			out = append(out, fk)
		}
	}
	return out
}

// JunctionCandidates scans every object in schemaName looking for a table
// with foreign keys to both origin and target (a many-to-many junction).
func (c *Catalog) JunctionCandidates(schemaName, origin, target string) []*Object {
	s, ok := c.Schemas[schemaName]
	if !ok {
		return nil
	}
	var out []*Object
	for _, o := range s.Objects {
		if o.Kind != KindTable {
			continue
		}
		var toOrigin, toTarget bool
		for _, fk := range o.ForeignKeys {
			if fk.ReferencedTable.Name == origin {
				toOrigin = true
			}
			if fk.ReferencedTable.Name == target {
				toTarget = true
			}
		}
		if toOrigin && toTarget {
			out = append(out, o)
		}
	}
	return out
}

func sortStrings(in []string) []string {
	out := append([]string(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// validateForeignKey reports an error when a foreign key's column
// count disagrees with its referenced column count,
// violating the invariant from spec.md §3.
func validateForeignKey(fk ForeignKey) error {
	if len(fk.Columns) != len(fk.ReferencedColumns) {
		return fmt.Errorf("foreign key %q: %d columns but %d referenced columns", fk.Name, len(fk.Columns), len(fk.ReferencedColumns))
	}
	return nil
}

// Validate checks the catalog invariants from spec.md §3: FK column-count
// symmetry, and that FK endpoints resolve to real objects.
func (c *Catalog) Validate() error {
	for schemaName, s := range c.Schemas {
		for _, o := range s.Objects {
			for _, fk := range o.ForeignKeys {
				if err := validateForeignKey(fk); err != nil {
					return err
				}
				if _, ok := c.GetObject(fk.Table.Schema, fk.Table.Name); !ok {
					return fmt.Errorf("foreign key %q: table %s not found in catalog", fk.Name, fk.Table)
				}
				if _, ok := c.GetObject(fk.ReferencedTable.Schema, fk.ReferencedTable.Name); !ok {
					return fmt.Errorf("foreign key %q: referenced table %s not found in catalog", fk.Name, fk.ReferencedTable)
				}
			}
			_ = schemaName
		}
	}
	return nil
}
