package schema

// Action enumerates the PostgreSQL-style privilege/policy actions a role
// can be granted or restricted against, matching subzero-core's
// `schema::Action` (subzero-core/src/permissions.rs).
type Action int

const (
	ActionSelect Action = iota
	ActionInsert
	ActionUpdate
	ActionDelete
	ActionExecute
	ActionAll
)

// Role is just a name; kept as a distinct type (rather than bare string)
// so policy/grant maps read clearly at call sites.
type Role string

const (
	// RolePublic is the pseudo-role every policy lookup additionally checks,
	// matching PostgreSQL's PUBLIC pseudo-role semantics (spec.md §4.3).
	RolePublic Role = "public"
)

// ColumnSet is either "all columns" (Star propagated, spec.md §4.2 "Star
// expansion") or an explicit list.
type ColumnSet struct {
	All     bool
	Columns []string
}

// AllColumns reports the universal column set.
func AllColumns() ColumnSet { return ColumnSet{All: true} }

// SpecificColumns reports an explicit column set.
func SpecificColumns(cols []string) ColumnSet { return ColumnSet{Columns: cols} }

// Contains reports whether every column in `want` is present in the set
// (or the set is All).
func (c ColumnSet) Contains(want []string) bool {
	if c.All {
		return true
	}
	have := map[string]bool{}
	for _, col := range c.Columns {
		have[col] = true
	}
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}

// Grant is the privilege surface granted to one role on one object:
// whether each action is permitted at all, and which columns are visible
// to select/insert/update for that action.
type Grant struct {
	Select, Insert, Update, Delete, Execute bool
	ColsSelect, ColsInsert, ColsUpdate       ColumnSet
}

// Policies reference value.Condition directly (see policy.go); package
// value does not import schema, so there is no import cycle.

// Permissions bundles grants (what a role may do) and policies (row
// security predicates) for one Table/View object, matching spec.md §3's
// `Permissions { grants, policies }`.
type Permissions struct {
	Grants   map[Role]Grant
	Policies map[PolicyKey][]Policy
}

// PolicyKey is the (role, action) pair policies are scoped to.
type PolicyKey struct {
	Role   Role
	Action Action
}

// NewPermissions returns an empty Permissions ready to be populated from
// introspection.
func NewPermissions() Permissions {
	return Permissions{Grants: map[Role]Grant{}, Policies: map[PolicyKey][]Policy{}}
}
