package schema

import "fmt"

// grantFor resolves the Grant for (role, schema, object), falling back to
// RolePublic when the role has no explicit grant recorded — mirroring
// PostgreSQL's implicit PUBLIC grant inheritance.
func (c *Catalog) grantFor(role Role, schemaName, objectName string) (Grant, bool) {
	obj, ok := c.GetObject(schemaName, objectName)
	if !ok {
		return Grant{}, false
	}
	if g, ok := obj.Permissions.Grants[role]; ok {
		return g, true
	}
	if g, ok := obj.Permissions.Grants[RolePublic]; ok {
		return g, true
	}
	return Grant{}, false
}

// HasSelectPrivileges checks that role may select every column in cols
// from schemaName.objectName — part of the §4.3 "Privilege gating" pass.
func (c *Catalog) HasSelectPrivileges(role Role, schemaName, objectName string, cols ColumnSet) error {
	g, ok := c.grantFor(role, schemaName, objectName)
	if !ok || !g.Select {
		return fmt.Errorf("role %q has no select privilege on %s.%s", role, schemaName, objectName)
	}
	if !cols.All && !g.ColsSelect.Contains(cols.Columns) {
		return fmt.Errorf("role %q lacks select privilege on one or more columns of %s.%s", role, schemaName, objectName)
	}
	return nil
}

func (c *Catalog) HasInsertPrivileges(role Role, schemaName, objectName string, cols ColumnSet) error {
	g, ok := c.grantFor(role, schemaName, objectName)
	if !ok || !g.Insert {
		return fmt.Errorf("role %q has no insert privilege on %s.%s", role, schemaName, objectName)
	}
	if !cols.All && !g.ColsInsert.Contains(cols.Columns) {
		return fmt.Errorf("role %q lacks insert privilege on one or more columns of %s.%s", role, schemaName, objectName)
	}
	return nil
}

func (c *Catalog) HasUpdatePrivileges(role Role, schemaName, objectName string, cols ColumnSet) error {
	g, ok := c.grantFor(role, schemaName, objectName)
	if !ok || !g.Update {
		return fmt.Errorf("role %q has no update privilege on %s.%s", role, schemaName, objectName)
	}
	if !cols.All && !g.ColsUpdate.Contains(cols.Columns) {
		return fmt.Errorf("role %q lacks update privilege on one or more columns of %s.%s", role, schemaName, objectName)
	}
	return nil
}

func (c *Catalog) HasDeletePrivileges(role Role, schemaName, objectName string) error {
	g, ok := c.grantFor(role, schemaName, objectName)
	if !ok || !g.Delete {
		return fmt.Errorf("role %q has no delete privilege on %s.%s", role, schemaName, objectName)
	}
	return nil
}

func (c *Catalog) HasExecutePrivileges(role Role, schemaName, objectName string) error {
	g, ok := c.grantFor(role, schemaName, objectName)
	if !ok || !g.Execute {
		return fmt.Errorf("role %q has no execute privilege on %s.%s", role, schemaName, objectName)
	}
	return nil
}

// GetColumnsWithPrivileges returns the column set role may act on for
// action against schemaName.objectName, used to expand `*` in SELECT
// lists and in RETURNING per spec.md §4.2 "Star expansion".
func (c *Catalog) GetColumnsWithPrivileges(role Role, action Action, schemaName, objectName string) ColumnSet {
	g, ok := c.grantFor(role, schemaName, objectName)
	if !ok {
		return ColumnSet{}
	}
	switch action {
	case ActionInsert:
		return g.ColsInsert
	case ActionUpdate:
		return g.ColsUpdate
	default:
		return g.ColsSelect
	}
}

// PoliciesFor collects every policy applicable to (role, action),
// including the `public` pseudo-role, matching
// subzero-core/src/permissions.rs insert_policy_conditions' policy
// collection step.
func (o *Object) PoliciesFor(role Role, actions ...Action) []Policy {
	var out []Policy
	for _, action := range actions {
		if pv, ok := o.Permissions.Policies[PolicyKey{Role: role, Action: action}]; ok {
			out = append(out, pv...)
		}
		if role != RolePublic {
			if pv, ok := o.Permissions.Policies[PolicyKey{Role: RolePublic, Action: action}]; ok {
				out = append(out, pv...)
			}
		}
	}
	return out
}
