/*
Package access holds user accounts, roles and the role -> section table.

PURPOSE:
  Every shop command belongs to a section (inventory, sales, ...). A role
  may use a section if the table lists it. Login is a stateless credential
  check against bcrypt hashes; there are no sessions or tokens.

DEFAULT TABLE:
  admin -> dashboard, inventory, customers, sales, service, invoices, users
  owner -> dashboard, inventory, customers, sales, service, invoices
  staff -> dashboard, inventory, customers, sales, service, invoices

SEE ALSO:
  - users.go: Accounts and login
  - factory/roles.go: Loads a replacement table from JSON or YAML
*/
package access

import (
	"fmt"
	"sort"
	"strings"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
)

// Roles lists the known roles.
var Roles = []Role{RoleAdmin, RoleOwner, RoleStaff}

type Section string

const (
	SectionDashboard Section = "dashboard"
	SectionInventory Section = "inventory"
	SectionCustomers Section = "customers"
	SectionSales     Section = "sales"
	SectionService   Section = "service"
	SectionInvoices  Section = "invoices"
	SectionUsers     Section = "users"
)

// Sections lists every section in menu order.
var Sections = []Section{
	SectionDashboard, SectionInventory, SectionCustomers, SectionSales,
	SectionService, SectionInvoices, SectionUsers,
}

// Table maps a role to the sections it may use.
type Table map[Role][]Section

// DefaultTable returns the built-in permissions.
func DefaultTable() Table {
	shop := []Section{
		SectionDashboard, SectionInventory, SectionCustomers,
		SectionSales, SectionService, SectionInvoices,
	}
	return Table{
		RoleAdmin: append(append([]Section{}, shop...), SectionUsers),
		RoleOwner: append([]Section{}, shop...),
		RoleStaff: append([]Section{}, shop...),
	}
}

// Validate rejects unknown roles and sections.
func (t Table) Validate() error {
	for role, sections := range t {
		if !knownRole(role) {
			return fmt.Errorf("unknown role %q", role)
		}
		for _, s := range sections {
			if !knownSection(s) {
				return fmt.Errorf("role %q: unknown section %q", role, s)
			}
		}
	}
	return nil
}

// Policy answers permission questions for a fixed table.
type Policy struct {
	allowed map[Role]map[Section]bool
}

// NewPolicy builds a policy from t. Roles absent from t have no access.
func NewPolicy(t Table) *Policy {
	p := &Policy{allowed: make(map[Role]map[Section]bool, len(t))}
	for role, sections := range t {
		set := make(map[Section]bool, len(sections))
		for _, s := range sections {
			set[s] = true
		}
		p.allowed[role] = set
	}
	return p
}

// DefaultPolicy is NewPolicy(DefaultTable()).
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultTable())
}

// HasPermission reports whether role may use section.
func (p *Policy) HasPermission(role Role, section Section) bool {
	return p.allowed[role][section]
}

// Sections returns the sections role may use, in menu order.
func (p *Policy) Sections(role Role) []Section {
	var out []Section
	for _, s := range Sections {
		if p.allowed[role][s] {
			out = append(out, s)
		}
	}
	return out
}

// Table returns a copy of the policy as a Table with sorted sections.
func (p *Policy) Table() Table {
	t := make(Table, len(p.allowed))
	for role, set := range p.allowed {
		sections := make([]Section, 0, len(set))
		for s := range set {
			sections = append(sections, s)
		}
		sort.Slice(sections, func(i, j int) bool { return sections[i] < sections[j] })
		t[role] = sections
	}
	return t
}

// ParseRole accepts a role name, case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, knownRole(r)
}

func knownRole(r Role) bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

func knownSection(s Section) bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}
