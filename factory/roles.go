/*
Package factory converts role policy documents into access tables.

PURPOSE:
  Lets an owner change which roles may use which sections without a code
  change. The document is loaded once at start-up (ROLE_POLICY_FILE) and
  replaces the built-in access.DefaultTable.

DOCUMENT SCHEMA (JSON):
  {
    "roles": {
      "admin": ["dashboard", "inventory", "customers", "sales",
                "service", "invoices", "users"],
      "owner": ["dashboard", "inventory", "customers", "sales",
                "service", "invoices"],
      "staff": ["dashboard", "inventory", "customers", "sales", "service"]
    }
  }

  The same document in YAML:
    roles:
      admin: [dashboard, inventory, customers, sales, service, invoices, users]
      staff: [dashboard, sales]

RULES:
  - Role and section names are case-insensitive
  - Unknown roles or sections are rejected
  - admin must keep the users section, otherwise nobody could manage accounts
  - Roles missing from the document have no access

USAGE:
  f := factory.NewRoleFactory()
  table, err := f.Load("config/roles.yaml")
  engine := shop.New(store, shop.WithPolicy(access.NewPolicy(table)))

SEE ALSO:
  - access/permissions.go: Table, Policy and the default table
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/warp/watchcraft/access"
)

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// RolesDoc is the serialized form of an access.Table.
type RolesDoc struct {
	Roles map[string][]string `json:"roles" yaml:"roles"`
}

// Format of a roles document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Anything that is not
// .json is read as YAML, which also accepts JSON.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// =============================================================================
// ROLE FACTORY
// =============================================================================

type RoleFactory struct{}

func NewRoleFactory() *RoleFactory {
	return &RoleFactory{}
}

// Load reads and parses a roles document from disk.
func (f *RoleFactory) Load(path string) (access.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role policy: %w", err)
	}
	return f.Parse(data, FormatFor(path))
}

// Parse decodes data and converts it with FromDoc.
func (f *RoleFactory) Parse(data []byte, format Format) (access.Table, error) {
	var doc RolesDoc
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse role policy JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse role policy YAML: %w", err)
		}
	}
	return f.FromDoc(doc)
}

// FromDoc converts and validates a document.
func (f *RoleFactory) FromDoc(doc RolesDoc) (access.Table, error) {
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("role policy defines no roles")
	}
	table := make(access.Table, len(doc.Roles))
	for name, sections := range doc.Roles {
		role, ok := access.ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		seen := make(map[access.Section]bool, len(sections))
		for _, s := range sections {
			section := access.Section(strings.ToLower(strings.TrimSpace(s)))
			if seen[section] {
				continue
			}
			seen[section] = true
			table[role] = append(table[role], section)
		}
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	if !access.NewPolicy(table).HasPermission(access.RoleAdmin, access.SectionUsers) {
		return nil, fmt.Errorf("role %q must keep section %q", access.RoleAdmin, access.SectionUsers)
	}
	return table, nil
}

// ToDoc converts a table back into a document with sorted sections.
func (f *RoleFactory) ToDoc(t access.Table) RolesDoc {
	doc := RolesDoc{Roles: make(map[string][]string, len(t))}
	for role, sections := range t {
		names := make([]string, 0, len(sections))
		for _, s := range sections {
			names = append(names, string(s))
		}
		sort.Strings(names)
		doc.Roles[string(role)] = names
	}
	return doc
}

// Marshal renders a table in the given format.
func (f *RoleFactory) Marshal(t access.Table, format Format) ([]byte, error) {
	doc := f.ToDoc(t)
	if format == FormatJSON {
		return json.MarshalIndent(doc, "", "  ")
	}
	return yaml.Marshal(doc)
}
