package cache

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resource names the family of a cache key. Keys are composed as
// {resource}:{organizationId}:{qualifier}.
type Resource string

const (
	ResourceCustomers      Resource = "customers"
	ResourceCustomerSearch Resource = "customer_search"
	ResourceExpenses       Resource = "expenses"
	ResourceVendors        Resource = "vendors"
	ResourceSales          Resource = "sales"
	ResourceMarketing      Resource = "marketing"
)

// Known resources, used to validate operator input
var Resources = []Resource{
	ResourceCustomers,
	ResourceCustomerSearch,
	ResourceExpenses,
	ResourceVendors,
	ResourceSales,
	ResourceMarketing,
}

// IsKnown reports whether r is one of Resources
func (r Resource) IsKnown() bool {
	for _, known := range Resources {
		if r == known {
			return true
		}
	}
	return false
}

// TTL presets
const (
	TTLVolatile  = 5 * time.Minute  // marketing data
	TTLSnapshot  = 15 * time.Minute // customer snapshots
	TTLSearch    = 3600 * time.Second
	TTLReference = 3 * time.Hour // reference data
)

// Key builds {resource}:{orgID}:{qualifier}
func Key(resource Resource, orgID uuid.UUID, qualifier string) string {
	var b strings.Builder
	b.Grow(len(resource) + 38 + len(qualifier))
	b.WriteString(string(resource))
	b.WriteByte(':')
	b.WriteString(orgID.String())
	b.WriteByte(':')
	b.WriteString(qualifier)
	return b.String()
}

// SearchKey builds the key of a raw customer search query
func SearchKey(orgID uuid.UUID, query string) string {
	return Key(ResourceCustomerSearch, orgID, query)
}

// Pattern builds {resource}:{orgID}:* or *:{orgID}:* for an empty resource
func Pattern(orgID uuid.UUID, resource Resource) string {
	if resource == "" {
		return "*:" + orgID.String() + ":*"
	}
	return string(resource) + ":" + orgID.String() + ":*"
}
