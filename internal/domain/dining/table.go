// Package dining models the physical tables dine-in orders attach to.
package dining

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrTableNotFound is returned when the tenant has no such table.
var ErrTableNotFound = errors.New("table not found")

// Table is a physical table at a tenant's venue.
type Table struct {
	ID       string
	TenantID string
	Label    string
	Seats    int
	Active   bool
}

// TableDirectory looks up tables by tenant-scoped ID.
type TableDirectory interface {
	GetTable(ctx context.Context, tenantID, tableID string) (*Table, error)
}
