package shop

import (
	"context"

	"github.com/warp/watchcraft/access"
	"github.com/warp/watchcraft/customers"
	"github.com/warp/watchcraft/generic"
	"github.com/warp/watchcraft/inventory"
	"github.com/warp/watchcraft/invoices"
	"github.com/warp/watchcraft/sales"
	"github.com/warp/watchcraft/tickets"
)

// Tables is every repository the ledgers need, plus the journal and the
// invoice sequences.
type Tables interface {
	inventory.Repository
	customers.Repository
	sales.Repository
	tickets.Repository
	invoices.Repository
	access.Repository
	generic.MovementStore
	generic.SequenceStore
}

// Store is Tables plus transactions. WithTx runs fn against a transactional
// view; if fn returns an error nothing it wrote is kept. Calls to WithTx are
// serialized.
//
// Implementations:
//   - generic/store.Memory
//   - store/sqlite.Store
type Store interface {
	Tables
	WithTx(ctx context.Context, fn func(Tables) error) error
}
