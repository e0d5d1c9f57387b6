// Package store provides the generic storage manager for the offline data
// layer. Every local mutation is applied to the embedded store and recorded
// in the pending sync queue inside one transaction, so the queue never
// disagrees with the rows it describes.
package store

import (
	"github.com/rsahai/bizkeeper/internal/apperr"
)

// Collection identifies one entity collection. The set is closed: collection
// names arriving from the API layer are resolved through ParseCollection
// instead of being used as raw table names.
type Collection string

const (
	CollectionProjects    Collection = "projects"
	CollectionTasks       Collection = "tasks"
	CollectionTimeEntries Collection = "timeEntries"
	CollectionInvoices    Collection = "invoices"
	CollectionClients     Collection = "clients"
)

// Collections returns all known collections in a stable order.
func Collections() []Collection {
	return []Collection{
		CollectionProjects,
		CollectionTasks,
		CollectionTimeEntries,
		CollectionInvoices,
		CollectionClients,
	}
}

// ParseCollection resolves a wire-level collection name. Unknown names are a
// configuration error: they indicate a caller bug, not missing data.
func ParseCollection(name string) (Collection, error) {
	switch Collection(name) {
	case CollectionProjects, CollectionTasks, CollectionTimeEntries,
		CollectionInvoices, CollectionClients:
		return Collection(name), nil
	default:
		return "", apperr.New(apperr.ErrConfiguration, "unknown collection: "+name)
	}
}

// String returns the wire-level collection name, as used in REST paths.
func (c Collection) String() string {
	return string(c)
}

// table returns the SQLite table backing the collection. It panics on an
// unknown collection; all external input goes through ParseCollection first.
func (c Collection) table() string {
	switch c {
	case CollectionProjects:
		return "projects"
	case CollectionTasks:
		return "tasks"
	case CollectionTimeEntries:
		return "time_entries"
	case CollectionInvoices:
		return "invoices"
	case CollectionClients:
		return "clients"
	default:
		panic("store: unknown collection " + string(c))
	}
}
