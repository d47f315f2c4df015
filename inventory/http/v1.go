package http

import (
	"net/http"

	"github.com/micromdm/nanoprobe/inventory/storage"

	"github.com/micromdm/nanolib/log"
)

// Mux can register HTTP handlers.
// Ostensibly this supports flow router.
type Mux interface {
	// Handle registers the handler for the given pattern.
	Handle(pattern string, handler http.Handler, methods ...string)
}

// HandleAPIv1 registers the various API handlers into mux.
// API endpoint paths are prepended with prefix.
// Authentication or any other layered handlers are not present.
// The API is read-only and meant to be bound to a local address.
// The logger is adorned with a "handler" key of the endpoint name.
func HandleAPIv1(prefix string, mux Mux, logger log.Logger, s storage.ReadStorage) {
	mux.Handle(
		prefix+"/inventory",
		RetrieveInventory(s, logger.With("handler", "get-inventory")),
		"GET",
	)
	mux.Handle(
		prefix+"/inventory/ids",
		ListIDs(s, logger.With("handler", "list-inventory")),
		"GET",
	)
}
