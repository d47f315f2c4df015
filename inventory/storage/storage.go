// Package storage defines types and interfaces to support the scan history inventory.
package storage

import (
	"context"
	"errors"
)

// ErrNoIDs is returned when a query or write names no device IDs.
var ErrNoIDs = errors.New("no IDs provided")

// SearchOptions is a basic query for inventory of device IDs.
type SearchOptions struct {
	IDs []string // slice of device IDs (serial numbers or scan IDs) to query against
}

// Values maps inventory storage keys to values.
type Values map[string]interface{}

type ReadStorage interface {
	// RetrieveInventory queries and returns the inventory values mapped by device ID.
	RetrieveInventory(ctx context.Context, opt *SearchOptions) (map[string]Values, error)

	// ListIDs returns the unordered IDs of every device in the inventory.
	ListIDs(ctx context.Context) ([]string, error)
}

type Storage interface {
	ReadStorage
	StoreInventoryValues(ctx context.Context, id string, values Values) error
	DeleteInventory(ctx context.Context, id string) error
}
