// Package inmem implements an in-memory inventory storage backend.
package inmem

import (
	"github.com/micromdm/nanoprobe/inventory/storage/kv"
	"github.com/micromdm/nanoprobe/utils/kv/kvmap"
)

// InMem is an in-memory inventory storage backend.
// Scan history is lost when the process exits.
type InMem struct {
	*kv.KV
}

// New creates a new in-memory inventory storage backend.
func New() *InMem {
	return &InMem{KV: kv.New(kvmap.NewBucket())}
}
