// Package diskv implements a diskv-backed inventory storage backend.
package diskv

import (
	"path/filepath"

	"github.com/micromdm/nanoprobe/inventory/storage/kv"
	"github.com/micromdm/nanoprobe/utils/kv/kvdiskv"
)

// Diskv is an on-disk device inventory data store.
// Each device is one JSON file under the "inventory" directory of path.
type Diskv struct {
	*kv.KV
}

// New creates a new initialized inventory data store.
func New(path string) *Diskv {
	return &Diskv{KV: kv.New(kvdiskv.New(filepath.Join(path, "inventory")))}
}
