package main

import (
	"fmt"

	"github.com/micromdm/nanoprobe/inventory/storage"
	"github.com/micromdm/nanoprobe/inventory/storage/diskv"
	"github.com/micromdm/nanoprobe/inventory/storage/inmem"
)

func parseStorage(name, dsn string) (storage.Storage, error) {
	switch name {
	case "inmem":
		return inmem.New(), nil
	case "file", "diskv":
		if dsn == "" {
			dsn = "db"
		}
		return diskv.New(dsn), nil
	}
	return nil, fmt.Errorf("unknown storage: %s", name)
}
