// Package test provides a conformance test for inventory storage backends.
package test

import (
	"context"
	"errors"
	"testing"

	"github.com/micromdm/nanoprobe/inventory/storage"
)

func TestStorage(t *testing.T, newStorage func() storage.Storage) {
	s := newStorage()
	ctx := context.Background()

	id := "AA11BB22"

	updValues := storage.Values{"a": "hi", "b": "keep"}

	err := s.StoreInventoryValues(ctx, id, updValues)
	if err != nil {
		t.Error(err)
	}

	// merge
	err = s.StoreInventoryValues(ctx, id, storage.Values{"a": "hello"})
	if err != nil {
		t.Error(err)
	}

	q := &storage.SearchOptions{IDs: []string{id, "missing"}}
	idVals, err := s.RetrieveInventory(ctx, q)
	if err != nil {
		t.Error(err)
	}

	vals, ok := idVals[id]
	if !ok {
		t.Fatal("expected id in id values map")
	}
	if _, ok = idVals["missing"]; ok {
		t.Error("expected missing id to be absent")
	}

	for k, want := range map[string]string{"a": "hello", "b": "keep"} {
		testVal, ok := vals[k]
		if !ok {
			t.Errorf("expected map key %s exists", k)
			continue
		}
		testValString, ok := testVal.(string)
		if !ok {
			t.Errorf("test value incorrect for %s", k)
		}
		if have := testValString; have != want {
			t.Errorf("want: %v, have: %v", want, have)
		}
	}

	ids, err := s.ListIDs(ctx)
	if err != nil {
		t.Error(err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("unexpected IDs: %v", ids)
	}

	if _, err = s.RetrieveInventory(ctx, nil); !errors.Is(err, storage.ErrNoIDs) {
		t.Errorf("have: %v, want: %v", err, storage.ErrNoIDs)
	}
	if err = s.StoreInventoryValues(ctx, "", updValues); !errors.Is(err, storage.ErrNoIDs) {
		t.Errorf("have: %v, want: %v", err, storage.ErrNoIDs)
	}

	err = s.DeleteInventory(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	idVals, err = s.RetrieveInventory(ctx, q)
	if err != nil {
		t.Error(err)
	}

	_, ok = idVals[id]
	if ok {
		t.Error("expected id to be missing in id values map")
	}
}
