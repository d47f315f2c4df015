// Package test provides a conformance test for key-value buckets.
package test

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/micromdm/nanoprobe/utils/kv"
)

// TestBucket exercises the basic operations of b, which must start empty.
func TestBucket(t *testing.T, b kv.TraversingBucket) {
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	if !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("have: %v, want: %v", err, kv.ErrKeyNotFound)
	}

	if err = b.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err = b.Set(ctx, "k2", []byte("v2")); err != nil {
		t.Fatal(err)
	}

	v, err := b.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if have, want := v, []byte("v1"); !bytes.Equal(have, want) {
		t.Errorf("have: %q, want: %q", have, want)
	}

	found, err := b.Has(ctx, "k2")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Error("expected k2 to be found")
	}

	keys := kv.AllKeys(ctx, b)
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "k1" || keys[1] != "k2" {
		t.Errorf("unexpected keys: %v", keys)
	}

	if err = b.Delete(ctx, "k1"); err != nil {
		t.Fatal(err)
	}
	if found, _ = b.Has(ctx, "k1"); found {
		t.Error("expected k1 to be deleted")
	}
	if err = b.Delete(ctx, "k1"); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}
