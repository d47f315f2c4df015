// Package kv defines an interface for key-value store.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get for keys not in the bucket.
var ErrKeyNotFound = errors.New("key not found")

// Bucket defines basic CRUD operations for key-value pairs in a single "namespace."
type Bucket interface {
	Get(ctx context.Context, k string) (v []byte, err error)
	Set(ctx context.Context, k string, v []byte) error
	Has(ctx context.Context, k string) (found bool, err error)
	Delete(ctx context.Context, k string) error
}

// TraversingBucket allows us to get a list of the keys in the bucket as well.
type TraversingBucket interface {
	Bucket
	// Keys returns the unordered keys in the bucket
	Keys(cancel <-chan struct{}) <-chan string
}

// AllKeys drains the keys of b into a slice.
func AllKeys(ctx context.Context, b TraversingBucket) []string {
	var ret []string
	for k := range b.Keys(ctx.Done()) {
		ret = append(ret, k)
	}
	return ret
}
