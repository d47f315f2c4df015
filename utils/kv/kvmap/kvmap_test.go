package kvmap

import (
	"testing"

	"github.com/micromdm/nanoprobe/utils/kv/test"
)

func TestKVMap(t *testing.T) {
	test.TestBucket(t, NewBucket())
}
