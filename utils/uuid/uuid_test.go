package uuid

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestUUID(t *testing.T) {
	u := NewUUID()
	a, b := u.ID(), u.ID()
	if a == b {
		t.Error("UUIDs are not unique")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatal(err)
	}
	if have, want := parsed.Version(), uuid.Version(4); have != want {
		t.Errorf("have: %v, want: %v", have, want)
	}
}

func TestStaticIDs(t *testing.T) {
	u := NewStaticIDs("A", "B")
	for _, expected := range []string{"A", "B", "A", "B", "A"} {
		if have, want := u.ID(), expected; have != want {
			t.Errorf("unexpected ID: have: %v, want: %v", have, want)
		}
	}
}

func TestStaticIDsEmpty(t *testing.T) {
	if have := NewStaticIDs().ID(); have != "" {
		t.Errorf("have: %q, want empty", have)
	}
}

func TestStaticIDsConcurrent(t *testing.T) {
	u := NewStaticIDs("A", "B")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.ID()
		}()
	}
	wg.Wait()
	// ten calls leave the cycle back at the start
	if have, want := u.ID(), "A"; have != want {
		t.Errorf("have: %v, want: %v", have, want)
	}
}
