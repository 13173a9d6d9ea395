package handle

import (
	"errors"
	"testing"
)

func TestInsertGetRemove(t *testing.T) {
	tab := NewTable[string](0)

	h, err := tab.Insert("a")
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got, err := tab.Get(h); err != nil || got != "a" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if tab.Len() != 1 {
		t.Fatalf("Len = %d", tab.Len())
	}

	if _, err := tab.Remove(h); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := tab.Get(h); !errors.Is(err, ErrInvalid) {
		t.Fatalf("Get after remove: %v", err)
	}
	if _, err := tab.Remove(h); !errors.Is(err, ErrInvalid) {
		t.Fatalf("double remove: %v", err)
	}
}

func TestStaleHandleDoesNotResolveReusedSlot(t *testing.T) {
	tab := NewTable[int](0)

	old, _ := tab.Insert(1)
	if _, err := tab.Remove(old); err != nil {
		t.Fatal(err)
	}
	fresh, _ := tab.Insert(2)

	if fresh.Index != old.Index {
		t.Fatalf("expected slot reuse, got %v and %v", old, fresh)
	}
	if fresh.Version == old.Version {
		t.Fatalf("version not bumped: %v", fresh)
	}
	if tab.Valid(old) {
		t.Fatal("stale handle still valid")
	}
	if got, _ := tab.Get(fresh); got != 2 {
		t.Fatalf("Get(fresh) = %d", got)
	}
}

func TestZeroHandleInvalid(t *testing.T) {
	tab := NewTable[int](0)
	_, _ = tab.Insert(1)
	if tab.Valid(Handle{}) {
		t.Fatal("zero handle valid")
	}
	if !(Handle{}).IsZero() {
		t.Fatal("IsZero false for zero handle")
	}
}

func TestCapacityExhausted(t *testing.T) {
	tab := NewTable[int](2)
	for i := 0; i < 2; i++ {
		if _, err := tab.Insert(i); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if _, err := tab.Insert(3); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestEachAndClear(t *testing.T) {
	tab := NewTable[int](0)
	a, _ := tab.Insert(10)
	b, _ := tab.Insert(20)
	c, _ := tab.Insert(30)
	_, _ = tab.Remove(b)

	var seen []int
	tab.Each(func(_ Handle, v int) bool {
		seen = append(seen, v)
		return true
	})
	if len(seen) != 2 || seen[0] != 10 || seen[1] != 30 {
		t.Fatalf("Each saw %v", seen)
	}

	tab.Clear()
	if tab.Len() != 0 || tab.Valid(a) || tab.Valid(c) {
		t.Fatal("Clear left live entries")
	}
	if _, err := tab.Insert(1); err != nil {
		t.Fatalf("Insert after Clear: %v", err)
	}
}

func TestPtrMutation(t *testing.T) {
	tab := NewTable[int](0)
	h, _ := tab.Insert(1)
	p, err := tab.Ptr(h)
	if err != nil {
		t.Fatal(err)
	}
	*p = 5
	if got, _ := tab.Get(h); got != 5 {
		t.Fatalf("Get = %d", got)
	}
}
