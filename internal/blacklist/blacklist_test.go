package blacklist

import "testing"

func TestAddContainsRemove(t *testing.T) {
	bl := New(8)
	k := "base:image:global-mercator:9/100/200"

	if bl.Contains(k) {
		t.Fatalf("fresh list must not contain %s", k)
	}
	bl.Add(k)
	if !bl.Contains(k) {
		t.Fatalf("key %s missing after Add", k)
	}
	bl.Remove(k)
	if bl.Contains(k) {
		t.Fatalf("key %s present after Remove", k)
	}
}

func TestBounded_OldEntriesEvicted(t *testing.T) {
	bl := New(2)

	bl.Add("5/0/0")
	bl.Add("5/1/0")
	bl.Add("5/2/0")
	if bl.Contains("5/0/0") {
		t.Fatalf("oldest entry should have been evicted")
	}
	if !bl.Contains("5/1/0") || !bl.Contains("5/2/0") {
		t.Fatalf("recent entries must survive eviction")
	}
	if bl.Len() != 2 {
		t.Fatalf("len = %d, want 2", bl.Len())
	}
}

func TestClear(t *testing.T) {
	bl := New(8)
	bl.Add("3/1/1")
	bl.Clear()
	if bl.Len() != 0 {
		t.Fatalf("len = %d after Clear, want 0", bl.Len())
	}
}
