package ids

import "testing"

func TestNewIsSortableAndUnique(t *testing.T) {
	prev := New()
	seen := map[string]bool{prev: true}
	for i := 0; i < 1000; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		if id <= prev {
			t.Fatalf("ids not monotonic: %s after %s", id, prev)
		}
		if !Valid(id) {
			t.Fatalf("generated id %s is not valid", id)
		}
		seen[id] = true
		prev = id
	}
}

func TestValid(t *testing.T) {
	for _, id := range []string{"", "abc", "01ARZ3NDEKTSV4RRFFQ69G5FA", "not-a-ulid-but-26-chars!!!"} {
		if Valid(id) {
			t.Fatalf("expected %q to be invalid", id)
		}
	}
	if !Valid("01ARZ3NDEKTSV4RRFFQ69G5FAV") {
		t.Fatalf("expected canonical ulid to be valid")
	}
}
