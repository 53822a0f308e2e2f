package xid

import (
	"strings"
	"testing"
)

func TestNewCarriesPrefix(t *testing.T) {
	id := New("sale")
	if !strings.HasPrefix(id, "sale-") {
		t.Fatalf("id %q missing prefix", id)
	}
	if parts := strings.Split(id, "-"); len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		t.Fatalf("id %q not in prefix-time-suffix form", id)
	}
}

func TestNewDoesNotCollide(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := New("x")
		if seen[id] {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = true
	}
}
