package util

import "testing"

func TestHashKey(t *testing.T) {
	id := "requester@example.com"
	got := HashKey(id)
	if got != HashKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestHashEmailIgnoresCaseAndSpace(t *testing.T) {
	if HashEmail(" Jane@Example.com ") != HashEmail("jane@example.com") {
		t.Fatalf("expected normalized emails to hash equally")
	}
	if len(HashEmail("jane@example.com")) != 16 {
		t.Fatalf("expected truncated digest")
	}
}
