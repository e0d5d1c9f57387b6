package uuid

import "testing"

func TestNewGeneratesUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate UUID generated: %s", id)
		}
		seen[id] = true

		if !IsValid(id) {
			t.Errorf("generated UUID is not valid: %s", id)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("550e8400-e29b-41d4-a716-446655440000") {
		t.Error("expected canonical UUID to be valid")
	}
	if IsValid("not-a-uuid") {
		t.Error("expected garbage string to be invalid")
	}
	if IsValid("") {
		t.Error("expected empty string to be invalid")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(New()); err != nil {
		t.Errorf("Validate failed for generated UUID: %v", err)
	}
	if err := Validate("xyz"); err == nil {
		t.Error("Validate should fail for malformed input")
	}
}
