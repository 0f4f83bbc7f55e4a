package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Errorf("expected the correct plaintext to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Errorf("expected an incorrect plaintext to fail verification")
	}
}
