package node

import "testing"

func TestLoadIdentityGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	password := []byte("hunter2")

	first, err := LoadIdentity(dir, password)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := LoadIdentity(dir, password)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if string(first.Public) != string(second.Public) {
		t.Fatalf("expected the same identity to be reloaded from disk")
	}
}

func TestLoadIdentityRejectsWrongPassword(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadIdentity(dir, []byte("correct")); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	if _, err := LoadIdentity(dir, []byte("wrong")); err == nil {
		t.Fatal("expected an error unlocking with the wrong password")
	}
}
