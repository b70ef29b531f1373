package models

import "testing"

func TestLevelOrdering(t *testing.T) {
	if !LevelAdmin.Above(LevelWrite) || !LevelWrite.Above(LevelRead) {
		t.Fatal("expected admin > write > read")
	}
	if LevelRead.AtLeast(LevelWrite) {
		t.Fatal("read must not satisfy write")
	}
	if !LevelWrite.AtLeast(LevelWrite) {
		t.Fatal("a level must satisfy itself")
	}
	// Unknown levels rank below everything.
	if MemberLevel("owner").AtLeast(LevelRead) {
		t.Fatal("unknown level must rank below read")
	}
}

func TestIsValidLevel(t *testing.T) {
	for _, valid := range []string{"read", "write", "admin"} {
		if !IsValidLevel(valid) {
			t.Errorf("IsValidLevel(%q) = false, want true", valid)
		}
	}
	for _, invalid := range []string{"", "Admin", "owner", "READ"} {
		if IsValidLevel(invalid) {
			t.Errorf("IsValidLevel(%q) = true, want false", invalid)
		}
	}
}
