package expand

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expansions.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
# BBS shortcuts
scapl1=sca pl 1
tp=teleport
inv = inventory

# trailing comment
empty=
`)

	e := New(nil)
	n, err := e.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 4 {
		t.Errorf("loaded %d entries, want 4", n)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"scapl1", "sca pl 1"},
		{"tp", "teleport"},
		{"inv", "inventory"}, // whitespace around '=' trimmed
		{"empty", ""},        // empty values allowed
		{"unknown", "unknown"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := e.Expand(tt.in); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadFileSkipsMalformedLines(t *testing.T) {
	path := writeFile(t, `
no separator here
=emptykey
ok=fine
`)

	e := New(nil)
	n, err := e.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n != 1 {
		t.Errorf("loaded %d entries, want 1", n)
	}
	if !e.Has("ok") {
		t.Error("valid entry was not loaded")
	}
}

func TestLoadFileMissing(t *testing.T) {
	e := New(nil)
	if _, err := e.LoadFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("LoadFile on missing file returned nil error")
	}
}

func TestExpandIsExactMatch(t *testing.T) {
	path := writeFile(t, "tp=teleport\n")
	e := New(nil)
	if _, err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	// Substrings and case variants do not match.
	for _, in := range []string{"tp ", " tp", "TP", "tpx"} {
		if got := e.Expand(in); got != in {
			t.Errorf("Expand(%q) = %q, want identity", in, got)
		}
	}
}

func TestReloadReplacesEntries(t *testing.T) {
	path := writeFile(t, "a=1\nb=2\n")
	e := New(nil)
	if _, err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if e.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", e.Len())
	}

	if err := os.WriteFile(path, []byte("c=3\n"), 0o644); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}
	if err := e.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if e.Len() != 1 {
		t.Errorf("Len() after reload = %d, want 1", e.Len())
	}
	if e.Has("a") {
		t.Error("stale entry survived reload")
	}
	if got := e.Expand("c"); got != "3" {
		t.Errorf("Expand(\"c\") = %q, want \"3\"", got)
	}
}

func TestReloadFailureKeepsPreviousEntries(t *testing.T) {
	path := writeFile(t, "a=1\n")
	e := New(nil)
	if _, err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	os.Remove(path)
	if err := e.Reload(); err == nil {
		t.Error("Reload after file removal returned nil error")
	}
	if got := e.Expand("a"); got != "1" {
		t.Errorf("previous entries lost on failed reload: Expand(\"a\") = %q", got)
	}
}

func TestReloadWithoutLoadIsNoOp(t *testing.T) {
	e := New(nil)
	if err := e.Reload(); err != nil {
		t.Errorf("Reload on fresh expander: %v", err)
	}
}

func TestClear(t *testing.T) {
	path := writeFile(t, "a=1\n")
	e := New(nil)
	if _, err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	e.Clear()
	if e.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", e.Len())
	}
}
