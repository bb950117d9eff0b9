package attribution

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizePhrase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Q. Public autograph!", "john q public autograph"},
		{"  spaced   out  ", "spaced out"},
		{"ALL-CAPS/NAME", "all caps name"},
		{"José Feliciano, signed!", "josé feliciano signed"},
		{"already normal", "already normal"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhrase(tt.in); got != tt.want {
			t.Errorf("NormalizePhrase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCacheFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	logger := discardLogger()

	c := LoadCache(path, logger)
	c.Put("john public autograph", "John Public")
	c.Put("mystery item", UnknownSigner)
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded := LoadCache(path, logger)
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded entries = %d, want 2", reloaded.Len())
	}
	if got, _ := reloaded.Get("john public autograph"); got != "John Public" {
		t.Errorf("entry = %q, want John Public", got)
	}
	if got, _ := reloaded.Get("mystery item"); got != UnknownSigner {
		t.Errorf("sentinel entry = %q, want %q", got, UnknownSigner)
	}
}

func TestCacheFlushNoopWhenClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := LoadCache(path, discardLogger())

	if err := c.Flush(); err != nil {
		t.Fatalf("Flush on clean cache: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("clean flush should not create the cache file")
	}
}

func TestLoadCacheCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := LoadCache(path, discardLogger())
	if c.Len() != 0 {
		t.Errorf("entries = %d, want 0 for corrupt file", c.Len())
	}
}
