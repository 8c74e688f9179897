package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("CROWNEST_TEST_TABLE", "thursday")

	got, err := Expand("~/tables/$CROWNEST_TEST_TABLE.yml")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, "tables", "thursday.yml"); got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	if got, _ := Expand(""); got != "" {
		t.Errorf("empty path should stay empty, got %s", got)
	}
}

func TestSame(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "table.yml")
	if err := os.WriteFile(file, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.yml")
	if err := os.Symlink(file, link); err != nil {
		t.Skip("symlinks unsupported")
	}

	if !Same(file, link) {
		t.Error("symlink should name the same file")
	}
	if !Same(file, filepath.Join(dir, ".", "table.yml")) {
		t.Error("unclean path should name the same file")
	}
	if Same(file, filepath.Join(dir, "other.yml")) {
		t.Error("different files reported as same")
	}
}
