package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddEmptyPathInvalid(t *testing.T) {
	if NewSet().Add("", false) == nil {
		t.Error("empty ignore path considered valid")
	}
}

func TestAddTrailingSeparatorInvalid(t *testing.T) {
	path := filepath.Join("/root", "ignored") + string(os.PathSeparator)
	if NewSet().Add(path, false) == nil {
		t.Error("ignore path with trailing separator considered valid")
	}
}

func TestIsIgnoredDirectoryItself(t *testing.T) {
	set := NewSet()
	if err := set.Add(filepath.Join("/root", ".git"), true); err != nil {
		t.Fatal("unable to add ignore path:", err)
	}
	if !set.IsIgnored(filepath.Join("/root", ".git")) {
		t.Error("ignore directory itself not ignored")
	}
	if !set.IsIgnoreDirectory(filepath.Join("/root", ".git")) {
		t.Error("ignore directory not identified as such")
	}
}

func TestIsIgnoredDescendant(t *testing.T) {
	set := NewSet()
	if err := set.Add(filepath.Join("/root", ".git"), true); err != nil {
		t.Fatal("unable to add ignore path:", err)
	}
	if !set.IsIgnored(filepath.Join("/root", ".git", "objects", "pack")) {
		t.Error("descendant of ignore directory not ignored")
	}
	if set.IsIgnoreDirectory(filepath.Join("/root", ".git", "objects")) {
		t.Error("descendant misidentified as ignore directory")
	}
}

func TestIsIgnoredRequiresSeparatorAlignment(t *testing.T) {
	set := NewSet()
	if err := set.Add(filepath.Join("/root", ".git"), true); err != nil {
		t.Fatal("unable to add ignore path:", err)
	}
	if set.IsIgnored(filepath.Join("/root", ".gitx")) {
		t.Error("sibling with shared string prefix incorrectly ignored")
	}
}

func TestIsIgnoredUnrelated(t *testing.T) {
	set := NewSet()
	if err := set.Add(filepath.Join("/root", "node_modules"), false); err != nil {
		t.Fatal("unable to add ignore path:", err)
	}
	if set.IsIgnored(filepath.Join("/root", "src", "main.go")) {
		t.Error("unrelated path incorrectly ignored")
	}
}

func TestDuplicateAddUpgradesVCSFlag(t *testing.T) {
	set := NewSet()
	path := filepath.Join("/root", ".hg")
	if err := set.Add(path, false); err != nil {
		t.Fatal("unable to add ignore path:", err)
	}
	if err := set.Add(path, true); err != nil {
		t.Fatal("unable to re-add ignore path:", err)
	}
	if paths := set.VCSPaths(); len(paths) != 1 || paths[0] != path {
		t.Error("VCS paths do not reflect upgraded entry")
	}
	if len(set.Paths()) != 1 {
		t.Error("duplicate registration created an additional entry")
	}
}
