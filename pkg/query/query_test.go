package query

import (
	"testing"
)

func TestNewEmptyExpressionInvalid(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("empty expression considered valid")
	}
}

func TestNewMalformedExpressionInvalid(t *testing.T) {
	if _, err := New("[a-"); err == nil {
		t.Error("malformed expression considered valid")
	}
}

func TestMatchesTopLevel(t *testing.T) {
	query, err := New("*.txt")
	if err != nil {
		t.Fatal("unable to create query:", err)
	}
	if !query.Matches("notes.txt") {
		t.Error("top-level match failed")
	}
	if query.Matches("notes.log") {
		t.Error("non-matching extension matched")
	}
	if query.Matches("sub/notes.txt") {
		t.Error("single-star pattern matched across separator")
	}
}

func TestMatchesRecursive(t *testing.T) {
	query, err := New("**/*.txt")
	if err != nil {
		t.Fatal("unable to create query:", err)
	}
	if !query.Matches("a/b/notes.txt") {
		t.Error("recursive match failed")
	}
	if !query.Matches("notes.txt") {
		t.Error("doublestar did not match zero directories")
	}
}

func TestParseFieldsDefaults(t *testing.T) {
	fields, err := ParseFields(nil)
	if err != nil {
		t.Fatal("unable to parse default fields:", err)
	}
	if len(fields) != len(DefaultFieldNames) {
		t.Error("default field selection has unexpected length")
	}
}

func TestParseFieldsUnknown(t *testing.T) {
	if _, err := ParseFields([]string{"name", "bogus"}); err == nil {
		t.Error("unknown field considered valid")
	}
}

func TestRender(t *testing.T) {
	fields, err := ParseFields([]string{"name", "exists", "new", "type"})
	if err != nil {
		t.Fatal("unable to parse fields:", err)
	}
	record := fields.Render(&FileResult{
		Name:   "src/main.go",
		Exists: true,
		New:    true,
		Mode:   0644,
	})
	if record["name"] != "src/main.go" {
		t.Error("name field mismatch")
	}
	if record["exists"] != true || record["new"] != true {
		t.Error("boolean field mismatch")
	}
	if record["type"] != "f" {
		t.Error("type field mismatch")
	}
}

func TestRenderNonExistent(t *testing.T) {
	fields, err := ParseFields([]string{"type", "mtime", "size"})
	if err != nil {
		t.Fatal("unable to parse fields:", err)
	}
	record := fields.Render(&FileResult{Name: "gone.txt"})
	if record["type"] != "?" {
		t.Error("type field mismatch for non-existent file")
	}
	if record["mtime"] != int64(0) {
		t.Error("mtime field mismatch for non-existent file")
	}
	if record["size"] != int64(0) {
		t.Error("size field mismatch for non-existent file")
	}
}
