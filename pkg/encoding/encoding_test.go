package encoding

import (
	"os"
	"path/filepath"
	"testing"
)

type testMessageJSON struct {
	Name string `json:"name"`
	Age  uint   `json:"age"`
}

const testMessageJSONString = `{
	"name": "George",
	"age": 67
}
`

type testMessageTOML struct {
	Section struct {
		Name string `toml:"name"`
		Age  uint   `toml:"age"`
	} `toml:"section"`
}

const testMessageTOMLString = `[section]
name = "George"
age = 67
`

type testMessageYAML struct {
	Name string `yaml:"name"`
	Age  uint   `yaml:"age"`
}

const testMessageYAMLString = `name: George
age: 67
`

func TestLoadAndUnmarshalNonExistentPath(t *testing.T) {
	if err := LoadAndUnmarshal("/this/does/not/exist", func(_ []byte) error {
		return nil
	}); err == nil {
		t.Error("load did not fail for non-existent path")
	} else if !os.IsNotExist(err) {
		t.Error("load error did not preserve non-existence")
	}
}

func TestLoadAndUnmarshalJSON(t *testing.T) {
	// Write the test file.
	file := filepath.Join(t.TempDir(), "message.json")
	if err := os.WriteFile(file, []byte(testMessageJSONString), 0600); err != nil {
		t.Fatal("unable to write test file:", err)
	}

	// Attempt to load and unmarshal.
	var message testMessageJSON
	if err := LoadAndUnmarshalJSON(file, &message); err != nil {
		t.Fatal("loadAndUnmarshalJSON failed:", err)
	}

	// Verify contents.
	if message.Name != "George" {
		t.Error("test message name mismatch:", message.Name, "!=", "George")
	}
	if message.Age != 67 {
		t.Error("test message age mismatch:", message.Age, "!=", 67)
	}
}

func TestMarshalAndSaveJSONRoundTrip(t *testing.T) {
	// Compute a save path.
	file := filepath.Join(t.TempDir(), "message.json")

	// Create and save a message.
	var message testMessageJSON
	message.Name = "George"
	message.Age = 67
	if err := MarshalAndSaveJSON(file, &message); err != nil {
		t.Fatal("marshalAndSaveJSON failed:", err)
	}

	// Reload it and verify contents.
	var reloaded testMessageJSON
	if err := LoadAndUnmarshalJSON(file, &reloaded); err != nil {
		t.Fatal("loadAndUnmarshalJSON failed:", err)
	}
	if reloaded != message {
		t.Error("reloaded message does not match original")
	}
}

func TestLoadAndUnmarshalTOML(t *testing.T) {
	// Write the test file.
	file := filepath.Join(t.TempDir(), "message.toml")
	if err := os.WriteFile(file, []byte(testMessageTOMLString), 0600); err != nil {
		t.Fatal("unable to write test file:", err)
	}

	// Attempt to load and unmarshal.
	var message testMessageTOML
	if err := LoadAndUnmarshalTOML(file, &message); err != nil {
		t.Fatal("loadAndUnmarshalTOML failed:", err)
	}

	// Verify contents.
	if message.Section.Name != "George" {
		t.Error("test message name mismatch:", message.Section.Name, "!=", "George")
	}
	if message.Section.Age != 67 {
		t.Error("test message age mismatch:", message.Section.Age, "!=", 67)
	}
}

func TestLoadAndUnmarshalYAML(t *testing.T) {
	// Write the test file.
	file := filepath.Join(t.TempDir(), "message.yaml")
	if err := os.WriteFile(file, []byte(testMessageYAMLString), 0600); err != nil {
		t.Fatal("unable to write test file:", err)
	}

	// Attempt to load and unmarshal.
	var message testMessageYAML
	if err := LoadAndUnmarshalYAML(file, &message); err != nil {
		t.Fatal("loadAndUnmarshalYAML failed:", err)
	}

	// Verify contents.
	if message.Name != "George" {
		t.Error("test message name mismatch:", message.Name, "!=", "George")
	}
	if message.Age != 67 {
		t.Error("test message age mismatch:", message.Age, "!=", 67)
	}
}
