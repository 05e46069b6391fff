package query

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// FileResult captures the per-file information from which field values are
// computed when rendering trigger input records.
type FileResult struct {
	// Name is the root-relative path of the file.
	Name string
	// Exists indicates whether or not the file existed when the change was
	// processed.
	Exists bool
	// New indicates whether or not the file appeared for the first time in
	// the batch being processed.
	New bool
	// Size is the file size in bytes, or 0 if the file doesn't exist.
	Size int64
	// Mode is the file mode, or 0 if the file doesn't exist.
	Mode os.FileMode
	// ModificationTime is the file modification time, or the zero value if
	// the file doesn't exist.
	ModificationTime time.Time
}

// renderer computes a single field value from a file result.
type renderer func(result *FileResult) interface{}

// fieldRenderers is the registry of available fields.
var fieldRenderers = map[string]renderer{
	"name": func(result *FileResult) interface{} {
		return result.Name
	},
	"exists": func(result *FileResult) interface{} {
		return result.Exists
	},
	"new": func(result *FileResult) interface{} {
		return result.New
	},
	"size": func(result *FileResult) interface{} {
		return result.Size
	},
	"mode": func(result *FileResult) interface{} {
		return uint32(result.Mode)
	},
	"mtime": func(result *FileResult) interface{} {
		if result.ModificationTime.IsZero() {
			return int64(0)
		}
		return result.ModificationTime.Unix()
	},
	"type": func(result *FileResult) interface{} {
		if !result.Exists {
			return "?"
		}
		switch {
		case result.Mode.IsDir():
			return "d"
		case result.Mode&os.ModeSymlink != 0:
			return "l"
		case result.Mode.IsRegular():
			return "f"
		default:
			return "?"
		}
	},
}

// DefaultFieldNames are the fields rendered when a trigger definition doesn't
// specify its own field list.
var DefaultFieldNames = []string{"name", "exists", "new", "size", "mode"}

// Fields is a validated, ordered field selection.
type Fields []string

// ParseFields validates the specified field names and returns them as a field
// selection. A nil or empty name list yields the default selection.
func ParseFields(names []string) (Fields, error) {
	// Fall back to defaults if no names were provided.
	if len(names) == 0 {
		return Fields(DefaultFieldNames), nil
	}

	// Validate each name.
	for _, name := range names {
		if _, ok := fieldRenderers[name]; !ok {
			return nil, errors.Errorf("unknown field: %s", name)
		}
	}

	// Success.
	return Fields(names), nil
}

// Render computes the record for a single file result.
func (f Fields) Render(result *FileResult) map[string]interface{} {
	record := make(map[string]interface{}, len(f))
	for _, name := range f {
		record[name] = fieldRenderers[name](result)
	}
	return record
}
