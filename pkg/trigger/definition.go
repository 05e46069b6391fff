package trigger

import (
	"runtime"
	"strings"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/query"
)

const (
	// StdinModeDevNull directs a spawned command's standard input to the null
	// device. It is the default mode.
	StdinModeDevNull = "devnull"
	// StdinModeNames feeds a spawned command one matched file name per line
	// on standard input.
	StdinModeNames = "names"
	// StdinModeFields feeds a spawned command a JSON array of per-file field
	// records on standard input.
	StdinModeFields = "fields"
)

// Definition is the immutable description of a trigger. It binds a
// file-matching expression to an external command and describes how matched
// file information is conveyed to the command when it is spawned.
type Definition struct {
	// Name is the trigger's name, unique within its root.
	Name string `json:"name" yaml:"name"`
	// Expression is the glob expression matched against root-relative paths.
	Expression string `json:"expression" yaml:"expression"`
	// Command is the command and arguments to spawn.
	Command []string `json:"command" yaml:"command"`
	// AppendFiles indicates that matched file names should be appended to the
	// command's argument list.
	AppendFiles bool `json:"append_files,omitempty" yaml:"append_files,omitempty"`
	// Stdin is the standard input mode, one of StdinModeDevNull,
	// StdinModeNames, or StdinModeFields. An empty value means devnull.
	Stdin string `json:"stdin,omitempty" yaml:"stdin,omitempty"`
	// Fields are the fields rendered in StdinModeFields records. An empty
	// list selects the default fields.
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	// MaxFilesStdin bounds the number of files enumerated on standard input.
	// Files beyond the bound are silently omitted from an invocation. A zero
	// value means unbounded.
	MaxFilesStdin int `json:"max_files_stdin,omitempty" yaml:"max_files_stdin,omitempty"`
	// Stdout is an optional redirection specification for standard output, of
	// the form ">path" (truncate) or ">>path" (append).
	Stdout string `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	// Stderr is an optional redirection specification for standard error,
	// with the same syntax as Stdout.
	Stderr string `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	// RelativeRoot is an optional root-relative directory to which matching
	// and spawning are confined. The spawned command's working directory is
	// set to this directory and matched names are rendered relative to it.
	RelativeRoot string `json:"relative_root,omitempty" yaml:"relative_root,omitempty"`
	// EnvFile is an optional path to a file of KEY=VALUE lines merged into
	// the spawned command's environment.
	EnvFile string `json:"env_file,omitempty" yaml:"env_file,omitempty"`
}

// Redirection describes a parsed output redirection.
type Redirection struct {
	// Path is the target file path.
	Path string
	// Append indicates append mode (as opposed to truncation).
	Append bool
}

// ParseRedirection parses a redirection specification of the form ">path"
// (truncate) or ">>path" (append). An empty specification yields a nil
// redirection. Append mode is unsupported on Windows and is reported as an
// error there rather than being silently downgraded.
func ParseRedirection(specification string) (*Redirection, error) {
	if specification == "" {
		return nil, nil
	}
	var path string
	var appendMode bool
	if strings.HasPrefix(specification, ">>") {
		path = specification[2:]
		appendMode = true
		if runtime.GOOS == "windows" {
			return nil, errors.New("append mode redirection not supported on this platform")
		}
	} else if strings.HasPrefix(specification, ">") {
		path = specification[1:]
	} else {
		return nil, errors.Errorf("redirection must begin with > or >>: %s", specification)
	}
	if path == "" {
		return nil, errors.New("redirection missing target path")
	}
	return &Redirection{Path: path, Append: appendMode}, nil
}

// EnsureValid verifies that a definition is complete and internally
// consistent. Callers must not use a definition for which EnsureValid fails.
func (d *Definition) EnsureValid() error {
	// Verify the name.
	if d.Name == "" {
		return errors.New("empty trigger name")
	}

	// Verify that the expression compiles.
	if _, err := query.New(d.Expression); err != nil {
		return errors.Wrap(err, "invalid expression")
	}

	// Verify the command.
	if len(d.Command) == 0 {
		return errors.New("empty command")
	}

	// Verify the standard input mode and field selection.
	switch d.Stdin {
	case "", StdinModeDevNull, StdinModeNames:
		if len(d.Fields) > 0 {
			return errors.New("field selection requires fields stdin mode")
		}
	case StdinModeFields:
		if _, err := query.ParseFields(d.Fields); err != nil {
			return errors.Wrap(err, "invalid field selection")
		}
	default:
		return errors.Errorf("unknown stdin mode: %s", d.Stdin)
	}

	// Verify the standard input bound.
	if d.MaxFilesStdin < 0 {
		return errors.New("negative stdin file bound")
	}

	// Verify redirections.
	if _, err := ParseRedirection(d.Stdout); err != nil {
		return errors.Wrap(err, "invalid stdout redirection")
	}
	if _, err := ParseRedirection(d.Stderr); err != nil {
		return errors.Wrap(err, "invalid stderr redirection")
	}

	// Verify that the relative root doesn't escape the root.
	if strings.HasPrefix(d.RelativeRoot, "..") || strings.HasPrefix(d.RelativeRoot, "/") {
		return errors.New("relative root escapes root")
	}

	// Success.
	return nil
}

// stringSlicesEqual performs element-wise string slice comparison.
func stringSlicesEqual(first, second []string) bool {
	if len(first) != len(second) {
		return false
	}
	for i := range first {
		if first[i] != second[i] {
			return false
		}
	}
	return true
}

// normalizedStdin resolves the default standard input mode.
func normalizedStdin(mode string) string {
	if mode == "" {
		return StdinModeDevNull
	}
	return mode
}

// SemanticallyEqual returns whether or not two definitions agree on every
// field that affects trigger behavior. Formatting-only differences (such as
// an elided default stdin mode) don't count as differences.
func (d *Definition) SemanticallyEqual(other *Definition) bool {
	return d.Name == other.Name &&
		d.Expression == other.Expression &&
		stringSlicesEqual(d.Command, other.Command) &&
		d.AppendFiles == other.AppendFiles &&
		normalizedStdin(d.Stdin) == normalizedStdin(other.Stdin) &&
		stringSlicesEqual(d.Fields, other.Fields) &&
		d.MaxFilesStdin == other.MaxFilesStdin &&
		d.Stdout == other.Stdout &&
		d.Stderr == other.Stderr &&
		d.RelativeRoot == other.RelativeRoot &&
		d.EnvFile == other.EnvFile
}
