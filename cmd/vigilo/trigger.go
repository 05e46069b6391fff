package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"

	"github.com/vigilo-io/vigilo/pkg/encoding"
	"github.com/vigilo-io/vigilo/pkg/trigger"
	"github.com/vigilo-io/vigilo/pkg/watch"
)

// triggerMain is the entry point for the trigger command.
func triggerMain(_ *cobra.Command, arguments []string) error {
	// Build the trigger definition, either from a definition file or from the
	// argument list and flags.
	var root string
	var definition *trigger.Definition
	if triggerConfiguration.file != "" {
		if len(arguments) != 1 {
			return errors.New("exactly one root path must be specified with --file")
		}
		root = arguments[0]
		definition = &trigger.Definition{}
		if err := encoding.LoadAndUnmarshalYAML(triggerConfiguration.file, definition); err != nil {
			return errors.Wrap(err, "unable to load trigger definition")
		}
	} else {
		if len(arguments) < 4 {
			return errors.New("a root, name, expression, and command must be specified")
		}
		root = arguments[0]
		definition = &trigger.Definition{
			Name:          arguments[1],
			Expression:    arguments[2],
			Command:       arguments[3:],
			AppendFiles:   triggerConfiguration.appendFiles,
			Stdin:         triggerConfiguration.stdin,
			Fields:        triggerConfiguration.fields,
			MaxFilesStdin: triggerConfiguration.maxFilesStdin,
			Stdout:        triggerConfiguration.stdout,
			Stderr:        triggerConfiguration.stderr,
			RelativeRoot:  triggerConfiguration.relativeRoot,
			EnvFile:       triggerConfiguration.envFile,
		}
	}

	// Submit the definition.
	response, err := watch.Invoke(context.Background(), &watch.Request{
		Operation:  watch.OperationTrigger,
		Root:       root,
		Definition: definition,
	})
	if err != nil {
		return err
	}

	// Print the outcome.
	fmt.Printf("%s: %s\n", response.Trigger, response.Disposition)

	// Success.
	return nil
}

// triggerCommand is the trigger command.
var triggerCommand = &cobra.Command{
	Use:          "trigger <root> <name> <expression> <command> [<argument>...]",
	Short:        "Define a trigger on a watched root",
	RunE:         triggerMain,
	SilenceUsage: true,
}

// triggerConfiguration stores configuration for the trigger command.
var triggerConfiguration struct {
	// help indicates whether or not to show help information and exit.
	help bool
	// file is an optional path to a YAML trigger definition.
	file string
	// appendFiles indicates that matched file names should be appended to the
	// command's argument list.
	appendFiles bool
	// stdin is the standard input mode for the spawned command.
	stdin string
	// fields are the fields rendered in stdin field records.
	fields []string
	// maxFilesStdin bounds the number of files enumerated on standard input.
	maxFilesStdin int
	// stdout is the standard output redirection specification.
	stdout string
	// stderr is the standard error redirection specification.
	stderr string
	// relativeRoot is the root-relative directory confining the trigger.
	relativeRoot string
	// envFile is a path to a file of KEY=VALUE lines for the spawned command.
	envFile string
}

func init() {
	// Grab a handle for the command line flags.
	flags := triggerCommand.Flags()

	// Disable alphabetical sorting of flags in help output.
	flags.SortFlags = false

	// Manually add a help flag to override the default message. Cobra will
	// still implement its logic automatically.
	flags.BoolVarP(&triggerConfiguration.help, "help", "h", false, "Show help information")

	// Wire up trigger definition flags.
	flags.StringVarP(&triggerConfiguration.file, "file", "f", "", "Load the trigger definition from a YAML file")
	flags.BoolVar(&triggerConfiguration.appendFiles, "append-files", false, "Append matched file names to the command's arguments")
	flags.StringVar(&triggerConfiguration.stdin, "stdin", "", "Standard input mode (devnull|names|fields)")
	flags.StringSliceVar(&triggerConfiguration.fields, "field", nil, "Field to render in stdin records (repeatable)")
	flags.IntVar(&triggerConfiguration.maxFilesStdin, "max-files-stdin", 0, "Bound the number of files enumerated on standard input")
	flags.StringVar(&triggerConfiguration.stdout, "stdout", "", "Standard output redirection (>path or >>path)")
	flags.StringVar(&triggerConfiguration.stderr, "stderr", "", "Standard error redirection (>path or >>path)")
	flags.StringVar(&triggerConfiguration.relativeRoot, "chdir", "", "Root-relative directory confining the trigger")
	flags.StringVar(&triggerConfiguration.envFile, "env-file", "", "File of KEY=VALUE lines merged into the command's environment")
}
