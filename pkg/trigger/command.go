package trigger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/joho/godotenv"

	"github.com/vigilo-io/vigilo/pkg/logging"
	"github.com/vigilo-io/vigilo/pkg/pending"
	"github.com/vigilo-io/vigilo/pkg/process"
	"github.com/vigilo-io/vigilo/pkg/query"
	"github.com/vigilo-io/vigilo/pkg/state"
)

const (
	// idleWakeInterval is the maximum amount of time that a command's
	// execution thread will sleep before re-checking for work. It exists as a
	// fallback so that a lost wakeup can't park the thread forever.
	idleWakeInterval = 24 * time.Hour
)

// Environment variable names injected into every spawned process.
const (
	// RootEnvironmentVariable carries the watched root path.
	RootEnvironmentVariable = "VIGILO_ROOT"
	// SocketEnvironmentVariable carries the daemon's control socket address.
	SocketEnvironmentVariable = "VIGILO_SOCK"
	// TriggerEnvironmentVariable carries the trigger's name.
	TriggerEnvironmentVariable = "VIGILO_TRIGGER"
)

// Command binds a validated trigger definition to a watched root and owns the
// execution thread that spawns the configured external command for settled
// batches containing matches.
type Command struct {
	// definition is the trigger's definition.
	definition *Definition
	// root is the watched root path.
	root string
	// workingDirectory is the spawned process working directory (the root,
	// adjusted by any relative root).
	workingDirectory string
	// socketPath is the daemon control socket address advertised to spawned
	// processes.
	socketPath string
	// query is the compiled matching expression.
	query *query.Query
	// fields is the validated field selection for StdinModeFields.
	fields query.Fields
	// stdout and stderr are the parsed output redirections, either of which
	// may be nil.
	stdout *Redirection
	stderr *Redirection
	// logger is the command's logger.
	logger *logging.Logger
	// subscription is the settled-batch subscription driving the execution
	// thread. It is set when the command is started.
	subscription *state.Subscription
	// stop signals the execution thread to exit.
	stop chan struct{}
	// done is closed when the execution thread exits.
	done chan struct{}
	// started indicates whether or not the execution thread was ever started.
	started bool
}

// NewCommand validates the specified definition against the specified root
// and creates a command from it. On failure, no partially valid command is
// returned.
func NewCommand(root, socketPath string, definition *Definition, logger *logging.Logger) (*Command, error) {
	// Validate the definition.
	if err := definition.EnsureValid(); err != nil {
		return nil, err
	}

	// Compile the expression.
	q, err := query.New(definition.Expression)
	if err != nil {
		return nil, errors.Wrap(err, "invalid expression")
	}

	// Parse the field selection.
	var fields query.Fields
	if normalizedStdin(definition.Stdin) == StdinModeFields {
		if fields, err = query.ParseFields(definition.Fields); err != nil {
			return nil, errors.Wrap(err, "invalid field selection")
		}
	}

	// Parse redirections.
	stdout, err := ParseRedirection(definition.Stdout)
	if err != nil {
		return nil, errors.Wrap(err, "invalid stdout redirection")
	}
	stderr, err := ParseRedirection(definition.Stderr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid stderr redirection")
	}

	// Compute the working directory.
	workingDirectory := root
	if definition.RelativeRoot != "" {
		workingDirectory = filepath.Join(root, filepath.FromSlash(definition.RelativeRoot))
	}

	// Success.
	return &Command{
		definition:       definition,
		root:             root,
		workingDirectory: workingDirectory,
		socketPath:       socketPath,
		query:            q,
		fields:           fields,
		stdout:           stdout,
		stderr:           stderr,
		logger:           logger,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}, nil
}

// Definition returns the command's definition.
func (c *Command) Definition() *Definition {
	return c.definition
}

// Start attaches the command to the specified settled-batch subscription and
// spawns its execution thread.
func (c *Command) Start(subscription *state.Subscription) {
	c.subscription = subscription
	c.started = true
	go c.run()
}

// Stop directs the execution thread to exit and waits for it to do so. It is
// synchronous: once Stop returns, the command can be safely discarded or
// replaced. Stopping a command that was never started is a no-op.
func (c *Command) Stop() {
	if !c.started {
		return
	}
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
	c.subscription.Unsubscribe()
	c.started = false
}

// Drop asserts that the command's execution thread is not running. A command
// discarded while its thread is still active indicates corrupted lifecycle
// management, which is not a recoverable condition.
func (c *Command) Drop() {
	if !c.started {
		return
	}
	select {
	case <-c.done:
	default:
		panic("trigger command dropped while execution thread active")
	}
}

// run is the command's execution thread.
func (c *Command) run() {
	defer close(c.done)
	idle := time.NewTimer(idleWakeInterval)
	defer idle.Stop()
	for {
		// Wait for a wake signal, a stop request, or an idle timeout.
		select {
		case <-c.stop:
			return
		case <-c.subscription.Signal():
		case <-idle.C:
		}

		// Reset the idle timer, draining it in a non-blocking fashion since
		// we don't know whether or not it fired.
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(idleWakeInterval)

		// Drain and process all currently available batches.
		for _, item := range c.subscription.Drain() {
			batch, ok := item.(*pending.Batch)
			if !ok || !batch.Settled {
				continue
			}
			c.process(batch)

			// Bail if a stop was requested mid-drain.
			select {
			case <-c.stop:
				return
			default:
			}
		}
	}
}

// process evaluates a single settled batch and spawns the configured command
// if the batch contains matches.
func (c *Command) process(batch *pending.Batch) {
	// Compute matched file results.
	var results []*query.FileResult
	for _, change := range batch.Changes {
		// Render the path relative to the working directory, skipping paths
		// outside of it.
		name, err := filepath.Rel(c.workingDirectory, change.Path)
		if err != nil || name == ".." || strings.HasPrefix(name, ".."+string(os.PathSeparator)) {
			continue
		}

		// Evaluate the expression.
		if !c.query.Matches(name) {
			continue
		}

		// Build the result, tolerating files that have since disappeared.
		result := &query.FileResult{
			Name: filepath.ToSlash(name),
			New:  change.New,
		}
		if info, err := os.Lstat(change.Path); err == nil {
			result.Exists = true
			result.Size = info.Size()
			result.Mode = info.Mode()
			result.ModificationTime = info.ModTime()
		}
		results = append(results, result)
	}

	// No matches, no spawn.
	if len(results) == 0 {
		return
	}

	// Spawn the command and wait for it to exit, recording the outcome.
	if err := c.spawn(batch, results); err != nil {
		c.logger.Error(errors.Wrapf(err, "trigger %s", c.definition.Name))
	}
}

// spawn builds and runs a single invocation for the specified results.
func (c *Command) spawn(batch *pending.Batch, results []*query.FileResult) error {
	// Build the argument list.
	arguments := make([]string, 0, len(c.definition.Command)-1+len(results))
	arguments = append(arguments, c.definition.Command[1:]...)
	if c.definition.AppendFiles {
		for _, result := range results {
			arguments = append(arguments, result.Name)
		}
	}
	child := exec.Command(c.definition.Command[0], arguments...)
	child.Dir = c.workingDirectory

	// Build the environment: the ambient environment, any configured
	// environment file, and the injected contract variables, in increasing
	// precedence.
	environment := os.Environ()
	if c.definition.EnvFile != "" {
		envFilePath := c.definition.EnvFile
		if !filepath.IsAbs(envFilePath) {
			envFilePath = filepath.Join(c.root, envFilePath)
		}
		extra, err := godotenv.Read(envFilePath)
		if err != nil {
			return errors.Wrap(err, "unable to read environment file")
		}
		for key, value := range extra {
			environment = append(environment, key+"="+value)
		}
	}
	environment = append(environment,
		RootEnvironmentVariable+"="+c.root,
		SocketEnvironmentVariable+"="+c.socketPath,
		TriggerEnvironmentVariable+"="+c.definition.Name,
	)
	child.Env = environment

	// Configure standard input. The bound applies to enumeration modes only;
	// files beyond it are silently omitted from this invocation.
	bounded := results
	if c.definition.MaxFilesStdin > 0 && len(bounded) > c.definition.MaxFilesStdin {
		bounded = bounded[:c.definition.MaxFilesStdin]
	}
	switch normalizedStdin(c.definition.Stdin) {
	case StdinModeDevNull:
	case StdinModeNames:
		var input bytes.Buffer
		for _, result := range bounded {
			input.WriteString(result.Name)
			input.WriteByte('\n')
		}
		child.Stdin = &input
	case StdinModeFields:
		records := make([]map[string]interface{}, 0, len(bounded))
		for _, result := range bounded {
			records = append(records, c.fields.Render(result))
		}
		encoded, err := json.Marshal(records)
		if err != nil {
			return errors.Wrap(err, "unable to encode field records")
		}
		child.Stdin = bytes.NewReader(encoded)
	}

	// Configure output streams, directing unredirected streams to the
	// command's logger.
	stdout, stdoutCloser, err := c.openRedirection(c.stdout)
	if err != nil {
		return errors.Wrap(err, "unable to open stdout redirection")
	}
	if stdoutCloser != nil {
		defer stdoutCloser.Close()
	}
	child.Stdout = stdout
	stderr, stderrCloser, err := c.openRedirection(c.stderr)
	if err != nil {
		return errors.Wrap(err, "unable to open stderr redirection")
	}
	if stderrCloser != nil {
		defer stderrCloser.Close()
	}
	child.Stderr = stderr

	// Run the process to completion.
	c.logger.Debugf("trigger %s: spawning for tick %d (%d matched)",
		c.definition.Name, batch.Tick, len(results),
	)
	if err := child.Start(); err != nil {
		return errors.Wrap(err, "unable to start process")
	}
	if err := child.Wait(); err != nil {
		if status, statusErr := process.ExitCodeForError(err); statusErr == nil {
			c.logger.Printf("trigger %s: command exited with status %d",
				c.definition.Name, status,
			)
			return nil
		}
		return errors.Wrap(err, "unable to wait for process")
	}

	// Success.
	return nil
}

// openRedirection opens the target of a redirection, returning the writer to
// use and an optional closer. A nil redirection yields the command's logger.
func (c *Command) openRedirection(redirection *Redirection) (io.Writer, *os.File, error) {
	if redirection == nil {
		return c.logger.Writer(), nil, nil
	}
	flags := os.O_WRONLY | os.O_CREATE
	if redirection.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	path := redirection.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.workingDirectory, path)
	}
	file, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}
