package watch

import (
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/daemon"
	"github.com/vigilo-io/vigilo/pkg/logging"
	"github.com/vigilo-io/vigilo/pkg/trigger"
	"github.com/vigilo-io/vigilo/pkg/vigilo"
)

// Control operation names.
const (
	OperationVersion     = "version"
	OperationStop        = "stop"
	OperationWatch       = "watch"
	OperationWatchDel    = "watch-del"
	OperationWatchList   = "watch-list"
	OperationTrigger     = "trigger"
	OperationTriggerDel  = "trigger-del"
	OperationTriggerList = "trigger-list"
	OperationMonitor     = "monitor"
)

// Request is a single control request.
type Request struct {
	// Operation is the operation name.
	Operation string `json:"operation"`
	// Root is the target root path, where applicable.
	Root string `json:"root,omitempty"`
	// Name is the target trigger name, where applicable.
	Name string `json:"name,omitempty"`
	// Definition is the trigger definition for trigger operations.
	Definition *trigger.Definition `json:"definition,omitempty"`
	// Previous is the last observed state index for monitor operations.
	Previous uint64 `json:"previous,omitempty"`
}

// Response is a single control response.
type Response struct {
	// Error is the failure description, empty on success.
	Error string `json:"error,omitempty"`
	// Version is the daemon version for version operations.
	Version string `json:"version,omitempty"`
	// Trigger is the affected trigger name for trigger operations.
	Trigger string `json:"trigger,omitempty"`
	// Disposition is the trigger operation outcome.
	Disposition string `json:"disposition,omitempty"`
	// Deleted indicates whether or not a deletion operation removed anything.
	Deleted bool `json:"deleted,omitempty"`
	// Triggers are the listed trigger definitions.
	Triggers []*trigger.Definition `json:"triggers,omitempty"`
	// Watches are the listed watch states.
	Watches []WatchState `json:"watches,omitempty"`
	// Index is the state index for monitor operations.
	Index uint64 `json:"index,omitempty"`
}

// Server serves control requests against a watch service over an IPC
// listener, one request per connection.
type Server struct {
	// service is the underlying watch service.
	service *Service
	// listener is the IPC listener.
	listener net.Listener
	// logger is the server's logger.
	logger *logging.Logger
	// stopRequests is strobed when a client requests daemon shutdown.
	stopRequests chan struct{}
}

// NewServer creates a control server around the specified service and
// listener. The server takes ownership of the listener.
func NewServer(service *Service, listener net.Listener, logger *logging.Logger) *Server {
	return &Server{
		service:      service,
		listener:     listener,
		logger:       logger,
		stopRequests: make(chan struct{}, 1),
	}
}

// StopRequests returns a channel strobed when a client requests daemon
// shutdown.
func (s *Server) StopRequests() <-chan struct{} {
	return s.stopRequests
}

// Close closes the server's listener, unblocking Serve.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Serve accepts and dispatches control connections until the listener is
// closed.
func (s *Server) Serve() error {
	for {
		connection, err := s.listener.Accept()
		if err != nil {
			return errors.Wrap(err, "unable to accept connection")
		}
		go s.serveConnection(connection)
	}
}

// serveConnection handles a single control connection.
func (s *Server) serveConnection(connection net.Conn) {
	defer connection.Close()

	// Decode the request, bounding its size.
	request := &Request{}
	decoder := json.NewDecoder(io.LimitReader(connection, daemon.MaximumIPCMessageSize))
	if err := decoder.Decode(request); err != nil {
		s.logger.Warn(errors.Wrap(err, "unable to decode request"))
		return
	}

	// Create a context cancelled when the client disconnects, so that
	// long-polling operations don't outlive their callers.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		io.Copy(io.Discard, connection)
		cancel()
	}()
	defer cancel()

	// Dispatch and respond.
	response := s.dispatch(ctx, request)
	if err := json.NewEncoder(connection).Encode(response); err != nil {
		s.logger.Warn(errors.Wrap(err, "unable to encode response"))
	}
}

// dispatch routes a single request to the service.
func (s *Server) dispatch(ctx context.Context, request *Request) *Response {
	switch request.Operation {
	case OperationVersion:
		return &Response{Version: vigilo.Version}
	case OperationStop:
		select {
		case s.stopRequests <- struct{}{}:
		default:
		}
		return &Response{}
	case OperationWatch:
		if err := s.service.Watch(request.Root); err != nil {
			return &Response{Error: err.Error()}
		}
		return &Response{}
	case OperationWatchDel:
		deleted, err := s.service.WatchDel(request.Root)
		if err != nil {
			return &Response{Error: err.Error()}
		}
		return &Response{Deleted: deleted}
	case OperationWatchList:
		return &Response{Watches: s.service.WatchList()}
	case OperationTrigger:
		if request.Definition == nil {
			return &Response{Error: "missing trigger definition"}
		}
		disposition, err := s.service.Trigger(request.Root, request.Definition)
		if err != nil {
			return &Response{Error: err.Error()}
		}
		return &Response{Trigger: request.Definition.Name, Disposition: disposition}
	case OperationTriggerDel:
		deleted, err := s.service.TriggerDel(request.Root, request.Name)
		if err != nil {
			return &Response{Error: err.Error()}
		}
		return &Response{Trigger: request.Name, Deleted: deleted}
	case OperationTriggerList:
		triggers, err := s.service.TriggerList(request.Root)
		if err != nil {
			return &Response{Error: err.Error()}
		}
		return &Response{Triggers: triggers}
	case OperationMonitor:
		index, watches, err := s.service.Monitor(ctx, request.Previous)
		if err != nil {
			return &Response{Error: err.Error()}
		}
		return &Response{Index: index, Watches: watches}
	default:
		return &Response{Error: "unknown operation: " + request.Operation}
	}
}
