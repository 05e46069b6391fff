package watch

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/vigilo-io/vigilo/pkg/daemon"
	"github.com/vigilo-io/vigilo/pkg/ipc"
)

// Invoke performs a single control request against the daemon, dialing its
// IPC endpoint and waiting for the response. The provided context bounds the
// complete exchange.
func Invoke(ctx context.Context, request *Request) (*Response, error) {
	// Compute the IPC endpoint path.
	endpoint, err := daemon.IPCEndpointPath()
	if err != nil {
		return nil, errors.Wrap(err, "unable to compute endpoint path")
	}

	// Dial the daemon.
	dialCtx, cancel := context.WithTimeout(ctx, ipc.RecommendedDialTimeout)
	defer cancel()
	connection, err := ipc.DialContext(dialCtx, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to daemon")
	}
	defer connection.Close()

	// Enforce the exchange bound, if any.
	if deadline, ok := ctx.Deadline(); ok {
		connection.SetDeadline(deadline)
	}

	// Send the request.
	if err := json.NewEncoder(connection).Encode(request); err != nil {
		return nil, errors.Wrap(err, "unable to send request")
	}

	// Receive the response.
	response := &Response{}
	decoder := json.NewDecoder(io.LimitReader(connection, daemon.MaximumIPCMessageSize))
	if err := decoder.Decode(response); err != nil {
		return nil, errors.Wrap(err, "unable to receive response")
	}

	// Surface operation failures as errors.
	if response.Error != "" {
		return nil, errors.New(response.Error)
	}

	// Success.
	return response, nil
}
