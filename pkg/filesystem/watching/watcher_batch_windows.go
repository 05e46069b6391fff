package watching

import (
	"path/filepath"
	"syscall"
	"time"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/dustin/go-humanize"

	"golang.org/x/sys/windows"

	"github.com/vigilo-io/vigilo/pkg/logging"
)

const (
	// batchReadBufferSize is the initial capacity of the asynchronous read
	// buffer.
	batchReadBufferSize = 1024 * 1024
	// batchNetworkBufferSize is the reduced read buffer capacity used after a
	// capacity/parameter failure. Reads larger than 64 kB are known to fail
	// against remote filesystem shares.
	batchNetworkBufferSize = 64 * 1024

	// batchNotifyFilter is the change mask for directory read requests.
	batchNotifyFilter = windows.FILE_NOTIFY_CHANGE_FILE_NAME |
		windows.FILE_NOTIFY_CHANGE_DIR_NAME |
		windows.FILE_NOTIFY_CHANGE_ATTRIBUTES |
		windows.FILE_NOTIFY_CHANGE_SIZE |
		windows.FILE_NOTIFY_CHANGE_LAST_WRITE |
		windows.FILE_NOTIFY_CHANGE_CREATION |
		windows.FILE_NOTIFY_CHANGE_SECURITY
)

// batchWatcher implements Watcher using asynchronous batched directory read
// requests. A dedicated reader thread keeps exactly one read outstanding at a
// time and blocks on a multi-wait over read completion and shutdown.
type batchWatcher struct {
	// buffer provides event buffering and shutdown signalling.
	*buffer
	// root is the watched root path.
	root string
	// controller receives out-of-band watch conditions.
	controller Controller
	// logger is the watcher's diagnostic logger.
	logger *logging.Logger
	// handle is the directory handle on which reads are issued.
	handle windows.Handle
	// readEvent is signalled on read completion.
	readEvent windows.Handle
	// pingEvent is signalled to wake the reader thread for shutdown.
	pingEvent windows.Handle
}

// newBatchWatcher creates a new asynchronous batch-read watcher for the
// specified root.
func newBatchWatcher(root string, filter Filter, controller Controller) (Watcher, error) {
	return &batchWatcher{
		buffer:     newBuffer(filter),
		root:       root,
		controller: controller,
		logger:     logging.RootLogger.Sublogger("watching"),
	}, nil
}

// Start implements Watcher.Start. It blocks until the reader thread has
// successfully issued its first read request, ensuring that no change
// occurring after a successful return can be missed.
func (w *batchWatcher) Start() error {
	// Open the root directory for asynchronous read requests.
	rootUTF16, err := windows.UTF16PtrFromString(w.root)
	if err != nil {
		return errors.Wrap(err, "unable to convert root path")
	}
	handle, err := windows.CreateFile(
		rootUTF16,
		windows.FILE_LIST_DIRECTORY,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OVERLAPPED,
		0,
	)
	if err != nil {
		return errors.Wrap(err, "unable to open root directory")
	}
	w.handle = handle

	// Create the read completion and shutdown ping events.
	if w.readEvent, err = windows.CreateEvent(nil, 1, 0, nil); err != nil {
		windows.CloseHandle(w.handle)
		return errors.Wrap(err, "unable to create read event")
	}
	if w.pingEvent, err = windows.CreateEvent(nil, 1, 0, nil); err != nil {
		windows.CloseHandle(w.readEvent)
		windows.CloseHandle(w.handle)
		return errors.Wrap(err, "unable to create ping event")
	}

	// Start the reader thread and wait (boundedly) for it to signal that the
	// first read has been issued. The thread owns the handles from this point
	// and releases them when it exits; it is never joined since it may be the
	// last owner of watcher state.
	readiness := make(chan error, 1)
	go w.run(readiness)
	select {
	case err := <-readiness:
		if err != nil {
			return errors.Wrap(err, "unable to issue initial read")
		}
		return nil
	case <-time.After(watchStartTimeout):
		w.SignalThreads()
		return errors.New("timed out waiting for watch to become ready")
	}
}

// SignalThreads implements Watcher.SignalThreads.
func (w *batchWatcher) SignalThreads() {
	w.buffer.SignalThreads()
	windows.SetEvent(w.pingEvent)
}

// run is the reader thread. It issues one outstanding read at a time,
// decoding and buffering each completed batch before re-issuing.
func (w *batchWatcher) run(readiness chan<- error) {
	// Release resources on exit.
	defer func() {
		windows.CloseHandle(w.pingEvent)
		windows.CloseHandle(w.readEvent)
		windows.CloseHandle(w.handle)
	}()

	// Create the read buffer and overlapped structure.
	buffer := make([]byte, batchReadBufferSize)
	shrunk := false
	var overlapped windows.Overlapped
	overlapped.HEvent = w.readEvent

	// Loop, keeping exactly one read outstanding.
	ready := false
	for {
		// Issue the read.
		err := windows.ReadDirectoryChanges(
			w.handle,
			&buffer[0],
			uint32(len(buffer)),
			true,
			batchNotifyFilter,
			nil,
			&overlapped,
			0,
		)
		if err != nil {
			// A parameter failure with a large buffer indicates that the
			// root resides on a filesystem that can't service large reads.
			// Shrink once and retry.
			if err == windows.ERROR_INVALID_PARAMETER && len(buffer) > batchNetworkBufferSize && !shrunk {
				w.logger.Printf(
					"shrinking read buffer from %s to %s",
					humanize.IBytes(uint64(len(buffer))),
					humanize.IBytes(uint64(batchNetworkBufferSize)),
				)
				buffer = make([]byte, batchNetworkBufferSize)
				shrunk = true
				continue
			}
			if !ready {
				readiness <- err
			} else {
				w.controller.CancelWatch(errors.Wrap(err, "unable to issue directory read"))
			}
			return
		}

		// Signal readiness once the first read has been successfully issued,
		// never before. A change occurring between watch setup and the first
		// read would otherwise be silently missed.
		if !ready {
			readiness <- nil
			ready = true
		}

		// Wait for read completion or shutdown.
		event, err := windows.WaitForMultipleObjects(
			[]windows.Handle{w.readEvent, w.pingEvent},
			false,
			windows.INFINITE,
		)
		if err != nil {
			w.controller.CancelWatch(errors.Wrap(err, "wait failure"))
			return
		} else if event == windows.WAIT_OBJECT_0+1 {
			windows.CancelIo(w.handle)
			return
		}

		// Collect the read result.
		var transferred uint32
		if err := windows.GetOverlappedResult(w.handle, &overlapped, &transferred, false); err != nil {
			// An enumeration-invalidated failure means the notification
			// stream can no longer account for all changes, but the watch
			// itself remains valid. Request a full crawl and keep reading.
			if err == windows.ERROR_NOTIFY_ENUM_DIR {
				w.controller.ScheduleRecrawl("directory enumeration invalidated")
				windows.ResetEvent(w.readEvent)
				continue
			}
			w.controller.CancelWatch(errors.Wrap(err, "directory read failure"))
			return
		}
		windows.ResetEvent(w.readEvent)

		// A successful read with no payload indicates that the change backlog
		// overflowed the buffer.
		if transferred == 0 {
			w.controller.ScheduleRecrawl("notification buffer overflow")
			continue
		}

		// Decode and buffer the batch.
		w.decode(buffer[:transferred])
	}
}

// decode converts a completed read buffer's linked sequence of change records
// to canonicalized full paths and buffers them.
func (w *batchWatcher) decode(data []byte) {
	var paths []string
	var offset uint32
	for {
		record := (*syscall.FileNotifyInformation)(unsafe.Pointer(&data[offset]))
		nameLength := record.FileNameLength / 2
		name := (*[65536]uint16)(unsafe.Pointer(&record.FileName))[:nameLength:nameLength]
		paths = append(paths, filepath.Join(w.root, syscall.UTF16ToString(name)))
		if record.NextEntryOffset == 0 {
			break
		}
		offset += record.NextEntryOffset
	}
	w.append(paths...)
}
