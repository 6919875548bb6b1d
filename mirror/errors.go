package mirror

import "errors"

var (
	// ErrClosed is returned by control-side calls after the client closed.
	ErrClosed = errors.New("mirror: client closed")
	// ErrDestroyed is returned when using a handle whose node was destroyed.
	ErrDestroyed = errors.New("mirror: node destroyed")
	// ErrUnknownTag is returned for a buffer whose tag has no layout.
	ErrUnknownTag = errors.New("mirror: unknown buffer tag")
	// ErrUnknownHandle is reported when a message names a handle the worker
	// does not know.
	ErrUnknownHandle = errors.New("mirror: unknown handle")
)

// errClientClosed stops Run's group when the application closes the client.
var errClientClosed = errors.New("mirror: client closed by application")
