package server

import "errors"

// ErrBackpressure is returned by Dispatcher.Submit when the worker pool and
// its pending queue are both full. The caller must reject or retry the
// frame; it is never silently dropped.
var ErrBackpressure = errors.New("dispatcher backpressure: queue full")

// ErrStopped is returned by Dispatcher.Submit after shutdown has begun.
var ErrStopped = errors.New("dispatcher stopped")

// ErrSessionClosed is returned when writing to a session that has been
// closed.
var ErrSessionClosed = errors.New("session closed")
