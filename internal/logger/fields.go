package logger

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so logs can be aggregated and queried.
const (
	// Session & connection
	KeySessionID  = "session_id"  // Session identifier
	KeyClientAddr = "client_addr" // Remote peer address (ip:port)
	KeyUsername   = "username"    // Authenticated username

	// Protocol
	KeyMessageType = "message_type" // Wire message type name
	KeyFrameSize   = "frame_size"   // Encoded frame size in bytes

	// Operation metadata
	KeyError      = "error"       // Error message
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyActive     = "active"      // Active connection count
	KeyWorkers    = "workers"     // Dispatcher worker count
	KeyQueueDepth = "queue_depth" // Dispatcher queue depth
)
