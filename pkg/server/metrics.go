package server

// MetricsRecorder allows the server to record connection and dispatch
// lifecycle metrics. A nil recorder disables collection (zero overhead).
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionRejected()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)

	RecordFrame(messageType string)
	RecordFrameError()
	RecordBackpressure()
	SetQueueDepth(depth int)
	ObserveHandlerDuration(messageType string, seconds float64)
}
