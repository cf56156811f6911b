package logkey

// Shared keys for structured log attributes so searches stay consistent
// across handlers.
const (
	TraceID   = "Trace ID"
	ERROR     = "Error"
	ProductID = "ProductID"
	SessionID = "SessionID"
)
