package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context logger through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldAIRequestID is the queued AI request being worked on
	FieldAIRequestID = "ai_request_id"

	// FieldAdminID is the operator acting on the queue
	FieldAdminID = "admin_id"

	// FieldSessionID is the customer wizard session
	FieldSessionID = "session_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Metric fields, attached per entry for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldStatus is the request or operation status
	FieldStatus = "status"

	// FieldFrom is the status a transition left
	FieldFrom = "from"
)
