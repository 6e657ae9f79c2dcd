package logger

// Field keys shared by every package that logs about a task.
const (
	FieldComponent   = "component"
	FieldTaskID      = "task_id"
	FieldRecordingID = "recording_id"
	FieldRemoteTask  = "remote_task_id"
	FieldStep        = "step"
	FieldProvider    = "provider"
	FieldAttempt     = "attempt"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
	FieldRequestID   = "request_id"
)

// Fields builds a field map from alternating keys and values. Non-string
// keys and a trailing key without a value are dropped.
//
//	log.Info("uploaded", logger.Fields("key", key, "bytes", n))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
