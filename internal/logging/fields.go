package logging

const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to whoever reads the log.
	FieldErrorHint = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldJobID identifies a database job.
	FieldJobID = "job_id"
	// FieldOperation is the name of the operation a job executes.
	FieldOperation = "operation"
	// FieldExtension is the name of a registered extension.
	FieldExtension = "extension"
	// FieldSchemaVersion carries schema version numbers.
	FieldSchemaVersion = "schema_version"
)
