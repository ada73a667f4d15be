package logging

// Standard attribute keys used across courier log output. Keeping them in
// one place makes log lines greppable and keeps components from inventing
// near-duplicate keys.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
	FieldItemID    = "item_id"
	FieldStage     = "upload_stage"
	FieldFileName  = "file_name"
	FieldBatchSize = "batch_size"
)
