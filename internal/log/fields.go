package log

// Common field names for structured logging
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldRunID          = "run_id"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldProjectionType = "projection_type"
	FieldObligationID   = "obligation_id"
	FieldPersonnelID    = "personnel_id"
	FieldWindowStart    = "window_start"
	FieldWindowEnd      = "window_end"
	FieldMonth          = "month"
	FieldStatement      = "statement"
	FieldInserted       = "inserted"
	FieldUpdated        = "updated"
	FieldUnchanged      = "unchanged"
	FieldDeleted        = "deleted"
	FieldFailed         = "failed"
)

const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentProjection = "projection"
	ComponentStatements = "statements"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
)

const (
	OpRecalculate = "recalculate"
	OpReconcile   = "reconcile"
	OpCalculate   = "calculate"
	OpMarkPaid    = "mark_paid"
	OpExport      = "export"
	OpPublish     = "publish"
	OpConsume     = "consume"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder for structured log fields.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithObligation adds the ledger key of an obligation.
func (f LogFields) WithObligation(kind string, id int64) LogFields {
	f[FieldProjectionType] = kind
	f[FieldObligationID] = id
	return f
}

func (f LogFields) WithWindow(start, end string) LogFields {
	f[FieldWindowStart] = start
	f[FieldWindowEnd] = end
	return f
}

// WithPlan adds reconcile outcome counts.
func (f LogFields) WithPlan(inserted, updated, unchanged, deleted int) LogFields {
	f[FieldInserted] = inserted
	f[FieldUpdated] = updated
	f[FieldUnchanged] = unchanged
	f[FieldDeleted] = deleted
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
