package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldInstanceID  = "instance_id"
	FieldTempID      = "temp_id"
	FieldExpenseID   = "expense_id"
	FieldEvent       = "event"
	FieldSeq         = "seq"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldFailure     = "failure_class"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldAmountCents = "amount_cents"
	FieldCategoryID  = "category_id"
	FieldPayerID     = "paid_by_user_id"
	FieldGeneration  = "generation"
	FieldBackend     = "backend"
	FieldSink        = "sink"
	FieldRetry       = "retry"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentForm       = "form"
	ComponentSubmission = "submission"
	ComponentBudget     = "budget"
	ComponentAnalytics  = "analytics"
	ComponentDirectory  = "directory"
	ComponentAPI        = "api"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentCache      = "cache"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpAppend   = "append"
	OpSubmit   = "submit"
	OpRetry    = "retry"
	OpLookup   = "lookup"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(errType string) LogFields {
	f[FieldErrorType] = errType
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithInstance(instanceID string) LogFields {
	f[FieldInstanceID] = instanceID
	return f
}

// WithExpense adds the fields of a pending expense.
func (f LogFields) WithExpense(tempID, amountCents, categoryID, payerID int64) LogFields {
	f[FieldTempID] = tempID
	f[FieldAmountCents] = amountCents
	f[FieldCategoryID] = categoryID
	f[FieldPayerID] = payerID
	return f
}

// WithPeriod adds year and month.
func (f LogFields) WithPeriod(year, month int) LogFields {
	f[FieldYear] = year
	f[FieldMonth] = month
	return f
}

func (f LogFields) WithDuration(ms int64, success bool) LogFields {
	f[FieldDuration] = ms
	f[FieldSuccess] = success
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
