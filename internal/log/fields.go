package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldUserID      = "user_id"
	FieldChatID      = "chat_id"
	FieldUpdateID    = "update_id"
	FieldToken       = "token"
	FieldPhase       = "phase"
	FieldReplyKind   = "reply_kind"
	FieldCategoryID  = "category_id"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldRequestID   = "request_id"
	FieldRows        = "rows"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentBot       = "bot"
	ComponentTelegram  = "telegram"
	ComponentResolver  = "resolver"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentPresenter = "presenter"
	ComponentExport    = "export"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpDelete   = "delete"
	OpList     = "list"
	OpRecord   = "record"
	OpClear    = "clear"
	OpStats    = "stats"
	OpExport   = "export"
	OpAppend   = "append"
	OpRender   = "render"
	OpSend     = "send"
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
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds one of the ErrorType* categories
func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithUpdate adds the identifiers of an incoming chat update
func (f LogFields) WithUpdate(updateID int, chatID, userID int64) LogFields {
	f[FieldUpdateID] = updateID
	f[FieldChatID] = chatID
	f[FieldUserID] = userID
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(categoryID int64, amountCents int64) LogFields {
	f[FieldCategoryID] = categoryID
	f[FieldAmountCents] = amountCents
	return f
}

// WithOutcome adds the result of handling an update
func (f LogFields) WithOutcome(kind string, durationMs int64, success bool) LogFields {
	f[FieldReplyKind] = kind
	f[FieldDuration] = durationMs
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
