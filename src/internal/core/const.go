package core

// Well-known event names. The vocabulary is open-ended: manual callers
// may register custom names, so these are conventions, not an enum.
const (
	EventClick        = "click"
	EventButtonClick  = "button_click"
	EventFormSubmit   = "form_submit"
	EventInputChange  = "input_change"
	EventPageView     = "page_view"
	EventScroll       = "scroll"
	EventWindowResize = "window_resize"
	EventNavigation   = "navigation"
	EventError        = "error"
	EventPerformance  = "performance"
	EventHTTPRequest  = "http_request"
)

// MaskToken replaces sensitive field values before a record leaves the
// capture layer. Raw secrets never reach a sink.
const MaskToken = "***MASKED***"

// AnonymousUser is the actor identity before authentication.
const AnonymousUser = "anonymous"

// UnknownAction is the fallback when a stored record carries no
// event_name, event, or action field.
const UnknownAction = "unknown_action"

// Pipeline defaults.
const (
	DefaultBatchSize       = 10
	DefaultFlushIntervalMS = 5000
	DefaultSettleDelayMS   = 500
	DefaultThrottleMS      = 100
	DefaultCSVBatchSize    = 10
	DefaultBackfillSize    = 100
)
