package types

// Result is the outcome of an operation that may fail with one or more
// field-level errors.
type Result struct {
	Success bool          `json:"success"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
	Errors  []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail describes one problem found with an input.
type ErrorDetail struct {
	// Location is the name of the offending field or setting.
	Location      string `json:"location"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message"`
	RejectedValue any    `json:"rejectedValue,omitempty"`
}

// Success returns a successful Result.
func Success() Result {
	return Result{Success: true}
}
