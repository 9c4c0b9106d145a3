// Package apierror renders RFC 9457 problem details for the larder API.
package apierror

// ProblemDetails is an RFC 9457 body plus larder's extension members
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	RequestID   string       `json:"request_id,omitempty"`
	UserMessage string       `json:"user_message,omitempty"` // safe to show in the app
	RetryAfter  *int         `json:"retry_after,omitempty"`  // seconds
	Action      string       `json:"action,omitempty"`       // "authenticate" or "retry_analysis"
	Errors      []FieldError `json:"errors,omitempty"`
}

// FieldError is one rejected request parameter
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (p *ProblemDetails) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}
