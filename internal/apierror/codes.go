package apierror

import "net/http"

// Problem type URIs. Clients switch on these, not on Title or Detail.
const (
	TypeValidation   = "urn:larder:error:validation"
	TypeInvalidParam = "urn:larder:error:invalid_param"
	TypeBadRequest   = "urn:larder:error:bad_request"
	TypeUnauthorized = "urn:larder:error:unauthorized"
	TypeNotFound     = "urn:larder:error:not_found"
	TypeRateLimit    = "urn:larder:error:rate_limit"
	TypeInternal     = "urn:larder:error:internal"

	// TypeUnavailable means the prediction store or item lock backend
	// could not be reached in time
	TypeUnavailable = "urn:larder:error:unavailable"
)

type kind struct {
	title       string
	status      int
	userMessage string
}

var kinds = map[string]kind{
	TypeValidation:   {"Validation Error", http.StatusBadRequest, "Please check the filters and try again"},
	TypeInvalidParam: {"Invalid Parameter", http.StatusBadRequest, "One of the filters is not valid"},
	TypeBadRequest:   {"Bad Request", http.StatusBadRequest, ""},
	TypeUnauthorized: {"Authentication Required", http.StatusUnauthorized, "Please sign in to continue"},
	TypeNotFound:     {"Resource Not Found", http.StatusNotFound, ""},
	TypeRateLimit:    {"Rate Limit Exceeded", http.StatusTooManyRequests, "Too many requests. Please wait before trying again."},
	TypeInternal:     {"Internal Server Error", http.StatusInternalServerError, "Something went wrong. Please try again later."},
	TypeUnavailable:  {"Service Unavailable", http.StatusServiceUnavailable, "Predictions are temporarily unavailable. Please try again shortly."},
}

func newProblem(typ, requestID, detail string) *ProblemDetails {
	k := kinds[typ]
	return &ProblemDetails{
		Type:        typ,
		Title:       k.title,
		Status:      k.status,
		Detail:      detail,
		RequestID:   requestID,
		UserMessage: k.userMessage,
	}
}
