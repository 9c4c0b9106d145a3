package apierror

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const ContentTypeProblemJSON = "application/problem+json"

// WriteProblem renders p with the problem+json content type. A set
// RetryAfter is mirrored into the Retry-After header.
func WriteProblem(c *gin.Context, p *ProblemDetails) {
	c.Header("Content-Type", ContentTypeProblemJSON)
	if p.RetryAfter != nil {
		c.Header("Retry-After", strconv.Itoa(*p.RetryAfter))
	}
	c.JSON(p.Status, p)
}

// GetRequestID returns the ID assigned by the request logger, falling back to
// the inbound X-Request-ID header
func GetRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// NewValidationError reports every rejected query parameter at once
func NewValidationError(requestID string, errs []FieldError) *ProblemDetails {
	p := newProblem(TypeValidation, requestID, fmt.Sprintf("%d parameter(s) failed validation", len(errs)))
	p.Errors = errs
	return p
}

// NewInvalidParamError rejects a single parameter that parsed but is out of range
func NewInvalidParamError(requestID, field, value, message string) *ProblemDetails {
	p := newProblem(TypeInvalidParam, requestID, fmt.Sprintf("invalid value %q for %s", value, field))
	p.Errors = []FieldError{{Field: field, Message: message, Code: "invalid_param"}}
	return p
}

// NewBadRequestError is for bodies that could not be decoded
func NewBadRequestError(requestID, detail, userMessage string) *ProblemDetails {
	p := newProblem(TypeBadRequest, requestID, detail)
	p.UserMessage = userMessage
	return p
}

func NewUnauthorizedError(requestID string) *ProblemDetails {
	p := newProblem(TypeUnauthorized, requestID, "a valid bearer token is required")
	p.Action = "authenticate"
	return p
}

// NewNotFoundError names the missing resource, e.g. ("Prediction", "milk")
func NewNotFoundError(requestID, resource, id string) *ProblemDetails {
	p := newProblem(TypeNotFound, requestID, fmt.Sprintf("%s %q not found", resource, id))
	p.UserMessage = fmt.Sprintf("No %s for %q yet", resource, id)
	return p
}

func NewRateLimitError(requestID string, retryAfter int) *ProblemDetails {
	p := newProblem(TypeRateLimit, requestID, fmt.Sprintf("rate limit exceeded, retry after %ds", retryAfter))
	p.RetryAfter = &retryAfter
	return p
}

// NewInternalError never carries the underlying error; log it instead
func NewInternalError(requestID string) *ProblemDetails {
	return newProblem(TypeInternal, requestID, "an unexpected error occurred")
}

// NewServiceUnavailableError is returned when the store or the item lock
// could not be reached in time
func NewServiceUnavailableError(requestID string, retryAfter int) *ProblemDetails {
	p := newProblem(TypeUnavailable, requestID, "prediction store unavailable")
	p.RetryAfter = &retryAfter
	p.Action = "retry_analysis"
	return p
}
