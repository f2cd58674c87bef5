package utils

import "fmt"

// AppError carries an HTTP status alongside a user-facing message.
// The central fiber error handler maps it straight onto the response,
// so handlers return these instead of writing statuses themselves.
type AppError struct {
	Code    int
	Message string
	Err     error
	Context map[string]interface{}
}

// NewAppError wraps err with a status code and display message
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext attaches a key for log output and returns the error
// for chaining
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	e.Context[key] = value
	return e
}

// Constructors for the statuses the API actually returns.

func BadRequestError(message string, err error) *AppError {
	return NewAppError(400, message, err)
}

func UnauthorizedError(message string, err error) *AppError {
	return NewAppError(401, message, err)
}

func ForbiddenError(message string, err error) *AppError {
	return NewAppError(403, message, err)
}

func NotFoundError(message string, err error) *AppError {
	return NewAppError(404, message, err)
}

func PayloadTooLargeError(message string, err error) *AppError {
	return NewAppError(413, message, err)
}

func UnprocessableError(message string, err error) *AppError {
	return NewAppError(422, message, err)
}

func InternalServerError(message string, err error) *AppError {
	return NewAppError(500, message, err)
}

func BadGatewayError(message string, err error) *AppError {
	return NewAppError(502, message, err)
}
