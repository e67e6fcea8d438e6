package common

// Error codes shared by every handler package. The code travels in the
// error envelope so clients can branch without parsing messages.
const (
	CodeBadRequest = "BAD_REQUEST"
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION"
	CodeConflict   = "CONFLICT"
	CodeInternal   = "INTERNAL"
)

// AppError carries an error code, a client-safe message and the HTTP
// status to render it with. Deeper layers return it when they need to
// dictate the response shape instead of a sentinel mapping.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
