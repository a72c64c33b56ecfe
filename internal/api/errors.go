package api

import "net/http"

// Error codes used in the envelope.
const (
	CodeBadRequest      = 9400
	CodeUnauthorized    = 9401
	CodeForbidden       = 9403
	CodeNotFound        = 9404
	CodeConflict        = 9409
	CodeTooLarge        = 9413
	CodeUnprocessable   = 9422
	CodeTooManyRequests = 9429
	CodeInternal        = 9500
	CodeUpstream        = 9502

	CodeSizeWarning = 1413
)

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse(CodeBadRequest, msg))
}

// InvalidField writes a 400 error response naming the offending body field.
func InvalidField(w http.ResponseWriter, field, msg string) {
	WriteJSON(w, http.StatusBadRequest, FieldErrorResponse(CodeBadRequest, msg, "/"+field))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, msg string) {
	if msg == "" {
		msg = "Authentication required"
	}
	WriteJSON(w, http.StatusUnauthorized, ErrorResponse(CodeUnauthorized, msg))
}

// Forbidden writes a 403 error response.
func Forbidden(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusForbidden, ErrorResponse(CodeForbidden, msg))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusNotFound, ErrorResponse(CodeNotFound, msg))
}

// Conflict writes a 409 error response.
func Conflict(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusConflict, ErrorResponse(CodeConflict, msg))
}

// UnprocessableEntity writes a 422 error response.
func UnprocessableEntity(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse(CodeUnprocessable, msg))
}

// TooLarge writes a 413 error response.
func TooLarge(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse(CodeTooLarge, msg))
}

// TooManyRequests writes a 429 error response.
func TooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	WriteJSON(w, http.StatusTooManyRequests, ErrorResponse(CodeTooManyRequests, "Too many requests, try again shortly"))
}

// BadGateway writes a 502 error response for failures of the remote store.
func BadGateway(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusBadGateway, ErrorResponse(CodeUpstream, msg))
}

// Internal writes a 500 error response.
func Internal(w http.ResponseWriter) {
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse(CodeInternal, "Internal server error"))
}
