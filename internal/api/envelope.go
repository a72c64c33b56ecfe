package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Result   any          `json:"result"`
	Success  bool         `json:"success"`
	Errors   []APIError   `json:"errors"`
	Messages []APIMessage `json:"messages"`
}

// APIMessage is an informational message attached to a response.
type APIMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// APIError is a single error in a failed response.
type APIError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Source  *APIErrorSource `json:"source,omitempty"`
}

// APIErrorSource identifies the request field that caused the error.
type APIErrorSource struct {
	Pointer string `json:"pointer"`
}

// ResultInfo describes the size of a list result.
type ResultInfo struct {
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
}

// ListResponse is a successful list response with result_info.
type ListResponse struct {
	Response
	ResultInfo ResultInfo `json:"result_info"`
}

// SuccessResponse builds a successful response.
func SuccessResponse(result any) Response {
	return Response{
		Result:   result,
		Success:  true,
		Errors:   []APIError{},
		Messages: []APIMessage{},
	}
}

// MessageResponse builds a successful response carrying a message, such as
// a size warning the client should surface.
func MessageResponse(result any, code int, message string) Response {
	resp := SuccessResponse(result)
	resp.Messages = append(resp.Messages, APIMessage{Code: code, Message: message})
	return resp
}

// ErrorResponse builds an error response.
func ErrorResponse(code int, message string) Response {
	return Response{
		Result:  nil,
		Success: false,
		Errors: []APIError{
			{Code: code, Message: message},
		},
		Messages: []APIMessage{},
	}
}

// FieldErrorResponse builds an error response pointing at the request field
// at pointer, a JSON pointer such as "/name".
func FieldErrorResponse(code int, message, pointer string) Response {
	resp := ErrorResponse(code, message)
	resp.Errors[0].Source = &APIErrorSource{Pointer: pointer}
	return resp
}

// List builds a list response. total is the size before filtering.
func List[T any](items []T, total int) ListResponse {
	if items == nil {
		items = []T{}
	}
	return ListResponse{
		Response:   SuccessResponse(items),
		ResultInfo: ResultInfo{Count: len(items), TotalCount: total},
	}
}

// WriteJSON serialises resp as JSON and writes it to w with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("write json response", "error", err)
	}
}
