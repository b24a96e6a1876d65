package handler

// Response is the envelope for endpoints without a dedicated wire shape.
// The list, unread-count and mark-read endpoints bypass it; their payloads
// are fixed by the existing console clients.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{Status: "success", Data: data}
}

func NewErrorResponse(message string) *Response {
	return &Response{Status: "error", Message: message}
}
