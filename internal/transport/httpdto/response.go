package httpdto

// Response is the envelope every endpoint returns. Error responses carry a
// stable machine-readable code next to the human-readable message, and the
// request id when one is known, so support can correlate a client report
// with the server logs.
type Response[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// WithRequestID stamps the envelope for log correlation.
func (r Response[T]) WithRequestID(id string) Response[T] {
	r.RequestID = id
	return r
}
