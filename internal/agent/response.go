package agent

import "net/http"

// ResponseType tags whether a response carries plain conversation text or
// structured operation data.
type ResponseType string

const (
	TypePlainText     ResponseType = "plain_text"
	TypeOperationData ResponseType = "operation_data"
)

// OperationFallback is returned whenever the operation path cannot produce a
// usable result; operation handling degrades to this message rather than an
// error.
const OperationFallback = "I wasn't able to handle that operation request. Could you rephrase what you'd like me to do?"

// Response is the normalized outcome of handling one message. Status and
// Response are always populated; DynamicJSON only when Type is
// TypeOperationData. The case is chosen at construction and never mutated.
type Response struct {
	Status      int            `json:"status"`
	Response    string         `json:"response"`
	Type        ResponseType   `json:"type"`
	DynamicJSON map[string]any `json:"dynamic_json,omitempty"`
}

// TextResponse builds a plain-text response.
func TextResponse(status int, body string) Response {
	return Response{Status: status, Response: body, Type: TypePlainText}
}

// OperationResponse builds a successful operation response carrying the
// extracted schema.
func OperationResponse(body string, schema map[string]any) Response {
	return Response{
		Status:      http.StatusOK,
		Response:    body,
		Type:        TypeOperationData,
		DynamicJSON: schema,
	}
}

func internalError(err error) Response {
	return TextResponse(http.StatusInternalServerError,
		"An error occurred while processing the conversation: "+err.Error())
}
