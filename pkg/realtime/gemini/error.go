package gemini

import "fmt"

// Error represents a connection or protocol error from the Gemini Live
// endpoint.
type Error struct {
	// Code is a short machine-readable code ("connection_failed",
	// "setup_failed", ...).
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// HTTPStatus is the handshake HTTP status, if applicable.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gemini: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("gemini: %s", e.Message)
}
