package resend

import "fmt"

// Email is one outbound message. Attachment content is base64-encoded
// on the wire, which encoding/json does for []byte automatically.
type Email struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is an inline attachment payload.
type Attachment struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// APIError is a structured rejection from the delivery service.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("resend: %s (status %d): %s", e.Name, e.StatusCode, e.Message)
}
