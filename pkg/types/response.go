package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Message is a user-facing notice shown once.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// RedirectPayload is the body of a 303 response: where to go next and the
// notice to show there.
type RedirectPayload struct {
	Redirect string   `json:"redirect"`
	Message  *Message `json:"message,omitempty"`
}
