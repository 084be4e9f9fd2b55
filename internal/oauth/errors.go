package oauth

import "fmt"

// Error is an OAuth 2.0 protocol error as returned to clients.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes used by the authorization and token endpoints.
const (
	InvalidRequest       = "invalid_request"
	InvalidClient        = "invalid_client"
	InvalidGrant         = "invalid_grant"
	UnsupportedGrantType = "unsupported_grant_type"
	InvalidRedirectURI   = "invalid_redirect_uri"
	ServerError          = "server_error"
)

func newError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}
