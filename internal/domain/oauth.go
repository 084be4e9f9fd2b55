package domain

import "time"

// OAuthClient is a dynamically registered OAuth client. Clients are never
// updated or deleted once stored.
type OAuthClient struct {
	ClientID     string    `json:"client_id"`
	RedirectURIs []string  `json:"redirect_uris"`
	ClientName   string    `json:"client_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AllowsRedirect reports whether uri exactly matches a registered redirect URI.
func (c OAuthClient) AllowsRedirect(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AuthCode is the record behind a one-time authorization code.
type AuthCode struct {
	ClientID            string `json:"client_id"`
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}
