package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"

	"github.com/conorfennell/flashcard-mcp/internal/oauth"
)

// authorizeParams are carried through the login form as hidden fields.
var authorizeParams = []string{
	"client_id", "redirect_uri", "state", "code_challenge", "code_challenge_method", "scope", "response_type",
}

type hiddenField struct {
	Name  string
	Value string
}

type loginPage struct {
	Params []hiddenField
	Error  string
}

// handleOAuthMetadata serves RFC 8414 authorization server metadata.
func (s *Server) handleOAuthMetadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := s.issuer(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                                host,
			"authorization_endpoint":                host + "/api/authorize",
			"token_endpoint":                        host + "/api/token",
			"registration_endpoint":                 host + "/api/register",
			"response_types_supported":              []string{"code"},
			"grant_types_supported":                 []string{oauth.GrantAuthorizationCode},
			"code_challenge_methods_supported":      []string{oauth.MethodS256},
			"token_endpoint_auth_methods_supported": []string{"none"},
		})
	}
}

// handleResourceMetadata serves RFC 9728 protected resource metadata.
func (s *Server) handleResourceMetadata() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := s.issuer(r)
		writeJSON(w, http.StatusOK, map[string]any{
			"resource":                 host + "/api/mcp",
			"authorization_servers":    []string{host},
			"bearer_methods_supported": []string{"header"},
		})
	}
}

type registerResponse struct {
	ClientID     string   `json:"client_id"`
	RedirectURIs []string `json:"redirect_uris"`
	ClientName   string   `json:"client_name,omitempty"`
}

// handleRegister performs dynamic client registration.
func (s *Server) handleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, &oauth.Error{Code: oauth.InvalidRequest, Description: "Invalid JSON body"})
			return
		}

		client, err := s.oauth.RegisterClient(r.Context(), req)
		if err != nil {
			s.writeOAuthError(w, err)
			return
		}
		s.logger.Info().Str("client_id", client.ClientID).Str("client_name", client.ClientName).Msg("registered oauth client")

		writeJSON(w, http.StatusCreated, registerResponse{
			ClientID:     client.ClientID,
			RedirectURIs: client.RedirectURIs,
			ClientName:   client.ClientName,
		})
	}
}

// handleGetAuthorize renders the login form.
func (s *Server) handleGetAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderLogin(w, collectParams(r.URL.Query()), "")
	}
}

// handlePostAuthorize checks the password, issues a code and redirects back
// to the client.
func (s *Server) handlePostAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		form := r.PostForm
		params := collectParams(form)

		if s.opts.APIKey == "" || !constantTimeEqual(form.Get("password"), s.opts.APIKey) {
			s.logger.Warn().Str("client_id", form.Get("client_id")).Msg("rejected authorization password")
			s.renderLogin(w, params, "Incorrect password.")
			return
		}

		redirectURI := form.Get("redirect_uri")
		code, err := s.oauth.Authorize(r.Context(), oauth.AuthorizeRequest{
			ClientID:            form.Get("client_id"),
			RedirectURI:         redirectURI,
			CodeChallenge:       form.Get("code_challenge"),
			CodeChallengeMethod: form.Get("code_challenge_method"),
		})
		if err != nil {
			var oe *oauth.Error
			if errors.As(err, &oe) {
				http.Error(w, oe.Description, http.StatusBadRequest)
				return
			}
			s.logger.Error().Err(err).Msg("failed to issue authorization code")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		target, err := url.Parse(redirectURI)
		if err != nil {
			http.Error(w, "Invalid redirect_uri", http.StatusBadRequest)
			return
		}
		q := target.Query()
		q.Set("code", code)
		if state := form.Get("state"); state != "" {
			q.Set("state", state)
		}
		target.RawQuery = q.Encode()

		http.Redirect(w, r, target.String(), http.StatusFound)
	}
}

// handleToken exchanges an authorization code. Both form and JSON bodies are accepted.
func (s *Server) handleToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth.TokenRequest
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/json" {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, &oauth.Error{Code: oauth.InvalidRequest, Description: "Invalid JSON body"})
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				writeJSON(w, http.StatusBadRequest, &oauth.Error{Code: oauth.InvalidRequest, Description: "Invalid form body"})
				return
			}
			req = oauth.TokenRequest{
				GrantType:    r.PostForm.Get("grant_type"),
				Code:         r.PostForm.Get("code"),
				CodeVerifier: r.PostForm.Get("code_verifier"),
				ClientID:     r.PostForm.Get("client_id"),
				RedirectURI:  r.PostForm.Get("redirect_uri"),
			}
		}

		resp, err := s.oauth.Exchange(r.Context(), req)
		if err != nil {
			s.writeOAuthError(w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) writeOAuthError(w http.ResponseWriter, err error) {
	var oe *oauth.Error
	if errors.As(err, &oe) {
		writeJSON(w, http.StatusBadRequest, oe)
		return
	}
	s.logger.Error().Err(err).Msg("oauth request failed")
	writeJSON(w, http.StatusInternalServerError, &oauth.Error{Code: oauth.ServerError})
}

func (s *Server) renderLogin(w http.ResponseWriter, params []hiddenField, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "login", loginPage{Params: params, Error: msg}); err != nil {
		s.logger.Error().Err(err).Msg("failed to render login page")
	}
}

func collectParams(values url.Values) []hiddenField {
	var params []hiddenField
	for _, name := range authorizeParams {
		if v, ok := values[name]; ok && len(v) > 0 {
			params = append(params, hiddenField{Name: name, Value: v[0]})
		}
	}
	return params
}
