package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/conorfennell/flashcard-mcp/internal/oauth"
	"github.com/conorfennell/flashcard-mcp/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiKey      = "s3cret"
	redirectURI = "https://client.example/cb"
	verifier    = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

func newTestServer(t *testing.T, key string) *Server {
	t.Helper()
	kv := storage.NewMemory()
	t.Cleanup(func() { kv.Close() })

	mcpStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mcp"))
	})
	return NewServer(oauth.NewService(kv), mcpStub, Options{
		APIKey: key,
		Logger: zerolog.Nop(),
	})
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, s *Server) string {
	t.Helper()
	body := `{"redirect_uris":["` + redirectURI + `"],"client_name":"test"}`
	rr := do(s, httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp registerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.ClientID, 64)
	assert.Equal(t, []string{redirectURI}, resp.RedirectURIs)
	assert.Equal(t, "test", resp.ClientName)
	return resp.ClientID
}

func authorizeForm(clientID, password string) url.Values {
	return url.Values{
		"password":              {password},
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"state":                 {"xyz"},
		"code_challenge":        {oauth.Challenge(verifier)},
		"code_challenge_method": {oauth.MethodS256},
	}
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func authorize(t *testing.T, s *Server, clientID string) string {
	t.Helper()
	rr := do(s, postForm("/api/authorize", authorizeForm(clientID, apiKey)))
	require.Equal(t, http.StatusFound, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "client.example", loc.Host)
	assert.Equal(t, "xyz", loc.Query().Get("state"))
	require.NotEmpty(t, loc.Query().Get("code"))
	return loc.Query().Get("code")
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, apiKey)
	rr := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestOAuthFlow(t *testing.T) {
	s := newTestServer(t, apiKey)
	clientID := register(t, s)
	code := authorize(t, s, clientID)

	rr := do(s, postForm("/api/token", url.Values{
		"grant_type":    {oauth.GrantAuthorizationCode},
		"code":          {code},
		"code_verifier": {verifier},
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
	}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	var tok oauth.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	assert.Len(t, tok.AccessToken, 64)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, int64(2592000), tok.ExpiresIn)

	req := httptest.NewRequest(http.MethodPost, "/api/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rr = do(s, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "mcp", rr.Body.String())

	t.Run("code cannot be reused", func(t *testing.T) {
		body := `{"grant_type":"authorization_code","code":"` + code + `","code_verifier":"` + verifier +
			`","client_id":"` + clientID + `","redirect_uri":"` + redirectURI + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := do(s, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"invalid_grant","error_description":"Invalid or expired code"}`, rr.Body.String())
	})
}

func TestNativeAppRedirect(t *testing.T) {
	s := newTestServer(t, apiKey)
	const native = "com.example.app:/oauth2redirect"

	rr := do(s, httptest.NewRequest(http.MethodPost, "/api/register",
		strings.NewReader(`{"redirect_uris":["`+native+`"]}`)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var reg registerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &reg))

	form := authorizeForm(reg.ClientID, apiKey)
	form.Set("redirect_uri", native)
	rr = do(s, postForm("/api/authorize", form))
	require.Equal(t, http.StatusFound, rr.Code, rr.Body.String())

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", loc.Scheme)
	assert.Equal(t, "/oauth2redirect", loc.Path)
	assert.NotEmpty(t, loc.Query().Get("code"))
}

func TestTokenJSONBody(t *testing.T) {
	s := newTestServer(t, apiKey)
	clientID := register(t, s)
	code := authorize(t, s, clientID)

	body, err := json.Marshal(oauth.TokenRequest{
		GrantType:    oauth.GrantAuthorizationCode,
		Code:         code,
		CodeVerifier: verifier,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr := do(s, req)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestTokenErrors(t *testing.T) {
	s := newTestServer(t, apiKey)

	t.Run("unsupported grant type", func(t *testing.T) {
		rr := do(s, postForm("/api/token", url.Values{"grant_type": {"password"}}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error":"unsupported_grant_type"}`, rr.Body.String())
	})

	t.Run("missing parameters", func(t *testing.T) {
		rr := do(s, postForm("/api/token", url.Values{"grant_type": {oauth.GrantAuthorizationCode}}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `"invalid_request"`)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/token", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rr := do(s, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t, apiKey)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `nope`},
		{"no redirect uris", `{"redirect_uris":[]}`},
		{"relative redirect uri", `{"redirect_uris":["/cb"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(s, httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		})
	}

	t.Run("wrong method", func(t *testing.T) {
		rr := do(s, httptest.NewRequest(http.MethodGet, "/api/register", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestAuthorizePage(t *testing.T) {
	s := newTestServer(t, apiKey)
	clientID := register(t, s)

	t.Run("login form carries parameters", func(t *testing.T) {
		q := authorizeForm(clientID, "")
		q.Del("password")
		q.Set("state", `"><script>`)
		rr := do(s, httptest.NewRequest(http.MethodGet, "/api/authorize?"+q.Encode(), nil))
		require.Equal(t, http.StatusOK, rr.Code)
		body := rr.Body.String()
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, body, `name="client_id" value="`+clientID+`"`)
		assert.Contains(t, body, `name="password"`)
		assert.NotContains(t, body, `"><script>`)
		assert.NotContains(t, body, "Incorrect password.")
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := do(s, postForm("/api/authorize", authorizeForm(clientID, "guess")))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Incorrect password.")
		assert.Contains(t, rr.Body.String(), `name="redirect_uri" value="`+redirectURI+`"`)
	})

	t.Run("unregistered redirect", func(t *testing.T) {
		form := authorizeForm(clientID, apiKey)
		form.Set("redirect_uri", "https://evil.example/cb")
		rr := do(s, postForm("/api/authorize", form))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid redirect_uri")
	})

	t.Run("plain pkce rejected", func(t *testing.T) {
		form := authorizeForm(clientID, apiKey)
		form.Set("code_challenge_method", "plain")
		rr := do(s, postForm("/api/authorize", form))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "PKCE with S256 is required")
	})

	t.Run("unknown client", func(t *testing.T) {
		rr := do(s, postForm("/api/authorize", authorizeForm(strings.Repeat("0", 64), apiKey)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthorizeWithoutAPIKey(t *testing.T) {
	s := newTestServer(t, "")
	clientID := register(t, s)

	rr := do(s, postForm("/api/authorize", authorizeForm(clientID, "")))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Incorrect password.")
}

func TestMCPAuth(t *testing.T) {
	s := newTestServer(t, apiKey)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"api key", "Bearer " + apiKey, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + apiKey, http.StatusUnauthorized},
		{"unknown token", "Bearer " + strings.Repeat("a", 64), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/mcp", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := do(s, req)
			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rr.Body.String())
				assert.Equal(t, `Bearer resource_metadata="http://example.com/.well-known/oauth-protected-resource"`,
					rr.Header().Get("WWW-Authenticate"))
			}
		})
	}

	t.Run("open without api key", func(t *testing.T) {
		open := newTestServer(t, "")
		rr := do(open, httptest.NewRequest(http.MethodPost, "/api/mcp", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestMetadata(t *testing.T) {
	s := newTestServer(t, apiKey)

	for _, path := range []string{"/.well-known/oauth-authorization-server", "/api/oauth-metadata"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("X-Forwarded-Proto", "https")
			req.Host = "cards.example"
			rr := do(s, req)
			require.Equal(t, http.StatusOK, rr.Code)

			var meta map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &meta))
			assert.Equal(t, "https://cards.example", meta["issuer"])
			assert.Equal(t, "https://cards.example/api/authorize", meta["authorization_endpoint"])
			assert.Equal(t, "https://cards.example/api/token", meta["token_endpoint"])
			assert.Equal(t, "https://cards.example/api/register", meta["registration_endpoint"])
			assert.Equal(t, []any{"S256"}, meta["code_challenge_methods_supported"])
		})
	}

	for _, path := range []string{"/.well-known/oauth-protected-resource", "/api/resource-metadata"} {
		t.Run(path, func(t *testing.T) {
			rr := do(s, httptest.NewRequest(http.MethodGet, path, nil))
			require.Equal(t, http.StatusOK, rr.Code)

			var meta map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &meta))
			assert.Equal(t, "http://example.com/api/mcp", meta["resource"])
			assert.Equal(t, []any{"http://example.com"}, meta["authorization_servers"])
		})
	}

	t.Run("public url override", func(t *testing.T) {
		kv := storage.NewMemory()
		defer kv.Close()
		pub := NewServer(oauth.NewService(kv), http.NotFoundHandler(), Options{
			PublicURL: "https://public.example/",
			Logger:    zerolog.Nop(),
		})
		rr := do(pub, httptest.NewRequest(http.MethodGet, "/api/oauth-metadata", nil))
		assert.Contains(t, rr.Body.String(), `"issuer":"https://public.example"`)
	})
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, apiKey)

	req := httptest.NewRequest(http.MethodOptions, "/api/mcp", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rr := do(s, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
}
