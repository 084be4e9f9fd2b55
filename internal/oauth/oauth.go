// Package oauth implements the authorization-code grant with mandatory PKCE.
//
// Clients, codes and tokens are independent records in a storage.KV:
//
//	oauth:client:<client_id>  registered client, never expires
//	oauth:code:<code>         pending authorization, expires after the code TTL
//	oauth:token:<token>       "valid" marker, expires after the token TTL
//
// Codes are deleted on the first lookup, before the redemption request is
// validated, so a failed exchange still consumes the code.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/conorfennell/flashcard-mcp/internal/domain"
	"github.com/conorfennell/flashcard-mcp/internal/storage"
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultCodeTTL bounds the lifetime of an authorization code.
	DefaultCodeTTL = 10 * time.Minute
	// DefaultTokenTTL bounds the lifetime of an access token.
	DefaultTokenTTL = 30 * 24 * time.Hour

	// GrantAuthorizationCode is the only supported grant_type.
	GrantAuthorizationCode = "authorization_code"

	tokenValid = "valid"
)

// Service is the OAuth state machine.
type Service struct {
	kv       storage.KV
	now      func() time.Time
	codeTTL  time.Duration
	tokenTTL time.Duration
	validate *validator.Validate
}

// Option configures a Service.
type Option func(*Service)

// WithCodeTTL overrides DefaultCodeTTL.
func WithCodeTTL(d time.Duration) Option {
	return func(s *Service) { s.codeTTL = d }
}

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) { s.tokenTTL = d }
}

// WithClock sets the clock used for client creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service over kv.
func NewService(kv storage.KV, opts ...Option) *Service {
	s := &Service{
		kv:       kv,
		now:      time.Now,
		codeTTL:  DefaultCodeTTL,
		tokenTTL: DefaultTokenTTL,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("redirect_uri", isRedirectURI); err != nil {
		panic(err)
	}
	return v
}

// isRedirectURI accepts any URI with a scheme. Native apps register
// private-use schemes without a host (RFC 8252).
func isRedirectURI(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	return err == nil && u.Scheme != ""
}

// RegisterRequest is the dynamic client registration payload.
type RegisterRequest struct {
	RedirectURIs []string `json:"redirect_uris" validate:"required,min=1,dive,required,redirect_uri"`
	ClientName   string   `json:"client_name,omitempty"`
}

// RegisterClient stores a new client. Registering the same redirect URIs twice
// creates two clients.
func (s *Service) RegisterClient(ctx context.Context, req RegisterRequest) (*domain.OAuthClient, error) {
	if len(req.RedirectURIs) == 0 {
		return nil, newError(InvalidRedirectURI, "redirect_uris is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, newError(InvalidRedirectURI, "redirect_uris must be absolute URIs")
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	client := &domain.OAuthClient{
		ClientID:     id,
		RedirectURIs: req.RedirectURIs,
		ClientName:   req.ClientName,
		CreatedAt:    s.now().UTC(),
	}

	data, err := json.Marshal(client)
	if err != nil {
		return nil, fmt.Errorf("failed to encode client: %w", err)
	}
	if err := s.kv.Set(ctx, clientKey(id), data, 0); err != nil {
		return nil, fmt.Errorf("failed to save client: %w", err)
	}
	return client, nil
}

// Client returns a registered client.
func (s *Service) Client(ctx context.Context, clientID string) (*domain.OAuthClient, error) {
	data, err := s.kv.Get(ctx, clientKey(clientID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(InvalidClient, "Unknown client_id")
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	var client domain.OAuthClient
	if err := json.Unmarshal(data, &client); err != nil {
		return nil, fmt.Errorf("failed to decode client %s: %w", clientID, err)
	}
	return &client, nil
}

// AuthorizeRequest carries the parameters of an approved authorization request.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Authorize issues a single-use authorization code for an approved request.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	if req.ClientID == "" {
		return "", newError(InvalidRequest, "Missing client_id")
	}
	client, err := s.Client(ctx, req.ClientID)
	if err != nil {
		return "", err
	}
	if req.RedirectURI == "" || !client.AllowsRedirect(req.RedirectURI) {
		return "", newError(InvalidRequest, "Invalid redirect_uri")
	}
	if req.CodeChallenge == "" || req.CodeChallengeMethod != MethodS256 {
		return "", newError(InvalidRequest, "PKCE with S256 is required")
	}

	code, err := GenerateID()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(domain.AuthCode{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode authorization code: %w", err)
	}
	if err := s.kv.Set(ctx, codeKey(code), data, s.codeTTL); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}
	return code, nil
}

// TokenRequest is the token endpoint payload.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
}

// TokenResponse is returned on a successful exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchange redeems an authorization code for an access token.
func (s *Service) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if req.GrantType != GrantAuthorizationCode {
		return nil, newError(UnsupportedGrantType, "")
	}
	if req.Code == "" || req.CodeVerifier == "" || req.ClientID == "" || req.RedirectURI == "" {
		return nil, newError(InvalidRequest, "Missing required parameters")
	}

	// The code is gone from here on, whatever the outcome.
	data, err := s.kv.GetDel(ctx, codeKey(req.Code))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newError(InvalidGrant, "Invalid or expired code")
		}
		return nil, fmt.Errorf("failed to load authorization code: %w", err)
	}
	var code domain.AuthCode
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, fmt.Errorf("failed to decode authorization code: %w", err)
	}

	if code.ClientID != req.ClientID {
		return nil, newError(InvalidGrant, "client_id mismatch")
	}
	if code.RedirectURI != req.RedirectURI {
		return nil, newError(InvalidGrant, "redirect_uri mismatch")
	}
	if !VerifyPKCE(req.CodeVerifier, code.CodeChallenge) {
		return nil, newError(InvalidGrant, "PKCE verification failed")
	}

	token, err := GenerateID()
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, tokenKey(token), []byte(tokenValid), s.tokenTTL); err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL / time.Second),
	}, nil
}

// ValidateToken reports whether token was issued and has not expired.
func (s *Service) ValidateToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	data, err := s.kv.Get(ctx, tokenKey(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load access token: %w", err)
	}
	return string(data) == tokenValid, nil
}

func clientKey(id string) string   { return "oauth:client:" + id }
func codeKey(code string) string   { return "oauth:code:" + code }
func tokenKey(token string) string { return "oauth:token:" + token }
