package web

import (
	"crypto/subtle"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/conorfennell/flashcard-mcp/internal/oauth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

//go:embed all:templates
var templateFiles embed.FS

// Options configures the HTTP boundary.
type Options struct {
	// APIKey is accepted as a bearer token and as the login password.
	APIKey string
	// PublicURL overrides the issuer derived from each request.
	PublicURL   string
	CORSOrigins []string
	Logger      zerolog.Logger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	router    chi.Router
	oauth     *oauth.Service
	mcp       http.Handler
	opts      Options
	logger    zerolog.Logger
	templates *template.Template
}

// NewServer creates and configures a new server. mcpHandler serves the MCP
// endpoint once a request is authorized.
func NewServer(oauthSvc *oauth.Service, mcpHandler http.Handler, opts Options) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		oauth:     oauthSvc,
		mcp:       mcpHandler,
		opts:      opts,
		logger:    opts.Logger,
		templates: template.Must(template.ParseFS(templateFiles, "templates/*.html")),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Mcp-Session-Id", "Mcp-Protocol-Version"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/.well-known/oauth-authorization-server", s.handleOAuthMetadata())
	r.Get("/.well-known/oauth-protected-resource", s.handleResourceMetadata())

	r.Route("/api", func(r chi.Router) {
		r.Get("/oauth-metadata", s.handleOAuthMetadata())
		r.Get("/resource-metadata", s.handleResourceMetadata())
		r.Post("/register", s.handleRegister())
		r.Get("/authorize", s.handleGetAuthorize())
		r.Post("/authorize", s.handlePostAuthorize())
		r.Post("/token", s.handleToken())

		r.With(s.requireAuth).Handle("/mcp", s.mcp)
	})
}

// requireAuth accepts the static API key or a valid OAuth access token.
// Without a configured API key the endpoint is open.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok && constantTimeEqual(token, s.opts.APIKey) {
			next.ServeHTTP(w, r)
			return
		}
		if ok {
			valid, err := s.oauth.ValidateToken(r.Context(), token)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to validate access token")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
				return
			}
			if valid {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("WWW-Authenticate",
			`Bearer resource_metadata="`+s.issuer(r)+`/.well-known/oauth-protected-resource"`)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	})
}

// issuer is the public base URL of this server.
func (s *Server) issuer(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return strings.TrimSuffix(s.opts.PublicURL, "/")
	}
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
