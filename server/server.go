package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-discord-oauth/auth"
	"github.com/jrsteele09/go-discord-oauth/instrumentation"
	"github.com/jrsteele09/go-discord-oauth/internal/config"
	"github.com/jrsteele09/go-discord-oauth/token"
)

// Flow is the authorization flow the HTTP layer drives.
type Flow interface {
	BeginLogin(ctx context.Context, sessionID string) (auth.LoginStart, error)
	HandleCallback(ctx context.Context, sessionID string, params auth.CallbackParams) (auth.Outcome, error)
	Refresh(ctx context.Context, sessionID string) (auth.Outcome, error)
}

var _ Flow = (*auth.SessionFlow)(nil)

type Server struct {
	env             string // Environment (e.g., "DEV", "PROD")
	mux             *http.ServeMux
	routes          []string
	config          config.Config
	flow            Flow
	sessionTokens   *token.SessionTokens
	instrumentation *instrumentation.Instrumentation
	metrics         *instrumentation.Metrics
	limiter         *ipRateLimiter
}

func New(config config.Config, flow Flow, sessionTokens *token.SessionTokens, inst *instrumentation.Instrumentation) (*Server, error) {
	if flow == nil {
		return nil, errors.New("[Server New] flow is required")
	}
	if sessionTokens == nil {
		return nil, errors.New("[Server New] session tokens are required")
	}

	s := &Server{
		env:             config.GetEnv(),
		mux:             http.NewServeMux(),
		config:          config,
		flow:            flow,
		sessionTokens:   sessionTokens,
		instrumentation: inst,
		limiter:         newIPRateLimiter(config.GetRateLimitRPS(), config.GetRateLimitBurst()),
	}
	if inst != nil {
		s.metrics = inst.Metrics()
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close releases the rate limiter's cache.
func (s *Server) Close() {
	s.limiter.Close()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

func colourMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
