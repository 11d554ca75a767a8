package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-discord-oauth/auth"
	"github.com/jrsteele09/go-discord-oauth/discord"
	"github.com/jrsteele09/go-discord-oauth/instrumentation"
	"github.com/jrsteele09/go-discord-oauth/internal/config"
	"github.com/jrsteele09/go-discord-oauth/internal/logging"
	"github.com/jrsteele09/go-discord-oauth/server"
	"github.com/jrsteele09/go-discord-oauth/sessions"
	"github.com/jrsteele09/go-discord-oauth/sessions/redisrepo"
	"github.com/jrsteele09/go-discord-oauth/token"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatal().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Bytes("stack", debug.Stack()).Msgf("Recovered from panic: %v", r)
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	if err := config.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	inst, err := instrumentation.New(instrumentation.Config{Enabled: c.GetMetricsEnabled()})
	if err != nil {
		return fmt.Errorf("instrumentation.New: %w", err)
	}

	repo, closeRepo, err := newSessionRepo(c)
	if err != nil {
		return err
	}
	defer closeRepo()

	discordClient, err := discord.NewClient(&discord.Config{
		ClientID:       c.GetClientID(),
		ClientSecret:   c.GetClientSecret(),
		RedirectURL:    c.GetRedirectURI(),
		Scopes:         c.GetScopes(),
		PortalURL:      c.GetOAuth2URL(),
		AuthorizeURL:   c.GetAuthorizeURL(),
		APIURL:         c.GetAPIURL(),
		OIDCIssuer:     c.GetOIDCIssuer(),
		RequestTimeout: c.GetRequestTimeout(),
		Metrics:        inst.Metrics(),
	})
	if err != nil {
		return fmt.Errorf("discord.NewClient: %w", err)
	}

	flow, err := auth.NewSessionFlow(discordClient, repo,
		auth.WithNonceBytes(c.GetNonceBytes()),
		auth.WithCodeReuseWindow(c.GetCodeReuseWindow()),
		auth.WithMetrics(inst.Metrics()),
	)
	if err != nil {
		return fmt.Errorf("auth.NewSessionFlow: %w", err)
	}
	defer flow.Close()

	sessionTokens, err := newSessionTokens(c)
	if err != nil {
		return err
	}

	handler, err := server.New(c, flow, sessionTokens, inst)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	defer handler.Close()

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(httpServer)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-waitForStopSignal():
	}

	returnError = shutdown(httpServer, inst)
	return returnError
}

// newSessionRepo selects Redis when REDIS_URL is set, otherwise an in-process store.
func newSessionRepo(c config.Config) (sessions.Repo, func(), error) {
	if redisURL := c.GetRedisURL(); redisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := redisrepo.NewFromURL(ctx, redisURL, c.GetSessionTTL())
		if err != nil {
			return nil, nil, fmt.Errorf("redisrepo.NewFromURL: %w", err)
		}
		log.Info().Msg("Sessions stored in Redis")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Err(err).Msg("failed to close redis client")
			}
		}, nil
	}

	repo := sessions.NewInMemoryRepo(c.GetSessionTTL())
	log.Info().Msg("Sessions stored in memory")
	return repo, repo.Close, nil
}

func newSessionTokens(c config.Config) (*token.SessionTokens, error) {
	secret := []byte(c.GetSessionSecret())
	if len(secret) == 0 {
		generated, err := token.GenerateSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
		log.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
	}

	signer, err := token.NewDerivedHMACSigner(secret, token.SessionCookiePurpose)
	if err != nil {
		return nil, fmt.Errorf("token.NewDerivedHMACSigner: %w", err)
	}
	return token.NewSessionTokens(signer, c.GetAppName(), c.GetSessionTTL()), nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server is listening on localhost%s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server, inst *instrumentation.Instrumentation) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	if err := inst.Shutdown(ctx); err != nil {
		return fmt.Errorf("instrumentation.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
