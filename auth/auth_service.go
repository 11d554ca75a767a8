package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-discord-oauth/discord"
	"github.com/jrsteele09/go-discord-oauth/instrumentation"
	apperrors "github.com/jrsteele09/go-discord-oauth/internal/errors"
	"github.com/jrsteele09/go-discord-oauth/sessions"
)

const (
	defaultNonceBytes      = 32
	minNonceBytes          = 20
	defaultCodeReuseWindow = 10 * time.Minute
)

// Provider is the part of the Discord client the flow depends on.
type Provider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*discord.TokenSet, error)
	RefreshToken(ctx context.Context, refreshToken string) (*discord.TokenSet, error)
	FetchProfile(ctx context.Context, tokens *discord.TokenSet) (*discord.Profile, error)
}

var _ Provider = (*discord.Client)(nil)

// SessionFlow runs the authorization code grant for a browser session: it issues the
// anti-CSRF nonce, consumes it on the callback, exchanges the code and refreshes tokens.
// Operations on the same session are serialized; distinct sessions run in parallel.
type SessionFlow struct {
	provider   Provider
	repo       sessions.Repo
	locks      *keyedMutex
	codesMu    sync.Mutex
	usedCodes  *ttlcache.Cache[string, struct{}]
	nonceBytes int
	codeTTL    time.Duration
	metrics    *instrumentation.Metrics
	nowTime    func() time.Time
}

// SessionFlowOption defines a function type to modify the SessionFlow instance.
type SessionFlowOption func(*SessionFlow)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SessionFlowOption {
	return func(f *SessionFlow) {
		f.nowTime = nowFunc
	}
}

// WithNonceBytes sets the nonce entropy. Values below 20 are raised to 20.
func WithNonceBytes(n int) SessionFlowOption {
	return func(f *SessionFlow) {
		f.nonceBytes = max(n, minNonceBytes)
	}
}

// WithCodeReuseWindow sets how long exchanged authorization codes are remembered.
func WithCodeReuseWindow(d time.Duration) SessionFlowOption {
	return func(f *SessionFlow) {
		if d > 0 {
			f.codeTTL = d
		}
	}
}

// WithMetrics records login, callback and refresh outcomes on m.
func WithMetrics(m *instrumentation.Metrics) SessionFlowOption {
	return func(f *SessionFlow) {
		f.metrics = m
	}
}

// NewSessionFlow creates the flow. Call Close to stop the used-code cache.
func NewSessionFlow(provider Provider, repo sessions.Repo, options ...SessionFlowOption) (*SessionFlow, error) {
	if provider == nil {
		return nil, errors.New("[NewSessionFlow] provider is required")
	}
	if repo == nil {
		return nil, errors.New("[NewSessionFlow] session repo is required")
	}

	f := &SessionFlow{
		provider:   provider,
		repo:       repo,
		locks:      newKeyedMutex(),
		nonceBytes: defaultNonceBytes,
		codeTTL:    defaultCodeReuseWindow,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(f)
	}

	f.usedCodes = ttlcache.New(
		ttlcache.WithTTL[string, struct{}](f.codeTTL),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go f.usedCodes.Start()

	return f, nil
}

// Close stops the used-code cache's expiry loop.
func (f *SessionFlow) Close() {
	f.usedCodes.Stop()
}

// BeginLogin stores a fresh nonce on the session and returns the consent screen URL carrying
// it. An empty or unknown sessionID starts a new session. Any earlier pending nonce is replaced.
func (f *SessionFlow) BeginLogin(ctx context.Context, sessionID string) (LoginStart, error) {
	nonce, err := f.newNonce()
	if err != nil {
		return LoginStart{}, fmt.Errorf("[BeginLogin] %w", err)
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	unlock := f.locks.Lock(sessionID)
	defer unlock()

	session, err := f.loadSession(ctx, sessionID)
	if err != nil {
		return LoginStart{}, fmt.Errorf("[BeginLogin] %w", err)
	}
	now := f.nowTime()
	if session == nil {
		session = &sessions.Session{ID: uuid.New().String(), CreatedAt: now}
	}
	session.StateNonce = nonce
	session.UpdatedAt = now
	if err := f.repo.Upsert(ctx, session); err != nil {
		return LoginStart{}, fmt.Errorf("[BeginLogin] failed to store session: %w", err)
	}

	f.metrics.RecordLoginStarted(ctx)
	log.Debug().Str("session_id", session.ID).Msg("login started")

	return LoginStart{
		SessionID:   session.ID,
		RedirectURL: f.provider.AuthCodeURL(nonce),
	}, nil
}

// HandleCallback processes the provider's redirect for sessionID.
func (f *SessionFlow) HandleCallback(ctx context.Context, sessionID string, params CallbackParams) (Outcome, error) {
	outcome, err := f.handleCallback(ctx, sessionID, params)
	if err != nil {
		return Outcome{}, err
	}

	f.metrics.RecordCallback(ctx, outcome.Kind.String())
	event := log.Info()
	if outcome.Err != nil {
		event = log.Warn().Err(outcome.Err)
	}
	event.Str("session_id", sessionID).
		Str("outcome", outcome.Kind.String()).
		Str("description", outcome.Description).
		Msg("callback processed")
	return outcome, nil
}

func (f *SessionFlow) handleCallback(ctx context.Context, sessionID string, params CallbackParams) (Outcome, error) {
	if params.Error != "" {
		description := params.ErrorDescription
		if description == "" {
			description = params.Error
		}
		return Outcome{Kind: AuthorizationDenied, Description: description}, nil
	}
	if sessionID == "" {
		return Outcome{Kind: RestartRequired, Err: ErrNoPendingLogin}, nil
	}

	unlock := f.locks.Lock(sessionID)
	defer unlock()

	session, err := f.loadSession(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("[HandleCallback] %w", err)
	}

	var stored string
	if session != nil {
		stored = session.StateNonce
	}
	if err := ValidateState(stored, params.State); err != nil {
		if session != nil && session.HasTokens() {
			return Outcome{Kind: AlreadyAuthenticated, Profile: session.Profile, ExpiresAt: session.ExpiresAt}, nil
		}
		return Outcome{Kind: RestartRequired, Err: err}, nil
	}

	// The nonce is spent before any provider I/O.
	session.StateNonce = ""
	session.UpdatedAt = f.nowTime()
	if err := f.repo.Upsert(ctx, session); err != nil {
		return Outcome{}, fmt.Errorf("[HandleCallback] failed to clear state: %w", err)
	}

	if err := f.claimCode(params.Code); err != nil {
		return failedOutcome(ExchangeFailed, err), nil
	}

	tokens, err := f.provider.ExchangeCode(ctx, params.Code)
	if err != nil {
		return failedOutcome(ExchangeFailed, err), nil
	}
	issuedAt := f.nowTime()

	profile, err := f.provider.FetchProfile(ctx, tokens)
	if err != nil {
		return failedOutcome(ExchangeFailed, err), nil
	}
	if tokens.IDTokenSubject != "" && tokens.IDTokenSubject != profile.ID {
		return failedOutcome(ExchangeFailed, apperrors.ErrSubjectMismatch), nil
	}

	applyTokens(session, tokens, issuedAt)
	session.Profile = profile
	session.UpdatedAt = f.nowTime()
	if err := f.repo.Upsert(ctx, session); err != nil {
		return Outcome{}, fmt.Errorf("[HandleCallback] failed to store tokens: %w", err)
	}

	return Outcome{Kind: LoginSucceeded, Profile: profile, ExpiresAt: session.ExpiresAt}, nil
}

// Refresh exchanges the session's refresh token for a new token pair. The stored refresh
// token is replaced even when the provider does not return a new one.
func (f *SessionFlow) Refresh(ctx context.Context, sessionID string) (Outcome, error) {
	outcome, err := f.refresh(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}

	f.metrics.RecordRefresh(ctx, outcome.Kind.String())
	event := log.Info()
	if outcome.Err != nil {
		event = log.Warn().Err(outcome.Err)
	}
	event.Str("session_id", sessionID).Str("outcome", outcome.Kind.String()).Msg("refresh processed")
	return outcome, nil
}

func (f *SessionFlow) refresh(ctx context.Context, sessionID string) (Outcome, error) {
	if sessionID == "" {
		return Outcome{Kind: NoActiveSession}, nil
	}

	unlock := f.locks.Lock(sessionID)
	defer unlock()

	session, err := f.loadSession(ctx, sessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("[Refresh] %w", err)
	}
	if session == nil || session.RefreshToken == "" {
		return Outcome{Kind: NoActiveSession}, nil
	}

	tokens, err := f.provider.RefreshToken(ctx, session.RefreshToken)
	if err != nil {
		return failedOutcome(RefreshFailed, err), nil
	}

	applyTokens(session, tokens, f.nowTime())
	session.UpdatedAt = f.nowTime()
	if err := f.repo.Upsert(ctx, session); err != nil {
		return Outcome{}, fmt.Errorf("[Refresh] failed to store tokens: %w", err)
	}

	return Outcome{Kind: RefreshSucceeded, Profile: session.Profile, ExpiresAt: session.ExpiresAt}, nil
}

// loadSession returns nil, nil when the session does not exist.
func (f *SessionFlow) loadSession(ctx context.Context, sessionID string) (*sessions.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := f.repo.Get(ctx, sessionID)
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// claimCode marks code as used, failing if it is empty or was already exchanged.
func (f *SessionFlow) claimCode(code string) error {
	if code == "" {
		return apperrors.ErrMissingCode
	}
	hash := sha256.Sum256([]byte(code))
	key := hex.EncodeToString(hash[:])

	f.codesMu.Lock()
	defer f.codesMu.Unlock()
	if f.usedCodes.Has(key) {
		return apperrors.ErrCodeReused
	}
	f.usedCodes.Set(key, struct{}{}, ttlcache.DefaultTTL)
	return nil
}

func (f *SessionFlow) newNonce() (string, error) {
	b := make([]byte, f.nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// applyTokens overwrites every token field. ExpiresAt is left zero when the provider did
// not report a lifetime.
func applyTokens(session *sessions.Session, tokens *discord.TokenSet, issuedAt time.Time) {
	session.AccessToken = tokens.AccessToken
	session.RefreshToken = tokens.RefreshToken
	session.TokenType = tokens.TokenType
	session.Scope = tokens.Scope
	session.ExpiresAt = time.Time{}
	if tokens.ExpiresIn > 0 {
		session.ExpiresAt = issuedAt.Add(tokens.ExpiresIn)
	}
}
