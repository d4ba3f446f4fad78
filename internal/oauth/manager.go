package oauth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/commandpost/internal/auth"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantAuthorizationCode = "authorization_code"

	DefaultScope        = "openid profile email"
	DefaultCallbackAddr = "127.0.0.1:8090"
)

type Config struct {
	GrantType    string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	ClientID     string
	ClientSecret string
	Scope        string
	State        string
	ClientAuth   auth.ClientAuth
	Username     string
	Password     string
	CacheKey     string
}

// FromScheme maps the oauth2 auth payload onto a grant configuration.
func FromScheme(o auth.OAuth2) Config {
	return Config{
		GrantType:    o.GrantType,
		AuthURL:      o.AuthURL,
		TokenURL:     o.AccessTokenURL,
		RedirectURL:  o.CallbackURL,
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		Scope:        o.Scope,
		State:        o.State,
		ClientAuth:   o.ClientAuth,
	}
}

type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
}

type Manager struct {
	httpClient   *http.Client
	logger       *slog.Logger
	defaultScope string
	callbackAddr string

	mu     sync.Mutex
	cache  map[string]*cacheEntry
	flight singleflight.Group
}

type cacheEntry struct {
	token Token
	cfg   Config
}

const expirySlack = 30 * time.Second

type Options struct {
	HTTPClient   *http.Client
	Logger       *slog.Logger
	DefaultScope string
	CallbackAddr string
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		defaultScope: strings.TrimSpace(opts.DefaultScope),
		callbackAddr: strings.TrimSpace(opts.CallbackAddr),
		cache:        make(map[string]*cacheEntry),
	}
	if m.httpClient == nil {
		m.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.defaultScope == "" {
		m.defaultScope = DefaultScope
	}
	if m.callbackAddr == "" {
		m.callbackAddr = DefaultCallbackAddr
	}
	return m
}

func (m *Manager) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// Token returns a valid token for cfg. Concurrent requests for the same
// config share one fetch; a cached refresh token is tried before a new
// grant.
func (m *Manager) Token(ctx context.Context, cfg Config) (Token, error) {
	key := cacheKey(cfg)

	if token, ok := m.cachedToken(key); ok && token.valid() {
		return token, nil
	}

	ch := m.flight.DoChan(key, func() (any, error) {
		return m.obtainToken(ctx, key, cfg)
	})
	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

func (m *Manager) obtainToken(ctx context.Context, key string, cfg Config) (Token, error) {
	if token, ok := m.cachedToken(key); ok && token.valid() {
		return token, nil
	}

	if entry := m.cacheEntry(key); entry != nil && entry.token.RefreshToken != "" {
		refreshed, err := m.refresh(ctx, entry.cfg, entry.token.RefreshToken)
		if err == nil {
			m.storeToken(key, cfg, refreshed)
			return refreshed, nil
		}
		m.logger.Debug("refresh failed, requesting new token", "error", err)
	}

	var (
		token Token
		err   error
	)
	switch grantOf(cfg) {
	case GrantClientCredentials:
		token, err = m.clientCredentials(ctx, cfg)
	case GrantPassword:
		token, err = m.passwordToken(ctx, cfg)
	case GrantAuthorizationCode:
		token, err = m.authorizationCode(ctx, cfg)
	default:
		return Token{}, errdef.New(errdef.CodeValidation, "unsupported oauth2 grant type: %s", cfg.GrantType)
	}
	if err != nil {
		return Token{}, err
	}
	m.storeToken(key, cfg, token)
	return token, nil
}

func (m *Manager) clientCredentials(ctx context.Context, cfg Config) (Token, error) {
	if err := require("token url", cfg.TokenURL, "client id", cfg.ClientID); err != nil {
		return Token{}, err
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       scopes(cfg.Scope),
		AuthStyle:    authStyle(cfg.ClientAuth),
	}
	tok, err := cc.Token(m.withClient(ctx))
	if err != nil {
		return Token{}, errdef.Wrap(errdef.CodeNetwork, err, "oauth token request")
	}
	return fromOAuth2(tok), nil
}

func (m *Manager) passwordToken(ctx context.Context, cfg Config) (Token, error) {
	if err := require("token url", cfg.TokenURL, "username", cfg.Username); err != nil {
		return Token{}, err
	}
	tok, err := oauth2Config(cfg).PasswordCredentialsToken(m.withClient(ctx), cfg.Username, cfg.Password)
	if err != nil {
		return Token{}, errdef.Wrap(errdef.CodeNetwork, err, "oauth token request")
	}
	return fromOAuth2(tok), nil
}

func (m *Manager) refresh(ctx context.Context, cfg Config, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, errdef.New(errdef.CodeValidation, "missing refresh token")
	}
	src := oauth2Config(cfg).TokenSource(m.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, errdef.Wrap(errdef.CodeNetwork, err, "oauth token refresh")
	}
	return fromOAuth2(tok), nil
}

func (m *Manager) cachedToken(key string) (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.cache[key]
	if !ok {
		return Token{}, false
	}
	return entry.token, true
}

func (m *Manager) cacheEntry(key string) *cacheEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache[key]
}

func (m *Manager) storeToken(key string, cfg Config, token Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = &cacheEntry{token: token, cfg: cfg}
}

func cacheKey(cfg Config) string {
	if strings.TrimSpace(cfg.CacheKey) != "" {
		return strings.TrimSpace(cfg.CacheKey)
	}
	return strings.Join([]string{
		strings.TrimSpace(cfg.TokenURL),
		strings.TrimSpace(cfg.AuthURL),
		strings.TrimSpace(cfg.RedirectURL),
		strings.TrimSpace(cfg.ClientID),
		strings.TrimSpace(cfg.Scope),
		grantOf(cfg),
		strings.TrimSpace(cfg.Username),
		strings.ToLower(string(cfg.ClientAuth)),
	}, "|")
}

func grantOf(cfg Config) string {
	grant := strings.ToLower(strings.TrimSpace(cfg.GrantType))
	if grant == "" {
		return GrantClientCredentials
	}
	return grant
}

func oauth2Config(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: authStyle(cfg.ClientAuth),
		},
		RedirectURL: cfg.RedirectURL,
		Scopes:      scopes(cfg.Scope),
	}
}

func authStyle(ca auth.ClientAuth) oauth2.AuthStyle {
	switch ca {
	case auth.ClientAuthBasic:
		return oauth2.AuthStyleInHeader
	case auth.ClientAuthBody:
		return oauth2.AuthStyleInParams
	default:
		return oauth2.AuthStyleAutoDetect
	}
}

func scopes(raw string) []string {
	return strings.Fields(strings.ReplaceAll(raw, ",", " "))
}

func fromOAuth2(tok *oauth2.Token) Token {
	return Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// require returns a validation error naming every empty field. Pairs are
// label, value.
func require(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errdef.New(errdef.CodeValidation, "missing %s", strings.Join(missing, ", "))
}

// Treats tokens expiring in the next 30 seconds as already expired
// to avoid racing with the actual expiration.
func (t Token) valid() bool {
	if t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(expirySlack).Before(t.Expiry)
}
