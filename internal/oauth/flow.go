package oauth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/unkn0wn-root/commandpost/internal/store"
)

// PerformFlow runs the authorization code flow for env and returns env with
// its tokens updated. The caller persists the result.
func (m *Manager) PerformFlow(ctx context.Context, env store.Environment) (store.Environment, error) {
	if err := require(
		"client id", env.ClientID,
		"auth url", env.AuthURL,
		"token url", env.TokenURL,
	); err != nil {
		return env, err
	}

	redirect := strings.TrimSpace(env.RedirectURI)
	if redirect == "" {
		redirect = "http://" + m.callbackAddr + "/callback"
	}

	cfg := Config{
		GrantType:    GrantAuthorizationCode,
		AuthURL:      env.AuthURL,
		TokenURL:     env.TokenURL,
		RedirectURL:  redirect,
		ClientID:     env.ClientID,
		ClientSecret: env.ClientSecret,
		Scope:        m.scopeFor(env),
	}
	tok, err := m.authorizationCode(ctx, cfg)
	if err != nil {
		return env, err
	}
	m.storeToken(cacheKey(cfg), cfg, tok)
	m.logger.Info("oauth flow complete", "environment", env.Name)
	return ApplyToken(env, tok), nil
}

// Refresh exchanges the environment's refresh token for a new access token.
func (m *Manager) Refresh(ctx context.Context, env store.Environment) (store.Environment, error) {
	if err := require(
		"token url", env.TokenURL,
		"refresh token", env.RefreshToken,
	); err != nil {
		return env, err
	}
	cfg := Config{
		TokenURL:     env.TokenURL,
		ClientID:     env.ClientID,
		ClientSecret: env.ClientSecret,
		Scope:        m.scopeFor(env),
	}
	tok, err := m.refresh(ctx, cfg, env.RefreshToken)
	if err != nil {
		return env, err
	}
	return ApplyToken(env, tok), nil
}

func (m *Manager) scopeFor(env store.Environment) string {
	if s := strings.TrimSpace(env.Variables["scope"]); s != "" {
		return s
	}
	if s := strings.TrimSpace(env.Scope); s != "" {
		return s
	}
	return m.defaultScope
}

// ApplyToken stores tok on env. The expiry is written as RFC 3339 and the
// accessToken inside OAuth2Config is patched when that document is valid
// JSON.
func ApplyToken(env store.Environment, tok Token) store.Environment {
	env.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		env.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		env.ExpiresAt = tok.Expiry.UTC().Format(time.RFC3339)
	}
	if strings.TrimSpace(env.OAuth2Config) != "" {
		var doc map[string]any
		if err := json.Unmarshal([]byte(env.OAuth2Config), &doc); err == nil {
			doc["accessToken"] = tok.AccessToken
			if data, err := json.Marshal(doc); err == nil {
				env.OAuth2Config = string(data)
			}
		}
	}
	return env
}

