package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

// Environment is a named base URL with variables and OAuth2 state.
// OAuth2Config holds the auth panel's oauth2 payload as JSON.
type Environment struct {
	Name         string            `json:"name" yaml:"name"`
	BaseURL      string            `json:"base_url" yaml:"base_url"`
	AccessToken  string            `json:"access_token" yaml:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token" yaml:"refresh_token,omitempty"`
	ExpiresAt    string            `json:"expires_at" yaml:"expires_at,omitempty"`
	AuthURL      string            `json:"auth_url" yaml:"auth_url,omitempty"`
	TokenURL     string            `json:"token_url" yaml:"token_url,omitempty"`
	ClientID     string            `json:"client_id" yaml:"client_id,omitempty"`
	ClientSecret string            `json:"client_secret" yaml:"client_secret,omitempty"`
	RedirectURI  string            `json:"redirect_uri" yaml:"redirect_uri,omitempty"`
	Scope        string            `json:"scope" yaml:"scope,omitempty"`
	Variables    map[string]string `json:"variables" yaml:"variables,omitempty"`
	OAuth2Config string            `json:"oauth2_config" yaml:"oauth2_config,omitempty"`
	CreatedAt    string            `json:"created_at" yaml:"-"`
	LastUsed     string            `json:"last_used" yaml:"-"`
}

const environmentColumns = `name, base_url, access_token, refresh_token, expires_at, auth_url,
	token_url, client_id, client_secret, redirect_uri, scope, variables, oauth2_config,
	created_at, last_used`

// SaveEnvironment inserts env or updates the row with the same name,
// touching last_used.
func (s *Store) SaveEnvironment(ctx context.Context, env Environment) error {
	env.Name = strings.TrimSpace(env.Name)
	if env.Name == "" {
		return errdef.New(errdef.CodePersistence, "environment name is required")
	}
	vars := env.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "encode variables")
	}
	_, err = s.exec(ctx, `
		INSERT INTO environments (name, base_url, access_token, refresh_token, expires_at,
			auth_url, token_url, client_id, client_secret, redirect_uri, scope, variables, oauth2_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			base_url = excluded.base_url,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			auth_url = excluded.auth_url,
			token_url = excluded.token_url,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			redirect_uri = excluded.redirect_uri,
			scope = excluded.scope,
			variables = excluded.variables,
			oauth2_config = excluded.oauth2_config,
			last_used = CURRENT_TIMESTAMP`,
		env.Name, env.BaseURL, env.AccessToken, env.RefreshToken, env.ExpiresAt,
		env.AuthURL, env.TokenURL, env.ClientID, env.ClientSecret, env.RedirectURI,
		env.Scope, string(data), env.OAuth2Config,
	)
	if err != nil {
		return errdef.Wrap(errdef.CodePersistence, err, "save environment %s", env.Name)
	}
	return nil
}

func (s *Store) GetEnvironments(ctx context.Context) ([]Environment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+environmentColumns+` FROM environments ORDER BY name`)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "load environments")
	}
	defer rows.Close()

	envs := []Environment{}
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable environment", "error", err)
			continue
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, errdef.Wrap(errdef.CodePersistence, err, "load environments")
	}
	return envs, nil
}

func (s *Store) GetEnvironment(ctx context.Context, name string) (Environment, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+environmentColumns+` FROM environments WHERE name = ?`, name)
	env, err := scanEnvironment(row)
	if isNoRows(err) {
		return Environment{}, false, nil
	}
	if err != nil {
		return Environment{}, false, errdef.Wrap(errdef.CodePersistence, err, "load environment %s", name)
	}
	return env, true, nil
}

func (s *Store) DeleteEnvironment(ctx context.Context, name string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM environments WHERE name = ?`, name)
	if err != nil {
		return false, errdef.Wrap(errdef.CodePersistence, err, "delete environment %s", name)
	}
	return affected(res), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEnvironment(row scanner) (Environment, error) {
	var (
		env  Environment
		vars string
	)
	if err := row.Scan(
		&env.Name,
		&env.BaseURL,
		&env.AccessToken,
		&env.RefreshToken,
		&env.ExpiresAt,
		&env.AuthURL,
		&env.TokenURL,
		&env.ClientID,
		&env.ClientSecret,
		&env.RedirectURI,
		&env.Scope,
		&vars,
		&env.OAuth2Config,
		&env.CreatedAt,
		&env.LastUsed,
	); err != nil {
		return Environment{}, err
	}
	env.Variables = map[string]string{}
	if strings.TrimSpace(vars) != "" {
		if err := json.Unmarshal([]byte(vars), &env.Variables); err != nil {
			return Environment{}, err
		}
	}
	return env, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func affected(res sql.Result) bool {
	if res == nil {
		return false
	}
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
