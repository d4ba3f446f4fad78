package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/commandpost/internal/auth"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/oauth"
	"github.com/unkn0wn-root/commandpost/internal/request"
	"github.com/unkn0wn-root/commandpost/internal/response"
	"github.com/unkn0wn-root/commandpost/internal/store"
	"github.com/unkn0wn-root/commandpost/internal/telemetry"
)

type sendOptions struct {
	req       requestFlags
	include   bool
	raw       bool
	color     string
	saveTo    string
	noHistory bool
}

func newSendCmd(a *app) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send [METHOD] TARGET",
		Short: "Send a request and record it in history",
		Long: heredoc.Doc(`
			Send assembles a request from flags, sends it and prints the
			response body on stdout and the status line on stderr.

			TARGET is a full URL, or a path joined to the environment's base URL.
			{{name}} placeholders are expanded from --var, --env-file and the
			environment's variables.
		`),
		Example: heredoc.Doc(`
			$ commandpost send https://httpbin.org/get -q page=2
			$ commandpost send POST /devices -e staging -d '{"name":"probe"}' -H 'Content-Type: application/json'
			$ commandpost send PUT /avatar --form-file image=./me.png --bearer "$TOKEN"
		`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), a, opts, args)
		},
	}
	opts.req.register(cmd.Flags())
	cmd.Flags().BoolVarP(&opts.include, "include", "i", false, "Print response headers before the body")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the body without JSON formatting")
	cmd.Flags().StringVar(&opts.color, "color", colorAuto, "Highlight output: auto, always or never")
	cmd.Flags().StringVar(&opts.saveTo, "save", "", "Append the request to this collection")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the exchange")
	return cmd
}

func runSend(ctx context.Context, a *app, opts *sendOptions, args []string) error {
	p, err := a.printer(opts.color)
	if err != nil {
		return err
	}
	desc, err := a.assemble(ctx, &opts.req, args)
	if err != nil {
		return err
	}

	a.logger.Debug("sending request", "method", desc.Method(), "url", telemetry.RedactURL(desc.URL()))
	resp, err := a.client.Execute(ctx, desc, a.executeOptions(""))
	if err != nil {
		return err
	}
	if err := p.response(resp, responseView{includeHeaders: opts.include, raw: opts.raw}); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write response")
	}

	if !opts.noHistory {
		a.recordHistory(ctx, p, desc, resp)
	}
	if opts.saveTo != "" {
		db, err := a.store(ctx)
		if err != nil {
			return err
		}
		if err := db.AppendToCollection(ctx, opts.saveTo, desc); err != nil {
			return err
		}
		p.notice("saved to collection %q", opts.saveTo)
	}
	return nil
}

// assemble resolves the environment and auth, then builds the descriptor.
func (a *app) assemble(ctx context.Context, f *requestFlags, args []string) (request.Descriptor, error) {
	method, target, err := f.methodAndTarget(args)
	if err != nil {
		return request.Descriptor{}, err
	}
	in, err := f.input(method, target)
	if err != nil {
		return request.Descriptor{}, err
	}

	env, err := a.environment(ctx, f.env)
	if err != nil {
		return request.Descriptor{}, err
	}
	if f.oauth {
		scheme, err := a.oauthScheme(ctx, env)
		if err != nil {
			return request.Descriptor{}, err
		}
		in.Auth.Set(scheme)
	}

	resolver, err := f.resolver(env)
	if err != nil {
		return request.Descriptor{}, err
	}
	reqEnv := request.Env{TimeoutMs: a.settings.TimeoutMs, Vars: resolver}
	if env != nil {
		reqEnv.BaseURL = env.BaseURL
	}
	return request.Assemble(reqEnv, in), nil
}

func (a *app) environment(ctx context.Context, name string) (*store.Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	db, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	env, ok, err := db.GetEnvironment(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errdef.New(errdef.CodeValidation, "environment %q not found", name)
	}
	return &env, nil
}

// oauthScheme returns an oauth2 scheme carrying a usable access token. A
// stored unexpired token wins, then a refresh, then a fresh grant using the
// environment's oauth2 config. Updated tokens are saved back.
func (a *app) oauthScheme(ctx context.Context, env *store.Environment) (auth.OAuth2, error) {
	if env == nil {
		return auth.OAuth2{}, errdef.New(errdef.CodeValidation, "--oauth requires --env")
	}
	scheme := auth.DefaultOAuth2()
	if strings.TrimSpace(env.OAuth2Config) != "" {
		if err := json.Unmarshal([]byte(env.OAuth2Config), &scheme); err != nil {
			return auth.OAuth2{}, errdef.Wrap(errdef.CodeValidation, err, "decode oauth2 config of %q", env.Name)
		}
	}

	if env.AccessToken != "" && !tokenExpired(env.ExpiresAt, time.Now()) {
		scheme.AccessToken = env.AccessToken
		return scheme, nil
	}

	if env.RefreshToken != "" && env.TokenURL != "" {
		updated, err := a.oauth.Refresh(ctx, *env)
		if err == nil {
			a.saveEnvironment(ctx, updated)
			scheme.AccessToken = updated.AccessToken
			return scheme, nil
		}
		a.logger.Warn("token refresh failed, requesting a new token", "environment", env.Name, "error", err)
	}

	cfg := oauth.FromScheme(scheme)
	cfg.AuthURL = firstNonEmpty(cfg.AuthURL, env.AuthURL)
	cfg.TokenURL = firstNonEmpty(cfg.TokenURL, env.TokenURL)
	cfg.ClientID = firstNonEmpty(cfg.ClientID, env.ClientID)
	cfg.ClientSecret = firstNonEmpty(cfg.ClientSecret, env.ClientSecret)
	cfg.RedirectURL = firstNonEmpty(cfg.RedirectURL, env.RedirectURI)
	cfg.Scope = firstNonEmpty(env.Variables["scope"], cfg.Scope, env.Scope, a.settings.OAuth.DefaultScope)

	tok, err := a.oauth.Token(ctx, cfg)
	if err != nil {
		return auth.OAuth2{}, err
	}
	a.saveEnvironment(ctx, oauth.ApplyToken(*env, tok))
	scheme.AccessToken = tok.AccessToken
	return scheme, nil
}

func (a *app) saveEnvironment(ctx context.Context, env store.Environment) {
	db, err := a.store(ctx)
	if err == nil {
		err = db.SaveEnvironment(ctx, env)
	}
	if err != nil {
		a.logger.Warn("environment not saved", "environment", env.Name, "error", err)
	}
}

// recordHistory never fails the command; the exchange already happened.
func (a *app) recordHistory(ctx context.Context, p printer, desc request.Descriptor, resp response.Descriptor) {
	db, err := a.store(ctx)
	if err == nil {
		_, err = db.SaveHistory(ctx, desc, resp)
	}
	if err != nil {
		a.logger.Warn("history not saved", "error", err)
		p.notice("history not saved: %s", errdef.Message(err))
	}
}

// tokenExpired treats unparsable or empty expiries as still valid.
func tokenExpired(expiresAt string, now time.Time) bool {
	expiresAt = strings.TrimSpace(expiresAt)
	if expiresAt == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return false
	}
	return !now.Before(t)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
