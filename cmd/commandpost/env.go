package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/kv"
	"github.com/unkn0wn-root/commandpost/internal/store"
)

const masked = "********"

func newEnvCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "env",
		Aliases: []string{"environment", "environments"},
		Short:   "Manage environments: base URLs, variables and OAuth2 state",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List environments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			envs, err := db.GetEnvironments(cmd.Context())
			if err != nil {
				return err
			}
			if len(envs) == 0 {
				fmt.Fprintln(a.out, "no environments")
				return nil
			}
			rows := make([][]string, 0, len(envs))
			for _, e := range envs {
				token := "no"
				if e.AccessToken != "" {
					token = "yes"
				}
				rows = append(rows, []string{e.Name, e.BaseURL, token, e.ExpiresAt, e.LastUsed})
			}
			p, err := a.printer(colorNever)
			if err != nil {
				return err
			}
			p.table([]string{"NAME", "BASE URL", "TOKEN", "EXPIRES", "LAST USED"}, rows)
			return nil
		},
	}

	var reveal bool
	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Print an environment as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.environment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := *env
			if !reveal {
				out = maskEnvironment(out)
			}
			return encode(a.out, "yaml", out)
		},
	}
	show.Flags().BoolVar(&reveal, "reveal", false, "Print tokens and secrets in clear")

	var ef envFlags
	save := &cobra.Command{
		Use:   "save NAME",
		Short: "Create or update an environment",
		Long: "Save creates the environment or updates the fields given as flags. " +
			"--var entries are merged into the existing variables; an empty value removes the key.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			env, _, err := db.GetEnvironment(ctx, args[0])
			if err != nil {
				return err
			}
			env.Name = args[0]
			env, err = ef.apply(cmd, env)
			if err != nil {
				return err
			}
			if err := db.SaveEnvironment(ctx, env); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved environment %q\n", env.Name)
			return nil
		},
	}
	ef.register(save)

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := db.DeleteEnvironment(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return errdef.New(errdef.CodeValidation, "environment %q not found", args[0])
			}
			fmt.Fprintf(a.out, "deleted %q\n", args[0])
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import PATH",
		Short: "Import environments from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			names, err := db.ImportEnvironmentFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "imported %s\n", strings.Join(names, ", "))
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export NAME PATH",
		Short: "Write an environment to a YAML file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if err := db.ExportEnvironmentFile(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %q to %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(list, show, save, del, imp, export)
	return cmd
}

type envFlags struct {
	baseURL      string
	vars         []string
	authURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
	scope        string
	accessToken  string
	oauth2Config string
}

func (f *envFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.baseURL, "base-url", "", "Base URL joined to relative targets")
	fs.StringArrayVar(&f.vars, "var", nil, "Variable key=value (repeatable)")
	fs.StringVar(&f.authURL, "auth-url", "", "OAuth2 authorization endpoint")
	fs.StringVar(&f.tokenURL, "token-url", "", "OAuth2 token endpoint")
	fs.StringVar(&f.clientID, "client-id", "", "OAuth2 client id")
	fs.StringVar(&f.clientSecret, "client-secret", "", "OAuth2 client secret")
	fs.StringVar(&f.redirectURI, "redirect-uri", "", "OAuth2 loopback redirect URI")
	fs.StringVar(&f.scope, "scope", "", "OAuth2 scope")
	fs.StringVar(&f.accessToken, "access-token", "", "Access token to store")
	fs.StringVar(&f.oauth2Config, "oauth2-config", "", "OAuth2 auth payload as JSON")
}

// apply copies only the flags that were set so updates leave other fields
// alone.
func (f *envFlags) apply(cmd *cobra.Command, env store.Environment) (store.Environment, error) {
	fs := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if fs.Changed(name) {
			*dst = v
		}
	}
	set("base-url", &env.BaseURL, f.baseURL)
	set("auth-url", &env.AuthURL, f.authURL)
	set("token-url", &env.TokenURL, f.tokenURL)
	set("client-id", &env.ClientID, f.clientID)
	set("client-secret", &env.ClientSecret, f.clientSecret)
	set("redirect-uri", &env.RedirectURI, f.redirectURI)
	set("scope", &env.Scope, f.scope)
	set("access-token", &env.AccessToken, f.accessToken)

	if fs.Changed("oauth2-config") {
		if f.oauth2Config != "" && !json.Valid([]byte(f.oauth2Config)) {
			return env, errdef.New(errdef.CodeValidation, "--oauth2-config must be valid JSON")
		}
		env.OAuth2Config = f.oauth2Config
	}

	for _, raw := range f.vars {
		p := kv.ParsePair(raw, "=")
		if p.Key == "" {
			return env, errdef.New(errdef.CodeValidation, "--var needs key=value, got %q", raw)
		}
		if env.Variables == nil {
			env.Variables = make(map[string]string)
		}
		if p.Value == "" {
			delete(env.Variables, p.Key)
			continue
		}
		env.Variables[p.Key] = p.Value
	}
	return env, nil
}

func maskEnvironment(env store.Environment) store.Environment {
	for _, field := range []*string{&env.AccessToken, &env.RefreshToken, &env.ClientSecret} {
		if *field != "" {
			*field = masked
		}
	}
	if env.OAuth2Config != "" {
		var doc map[string]any
		if err := json.Unmarshal([]byte(env.OAuth2Config), &doc); err == nil {
			for _, k := range []string{"accessToken", "clientSecret"} {
				if v, ok := doc[k].(string); ok && v != "" {
					doc[k] = masked
				}
			}
			if data, err := json.Marshal(doc); err == nil {
				env.OAuth2Config = string(data)
			}
		}
	}
	return env
}
